package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

// Loader converts raw document bytes into normalised text by dispatching
// on the declared document type.
type Loader struct {
	normalisers map[domain.DocumentType]driven.Normaliser
}

// NewLoader creates a loader from normalisers. A later normaliser replaces
// an earlier one for the same type.
func NewLoader(normalisers ...driven.Normaliser) *Loader {
	l := &Loader{normalisers: make(map[domain.DocumentType]driven.Normaliser)}
	for _, n := range normalisers {
		for _, t := range n.SupportedTypes() {
			l.normalisers[t] = n
		}
	}
	return l
}

// Supports reports whether a normaliser is registered for t.
func (l *Loader) Supports(t domain.DocumentType) bool {
	_, ok := l.normalisers[t]
	return ok
}

// Load returns the normalised text of content.
// Empty content, and whitespace-only text or markdown, yields empty text.
// Any other content that extracts to nothing but whitespace fails with
// domain.ErrCorruptInput.
func (l *Loader) Load(ctx context.Context, content []byte, declared domain.DocumentType) (string, error) {
	if !declared.IsValid() {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, declared)
	}
	n, ok := l.normalisers[declared]
	if !ok {
		return "", fmt.Errorf("%w: no extractor for %s", domain.ErrUnsupportedFormat, declared)
	}
	if len(content) == 0 {
		return "", nil
	}
	if isPlainText(declared) && len(bytes.TrimSpace(content)) == 0 {
		return "", nil
	}

	text, err := n.Normalise(ctx, content)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", declared, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s extraction produced no text from %d bytes",
			domain.ErrCorruptInput, declared, len(content))
	}

	logger.Debug("Loaded %s: %d bytes -> %d characters", declared, len(content), len(text))
	return text, nil
}

func isPlainText(t domain.DocumentType) bool {
	return t == domain.DocumentTypeText || t == domain.DocumentTypeMarkdown
}
