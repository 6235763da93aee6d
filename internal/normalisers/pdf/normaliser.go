// Package pdf normalises PDF documents using the pdftotext tool from poppler.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
	"github.com/custodia-labs/ragdesk/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// toolName is the external extraction binary.
const toolName = "pdftotext"

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs commands with os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPDFToolNotFound, InstallInstructions())
	}
	var stderr strings.Builder
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Normaliser handles PDF documents.
type Normaliser struct {
	runner CommandRunner
}

// New creates a PDF normaliser that shells out to pdftotext.
func New() *Normaliser {
	return NewWithRunner(execRunner{})
}

// NewWithRunner creates a PDF normaliser with a custom command runner.
func NewWithRunner(runner CommandRunner) *Normaliser {
	return &Normaliser{runner: runner}
}

// SupportedTypes returns the document types this normaliser handles.
func (n *Normaliser) SupportedTypes() []domain.DocumentType {
	return []domain.DocumentType{domain.DocumentTypePDF}
}

// Normalise extracts text page by page. pdftotext separates pages with a
// form feed; each page is prefixed with a page-boundary marker.
func (n *Normaliser) Normalise(ctx context.Context, content []byte) (string, error) {
	if len(content) == 0 {
		return "", nil
	}

	tmp, err := os.CreateTemp("", "ragdesk-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	out, err := n.runner.Run(ctx, toolName, "-enc", "UTF-8", "-layout", tmp.Name(), "-")
	if err != nil {
		if errors.Is(err, ErrPDFToolNotFound) || ctx.Err() != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: pdftotext failed: %w", domain.ErrCorruptInput, err)
	}

	return joinPages(splitPages(normalisers.CleanText(out))), nil
}

// splitPages splits pdftotext output on form feeds. The form feed that
// terminates the last page does not start a new one.
func splitPages(text string) []string {
	text = strings.TrimSuffix(text, "\f")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\f")
}

// PageMarker returns the boundary marker placed before page n (1-based).
func PageMarker(n int) string {
	return fmt.Sprintf("--- page %d ---", n)
}

// joinPages prefixes each page with its marker. Pages without text keep
// their marker so page numbers stay aligned with the source, but a
// document whose pages are all blank yields "".
func joinPages(pages []string) string {
	var (
		b       strings.Builder
		hasText bool
	)
	for i, page := range pages {
		page = strings.TrimSpace(page)
		if page != "" {
			hasText = true
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(PageMarker(i + 1))
		if page != "" {
			b.WriteString("\n\n")
			b.WriteString(page)
		}
	}
	if !hasText {
		return ""
	}
	return b.String()
}

// CheckAvailable reports whether pdftotext is installed.
func CheckAvailable() error {
	if _, err := exec.LookPath(toolName); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions returns how to install pdftotext.
func InstallInstructions() string {
	return "install pdftotext from poppler: 'brew install poppler' (macOS) or 'apt install poppler-utils' (Debian/Ubuntu)"
}
