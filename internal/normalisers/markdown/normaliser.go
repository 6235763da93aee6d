// Package markdown normalises Markdown documents.
//
// Markdown syntax is kept: headings and blank lines give the chunker good
// break points, and models read Markdown well. Only YAML front matter is
// removed since it is metadata rather than content.
package markdown

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
	"github.com/custodia-labs/ragdesk/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

var (
	frontMatter   = regexp.MustCompile(`(?s)\A---\n.*?\n---\n`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedTypes returns the document types this normaliser handles.
func (n *Normaliser) SupportedTypes() []domain.DocumentType {
	return []domain.DocumentType{domain.DocumentTypeMarkdown}
}

// Normalise normalises line endings, drops front matter and collapses runs
// of blank lines.
func (n *Normaliser) Normalise(_ context.Context, content []byte) (string, error) {
	text := normalisers.CleanText(content)
	text = frontMatter.ReplaceAllString(text, "")
	text = multiNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimLeft(text, "\n"), nil
}
