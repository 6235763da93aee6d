package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// DocumentType is the closed set of formats the loader understands.
type DocumentType string

// Supported document types.
const (
	// DocumentTypePDF is a PDF file; text is extracted per page.
	DocumentTypePDF DocumentType = "pdf"

	// DocumentTypeDOCX is an Office Open XML word document.
	DocumentTypeDOCX DocumentType = "docx"

	// DocumentTypeMarkdown is Markdown source.
	DocumentTypeMarkdown DocumentType = "markdown"

	// DocumentTypeText is plain UTF-8 text.
	DocumentTypeText DocumentType = "text"
)

// IsValid returns true if the document type is recognised.
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypePDF, DocumentTypeDOCX, DocumentTypeMarkdown, DocumentTypeText:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t DocumentType) String() string {
	return string(t)
}

// AllDocumentTypes returns every supported document type.
func AllDocumentTypes() []DocumentType {
	return []DocumentType{
		DocumentTypePDF,
		DocumentTypeDOCX,
		DocumentTypeMarkdown,
		DocumentTypeText,
	}
}

// ParseDocumentType accepts a type tag ("pdf", "md", "txt", ...) or a file
// extension with its leading dot.
func ParseDocumentType(s string) (DocumentType, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "pdf":
		return DocumentTypePDF, nil
	case "docx":
		return DocumentTypeDOCX, nil
	case "markdown", "md":
		return DocumentTypeMarkdown, nil
	case "text", "txt", "plain":
		return DocumentTypeText, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// DocumentTypeFromPath detects the type from a file extension.
func DocumentTypeFromPath(path string) (DocumentType, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no extension", ErrUnsupportedFormat, filepath.Base(path))
	}
	return ParseDocumentType(ext)
}

// Document is a raw upload: an identity, its bytes and a declared type.
// Documents are immutable and discarded once chunked.
type Document struct {
	// ID is the filename for uploads or an inline-text tag.
	ID string

	// Name is the human-readable name shown with sources.
	Name string

	// Type is the declared document type.
	Type DocumentType

	// Content is the original byte content.
	Content []byte

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]string
}

// inlineTextPrefix tags documents created from free text rather than a file.
const inlineTextPrefix = "text:"

// NewTextDocument creates a plain text document from inline text.
// An empty id is derived from the content so the same text always maps to
// the same document.
func NewTextDocument(id, text string) Document {
	if id == "" {
		sum := sha256.Sum256([]byte(text))
		id = inlineTextPrefix + hex.EncodeToString(sum[:])[:12]
	}
	return Document{
		ID:      id,
		Name:    id,
		Type:    DocumentTypeText,
		Content: []byte(text),
	}
}

// Chunk is an ordered text segment of a normalised document.
type Chunk struct {
	// DocumentID links to the source Document.
	DocumentID string

	// Index is the sequence number within the document, starting at 0.
	Index int

	// Content is the text of this chunk.
	Content string

	// Start is the rune offset of the chunk in the normalised text.
	Start int

	// End is the rune offset one past the last rune of the chunk.
	End int

	// OverlapPrev is how many leading runes are shared with the previous chunk.
	OverlapPrev int
}

// Len returns the chunk length in runes.
func (c Chunk) Len() int {
	return utf8.RuneCountInString(c.Content)
}

// Key returns the identity used for idempotent storage.
func (c Chunk) Key() string {
	return RecordID(c.DocumentID, c.Index)
}

// RecordID joins a document id and chunk index into a record identity.
func RecordID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s#%d", documentID, chunkIndex)
}
