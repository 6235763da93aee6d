package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/normalisers/docx"
)

func TestLoader_Load(t *testing.T) {
	broken := errors.New("zip: not a valid zip file")
	loader := NewLoader(
		&stubNormaliser{types: []domain.DocumentType{domain.DocumentTypeText, domain.DocumentTypeMarkdown}},
		&stubNormaliser{
			types: []domain.DocumentType{domain.DocumentTypePDF},
			fn:    func([]byte) (string, error) { return " \n\n ", nil },
		},
		&stubNormaliser{
			types: []domain.DocumentType{domain.DocumentTypeDOCX},
			fn:    func([]byte) (string, error) { return "", broken },
		},
	)

	tests := []struct {
		name     string
		content  string
		declared domain.DocumentType
		want     string
		wantErr  error
	}{
		{"text passes through", "hello", domain.DocumentTypeText, "hello", nil},
		{"markdown passes through", "# Title", domain.DocumentTypeMarkdown, "# Title", nil},
		{"unknown type", "hello", domain.DocumentType("html"), "", domain.ErrUnsupportedFormat},
		{"empty input", "", domain.DocumentTypePDF, "", nil},
		{"whitespace text", "  \n", domain.DocumentTypeText, "", nil},
		{"whitespace markdown", "\t\n", domain.DocumentTypeMarkdown, "", nil},
		{"whitespace pdf", " \n\t ", domain.DocumentTypePDF, "", domain.ErrCorruptInput},
		{"nothing extracted", "%PDF-1.7", domain.DocumentTypePDF, "", domain.ErrCorruptInput},
		{"extractor error", "PK", domain.DocumentTypeDOCX, "", broken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loader.Load(context.Background(), []byte(tt.content), tt.declared)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoader_WhitespaceContainerIsCorrupt(t *testing.T) {
	loader := NewLoader(docx.New())

	text, err := loader.Load(context.Background(), []byte(" \n\t "), domain.DocumentTypeDOCX)

	assert.Empty(t, text)
	assert.ErrorIs(t, err, domain.ErrCorruptInput)
	assert.Equal(t, domain.ErrorKindInput, domain.Classify(err))
}

func TestLoader_UnregisteredType(t *testing.T) {
	loader := NewLoader(&stubNormaliser{types: []domain.DocumentType{domain.DocumentTypeText}})

	assert.True(t, loader.Supports(domain.DocumentTypeText))
	assert.False(t, loader.Supports(domain.DocumentTypePDF))

	_, err := loader.Load(context.Background(), []byte("%PDF"), domain.DocumentTypePDF)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
	assert.Equal(t, domain.ErrorKindInput, domain.Classify(err))
}
