package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
)

func TestSupportedTypes(t *testing.T) {
	assert.Equal(t, []domain.DocumentType{domain.DocumentTypeMarkdown}, New().SupportedTypes())
}

func TestNormalise(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "keeps syntax",
			content: "# Title\n\nSome **bold** text.\n\n- item",
			want:    "# Title\n\nSome **bold** text.\n\n- item",
		},
		{
			name:    "normalises line endings",
			content: "# Title\r\n\r\nBody\r\n",
			want:    "# Title\n\nBody\n",
		},
		{
			name:    "drops front matter",
			content: "---\ntitle: Notes\ntags: [a]\n---\n# Notes\n",
			want:    "# Notes\n",
		},
		{
			name:    "collapses blank lines",
			content: "a\n\n\n\n\nb",
			want:    "a\n\nb",
		},
		{
			name:    "horizontal rule is not front matter",
			content: "intro\n---\nmore",
			want:    "intro\n---\nmore",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New().Normalise(context.Background(), []byte(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*Normaliser)(nil)
}
