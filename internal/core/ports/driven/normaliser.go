package driven

import (
	"context"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// Normaliser extracts plain text from the bytes of one document type.
// Implementations are pure transforms apart from any extraction subprocess.
type Normaliser interface {
	// SupportedTypes returns the document types this normaliser handles.
	SupportedTypes() []domain.DocumentType

	// Normalise returns the extracted text. An empty result for non-empty
	// content is reported by the loader, not the normaliser.
	Normalise(ctx context.Context, content []byte) (string, error)
}
