package driven

import (
	"iter"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// Chunker splits normalised text into ordered, overlapping chunks.
type Chunker interface {
	// Split returns a lazy, restartable sequence of chunks for the text.
	// Ranging the sequence twice yields the same chunks.
	Split(documentID, text string) (iter.Seq[domain.Chunk], error)
}
