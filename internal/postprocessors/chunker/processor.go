// Package chunker provides a sliding-window text chunker.
//
// Windows are measured in runes. Each window advances by (size - overlap)
// and its end is pulled back to a paragraph, line, sentence or word break
// when one exists in the last tenth of the window.
package chunker

import (
	"iter"
	"unicode"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.Chunker = (*Processor)(nil)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = domain.DefaultChunkSize

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = domain.DefaultChunkOverlap

// breakWindowDivisor sets the search region for a soft break to the last
// 1/breakWindowDivisor of the window.
const breakWindowDivisor = 10

// Processor splits text into overlapping chunks.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// New creates a new chunker processor with the given options.
// Returns domain.ErrInvalidChunkConfig if the overlap is not smaller than
// the chunk size.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := p.Config().Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Config returns the chunk size and overlap.
func (p *Processor) Config() domain.ChunkConfig {
	return domain.ChunkConfig{MaxSize: p.chunkSize, Overlap: p.overlap}
}

// Split splits text with the processor's configuration.
func (p *Processor) Split(documentID, text string) (iter.Seq[domain.Chunk], error) {
	return Split(documentID, text, p.chunkSize, p.overlap)
}

// Split returns a lazy sequence of chunks covering text. Text no longer
// than maxChunkSize yields exactly one chunk and empty text yields none.
// The sequence can be ranged any number of times.
//
// Dropping the first overlap runes of every chunk after the first and
// concatenating reconstructs text exactly.
func Split(documentID, text string, maxChunkSize, overlap int) (iter.Seq[domain.Chunk], error) {
	cfg := domain.ChunkConfig{MaxSize: maxChunkSize, Overlap: overlap}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runes := []rune(text)

	return func(yield func(domain.Chunk) bool) {
		n := len(runes)
		start, index, shared := 0, 0, 0

		for start < n {
			end := n
			if n-start > maxChunkSize {
				end = breakPoint(runes, start, start+maxChunkSize, overlap)
			}

			chunk := domain.Chunk{
				DocumentID:  documentID,
				Index:       index,
				Content:     string(runes[start:end]),
				Start:       start,
				End:         end,
				OverlapPrev: shared,
			}
			if !yield(chunk) || end == n {
				return
			}

			start = end - overlap
			shared = overlap
			index++
		}
	}, nil
}

// breakPoint picks the end of the window [start, limit). It prefers, in
// order, a paragraph break, a line break, a sentence end and any
// whitespace, taking the latest match in the last tenth of the window.
// The chunk must stay longer than the overlap so the next window starts
// after this one. Falls back to limit.
func breakPoint(runes []rune, start, limit, overlap int) int {
	lo := limit - (limit-start)/breakWindowDivisor
	if floor := start + overlap + 1; lo < floor {
		lo = floor
	}
	if lo < start+2 {
		lo = start + 2
	}
	if lo > limit {
		return limit
	}

	matchers := []func(prev2, prev rune) bool{
		func(prev2, prev rune) bool { return prev2 == '\n' && prev == '\n' },
		func(_, prev rune) bool { return prev == '\n' },
		func(prev2, prev rune) bool { return isSentenceEnd(prev2) && unicode.IsSpace(prev) },
		func(_, prev rune) bool { return unicode.IsSpace(prev) },
	}

	for _, match := range matchers {
		for i := limit; i >= lo; i-- {
			if match(runes[i-2], runes[i-1]) {
				return i
			}
		}
	}
	return limit
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
