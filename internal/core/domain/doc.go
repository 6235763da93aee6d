// Package domain defines the core business entities for ragdesk.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: Raw bytes of an uploaded file or inline text, tagged by type
//   - Chunk: An ordered, overlapping text segment of a normalised document
//   - VectorRecord: A persisted (embedding, text, metadata) triple
//   - RetrievalResult: Records ranked by similarity to a query
//   - ConversationTurn: A question, its context and the generated answer
//   - Config: The immutable pipeline configuration
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
