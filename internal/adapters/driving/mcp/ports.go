package mcp

import (
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server calls.
type Ports struct {
	// Retriever searches the collection. Required.
	Retriever driving.Retriever

	// Ingest stores new text. Optional.
	Ingest driving.IngestService

	// Answer generates grounded answers. Optional.
	Answer driving.AnswerService

	// Collections lists collections and deletes documents. Optional.
	Collections driving.CollectionService

	// Collection is used when a tool call names none.
	Collection string
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Retriever == nil {
		return ErrMissingRetriever
	}
	return nil
}

func (p *Ports) collection(name string) string {
	if name != "" {
		return name
	}
	return p.Collection
}
