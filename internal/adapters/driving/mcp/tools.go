package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

// defaultSearchLimit is used when a search call gives no k.
const defaultSearchLimit = domain.DefaultRetrievalK

// IngestTextInput is the input schema for the ingest_text tool.
type IngestTextInput struct {
	Text       string `json:"text" jsonschema:"the text to store"`
	DocumentID string `json:"document_id,omitempty" jsonschema:"id for the document (default: derived from the text)"`
	Collection string `json:"collection,omitempty" jsonschema:"collection to store into (default: the server's collection)"`
}

// IngestTextOutput is the output schema for the ingest_text tool.
type IngestTextOutput struct {
	RequestID  string `json:"request_id"`
	DocumentID string `json:"document_id"`
	Collection string `json:"collection"`
	Chunks     int    `json:"chunks"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query      string `json:"query" jsonschema:"the text to find similar passages for"`
	K          int    `json:"k,omitempty" jsonschema:"maximum number of results (default 3)"`
	Collection string `json:"collection,omitempty" jsonschema:"collection to search (default: the server's collection)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []Passage `json:"results"`
	Count   int       `json:"count"`
}

// Passage is one stored chunk with its similarity to the query.
type Passage struct {
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Similarity float64 `json:"similarity"`
	Text       string  `json:"text"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question   string `json:"question" jsonschema:"the question to answer from the stored documents"`
	Collection string `json:"collection,omitempty" jsonschema:"collection to answer from (default: the server's collection)"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer  string    `json:"answer"`
	Found   bool      `json:"found"`
	Sources []Passage `json:"sources"`
}

// DeleteDocumentInput is the input schema for the delete_document tool.
type DeleteDocumentInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document to remove"`
	Collection string `json:"collection,omitempty" jsonschema:"collection to remove from (default: the server's collection)"`
}

// DeleteDocumentOutput is the output schema for the delete_document tool.
type DeleteDocumentOutput struct {
	Deleted int `json:"deleted"`
}

// ListCollectionsInput is the empty input of the list_collections tool.
type ListCollectionsInput struct{}

// ListCollectionsOutput is the output schema for the list_collections tool.
type ListCollectionsOutput struct {
	Collections []CollectionOutput `json:"collections"`
}

// CollectionOutput describes one collection.
type CollectionOutput struct {
	Name       string `json:"name"`
	Count      int    `json:"count"`
	Dimensions int    `json:"dimensions"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_text",
		Description: "Store text so later searches and questions can use it",
	}, s.handleIngestText)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Find the stored passages most similar to a query",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question using only the stored documents",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_document",
		Description: "Remove every stored passage of a document",
	}, s.handleDeleteDocument)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_collections",
		Description: "List collections with their passage count and embedding size",
	}, s.handleListCollections)
}

func (s *Server) handleIngestText(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestTextInput,
) (*mcp.CallToolResult, IngestTextOutput, error) {
	if s.ports.Ingest == nil {
		return nil, IngestTextOutput{}, errUnavailable
	}

	requestID := uuid.NewString()
	collection := s.ports.collection(input.Collection)
	doc := domain.NewTextDocument(input.DocumentID, input.Text)
	logger.Debug("MCP ingest_text %s: %s into %q", requestID, doc.ID, collection)

	report, err := s.ports.Ingest.Ingest(ctx, collection, doc)
	if err != nil {
		return nil, IngestTextOutput{}, err
	}

	return nil, IngestTextOutput{
		RequestID:  requestID,
		DocumentID: report.DocumentID,
		Collection: collection,
		Chunks:     report.Chunks,
	}, nil
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	k := input.K
	if k <= 0 {
		k = defaultSearchLimit
	}

	results, err := s.ports.Retriever.Search(ctx, s.ports.collection(input.Collection), input.Query, k)
	if errors.Is(err, domain.ErrEmptyCollection) {
		return nil, SearchOutput{Results: []Passage{}}, nil
	}
	if err != nil {
		return nil, SearchOutput{}, err
	}

	passages := toPassages(results)
	return nil, SearchOutput{Results: passages, Count: len(passages)}, nil
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	if s.ports.Answer == nil {
		return nil, AskOutput{}, errUnavailable
	}

	result, err := s.ports.Answer.Ask(ctx, s.ports.collection(input.Collection), input.Question, nil)
	if err != nil {
		return nil, AskOutput{}, err
	}

	return nil, AskOutput{
		Answer:  result.Turn.Answer,
		Found:   result.Context.Found,
		Sources: toPassages(result.Context.Results),
	}, nil
}

func (s *Server) handleDeleteDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DeleteDocumentInput,
) (*mcp.CallToolResult, DeleteDocumentOutput, error) {
	if s.ports.Collections == nil {
		return nil, DeleteDocumentOutput{}, errUnavailable
	}

	n, err := s.ports.Collections.DeleteDocument(ctx, s.ports.collection(input.Collection), input.DocumentID)
	if err != nil {
		return nil, DeleteDocumentOutput{}, err
	}
	return nil, DeleteDocumentOutput{Deleted: n}, nil
}

func (s *Server) handleListCollections(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListCollectionsInput,
) (*mcp.CallToolResult, ListCollectionsOutput, error) {
	collections, err := s.collections(ctx)
	if err != nil {
		return nil, ListCollectionsOutput{}, err
	}
	return nil, ListCollectionsOutput{Collections: collections}, nil
}

// collections lists collections, or none when the port is missing.
func (s *Server) collections(ctx context.Context) ([]CollectionOutput, error) {
	out := []CollectionOutput{}
	if s.ports.Collections == nil {
		return out, nil
	}

	infos, err := s.ports.Collections.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	for _, info := range infos {
		out = append(out, CollectionOutput{Name: info.Name, Count: info.Count, Dimensions: info.Dimensions})
	}
	return out, nil
}

func toPassages(results domain.RetrievalResult) []Passage {
	passages := make([]Passage, len(results))
	for i, r := range results {
		passages[i] = Passage{
			DocumentID: r.Record.DocumentID,
			ChunkIndex: r.Record.ChunkIndex,
			Similarity: r.Similarity,
			Text:       r.Record.Text,
		}
	}
	return passages
}
