package mcp

import (
	"context"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// mockRetriever is a mock implementation of driving.Retriever.
type mockRetriever struct {
	results domain.RetrievalResult
	err     error

	gotCollection string
	gotQuery      string
	gotK          int
}

func (m *mockRetriever) Retrieve(
	_ context.Context, _, _ string, _, _ int,
) (domain.RetrievedContext, error) {
	return domain.RetrievedContext{}, m.err
}

func (m *mockRetriever) Search(
	_ context.Context, collection, query string, k int,
) (domain.RetrievalResult, error) {
	m.gotCollection, m.gotQuery, m.gotK = collection, query, k
	return m.results, m.err
}

// mockIngest is a mock implementation of driving.IngestService.
type mockIngest struct {
	err error

	gotCollection string
	gotDoc        domain.Document
}

func (m *mockIngest) Ingest(
	_ context.Context, collection string, doc domain.Document,
) (domain.IngestReport, error) {
	m.gotCollection, m.gotDoc = collection, doc
	if m.err != nil {
		return domain.IngestReport{}, m.err
	}
	return domain.IngestReport{DocumentID: doc.ID, Type: doc.Type, Chunks: 2}, nil
}

func (m *mockIngest) IngestAll(
	_ context.Context, _ string, _ []domain.Document,
) ([]domain.IngestReport, error) {
	return nil, m.err
}

// mockAnswer is a mock implementation of driving.AnswerService.
type mockAnswer struct {
	result domain.AskResult
	err    error
}

func (m *mockAnswer) Answer(
	_ context.Context, _, _ string, _ []domain.ConversationTurn,
) (domain.ConversationTurn, error) {
	return m.result.Turn, m.err
}

func (m *mockAnswer) Ask(
	_ context.Context, _, _ string, _ []domain.ConversationTurn,
) (domain.AskResult, error) {
	return m.result, m.err
}

// mockCollections is a mock implementation of driving.CollectionService.
type mockCollections struct {
	infos   []domain.CollectionInfo
	deleted int
	err     error
}

func (m *mockCollections) List(_ context.Context) ([]domain.CollectionInfo, error) {
	return m.infos, m.err
}

func (m *mockCollections) DeleteDocument(_ context.Context, _, _ string) (int, error) {
	return m.deleted, m.err
}

func (m *mockCollections) Purge(_ context.Context, _ string) error {
	return m.err
}
