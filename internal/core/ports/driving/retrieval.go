package driving

import (
	"context"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// Retriever finds stored records relevant to a query.
type Retriever interface {
	// Retrieve assembles a token-bounded context for the query. When nothing
	// qualifies the context text is domain.NoContext and Found is false.
	Retrieve(ctx context.Context, collection, query string, k, maxContextTokens int) (domain.RetrievedContext, error)

	// Search returns the raw ranked records without budget or floor.
	Search(ctx context.Context, collection, query string, k int) (domain.RetrievalResult, error)
}

// AnswerService generates grounded answers.
type AnswerService interface {
	// Answer generates a reply to query conditioned on contextText and history.
	// Fails with domain.ErrGenerationUnavailable rather than fabricating a reply.
	Answer(ctx context.Context, query, contextText string, history []domain.ConversationTurn) (domain.ConversationTurn, error)

	// Ask retrieves context for query from the collection and answers it.
	Ask(ctx context.Context, collection, query string, history []domain.ConversationTurn) (domain.AskResult, error)
}
