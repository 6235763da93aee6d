package domain

import "unicode/utf8"

// NoContext is substituted for the context when retrieval finds nothing
// relevant, so the prompt can tell the model there is nothing to ground on.
const NoContext = "No relevant context was found."

// charsPerToken is the heuristic used to estimate token counts.
const charsPerToken = 4

// EstimateTokens approximates the token count of s as ceil(runes / 4).
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + charsPerToken - 1) / charsPerToken
}

// RetrievedContext is the token-bounded context assembled for a query.
type RetrievedContext struct {
	// Text is the joined record text, or NoContext when Found is false.
	Text string

	// Found is false when no record qualified.
	Found bool

	// Results are the records included in Text, best first.
	Results RetrievalResult

	// Tokens is the estimated token count of Text.
	Tokens int
}

// ConversationTurn is one question with its context and answer.
type ConversationTurn struct {
	// Query is the user's question.
	Query string

	// Context is the context text the answer was conditioned on.
	Context string

	// Answer is the generated reply.
	Answer string
}

// AskResult is an answered question with the context it was grounded on.
type AskResult struct {
	Turn    ConversationTurn
	Context RetrievedContext
}
