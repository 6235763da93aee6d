package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations return the built-in default.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
const (
	// PromptAnswer conditions the answer on retrieved context.
	// Placeholders: {{history}}, {{context}}, {{question}}.
	PromptAnswer = "answer"

	// PromptAnswerNoContext is used when retrieval found nothing relevant.
	// Placeholders: {{history}}, {{question}}.
	PromptAnswerNoContext = "answer_no_context"
)

// DefaultPrompts are the built-in templates used when no user file exists.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var DefaultPrompts = map[string]string{
	PromptAnswer: `Answer the following question based only on the provided context.
If you don't know the answer, just say that you don't know. Don't try to make up an answer.

{{history}}<context>
{{context}}
</context>

Question: {{question}}`,

	PromptAnswerNoContext: `No documents relevant to the question were found.
Say that you don't have enough information to answer it. Don't try to make up an answer.

{{history}}Question: {{question}}`,
}
