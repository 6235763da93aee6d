package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

// Ensure Orchestrator implements the interface.
var _ driving.AnswerService = (*Orchestrator)(nil)

// maxHistoryTurns bounds how many previous turns are replayed in a prompt.
const maxHistoryTurns = 6

// Orchestrator builds prompts from retrieved context and generates answers.
type Orchestrator struct {
	llm       driven.LLMService
	retriever driving.Retriever
	prompts   driven.PromptStore
	cfg       domain.LLMConfig
	retrieval domain.RetrievalConfig
	retry     retrier
}

// NewOrchestrator creates a generation orchestrator. prompts may be nil, in
// which case the built-in templates are used.
func NewOrchestrator(
	llm driven.LLMService,
	retriever driving.Retriever,
	prompts driven.PromptStore,
	cfg domain.LLMConfig,
	retrieval domain.RetrievalConfig,
) *Orchestrator {
	return &Orchestrator{
		llm:       llm,
		retriever: retriever,
		prompts:   prompts,
		cfg:       cfg,
		retrieval: retrieval,
		retry: retrier{
			name:   "generate " + llm.ModelName(),
			policy: cfg.Retry,
		},
	}
}

// Ask retrieves context for the query and answers it.
func (o *Orchestrator) Ask(
	ctx context.Context, collection, query string, history []domain.ConversationTurn,
) (domain.AskResult, error) {
	retrieved, err := o.retriever.Retrieve(ctx, collection, query, o.retrieval.K, o.retrieval.MaxContextTokens)
	if err != nil {
		return domain.AskResult{}, err
	}

	turn, err := o.Answer(ctx, query, retrieved.Text, history)
	if err != nil {
		return domain.AskResult{Context: retrieved}, err
	}
	return domain.AskResult{Turn: turn, Context: retrieved}, nil
}

// Answer generates a reply grounded on contextText. Exhausted retries and
// empty replies fail with domain.ErrGenerationUnavailable.
func (o *Orchestrator) Answer(
	ctx context.Context, query, contextText string, history []domain.ConversationTurn,
) (domain.ConversationTurn, error) {
	logger.Section("Generate")

	query = strings.TrimSpace(query)
	if query == "" {
		return domain.ConversationTurn{}, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}

	prompt := o.buildPrompt(query, contextText, history)
	logger.Debug("Prompt: %d characters, ~%d tokens", len(prompt), domain.EstimateTokens(prompt))

	opts := driven.GenerateOptions{
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	}

	var answer string
	attempts, err := o.retry.do(ctx, func(ctx context.Context) error {
		reply, err := o.llm.Generate(ctx, prompt, opts)
		if err != nil {
			return err
		}
		reply = strings.TrimSpace(reply)
		if reply == "" {
			return fmt.Errorf("%w: empty reply", domain.ErrServiceTransient)
		}
		answer = reply
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return domain.ConversationTurn{}, ctx.Err()
		}
		return domain.ConversationTurn{}, fmt.Errorf("%w: %s after %d attempt(s): %w",
			domain.ErrGenerationUnavailable, o.llm.ModelName(), attempts, err)
	}

	logger.Debug("Answer: %d characters in %d attempt(s)", len(answer), attempts)
	return domain.ConversationTurn{Query: query, Context: contextText, Answer: answer}, nil
}

// buildPrompt fills the answer template.
func (o *Orchestrator) buildPrompt(query, contextText string, history []domain.ConversationTurn) string {
	name := driven.PromptAnswer
	if contextText == "" || contextText == domain.NoContext {
		name = driven.PromptAnswerNoContext
		contextText = domain.NoContext
	}

	r := strings.NewReplacer(
		"{{history}}", renderHistory(history),
		"{{context}}", contextText,
		"{{question}}", query,
	)
	return r.Replace(o.template(name))
}

// template loads a prompt, falling back to the built-in default.
func (o *Orchestrator) template(name string) string {
	if o.prompts != nil {
		tmpl, err := o.prompts.Load(name)
		if err == nil && strings.TrimSpace(tmpl) != "" {
			return tmpl
		}
		if err != nil {
			logger.Warn("load prompt %q: %v", name, err)
		}
	}
	return driven.DefaultPrompts[name]
}

// renderHistory formats the most recent turns as a transcript.
func renderHistory(history []domain.ConversationTurn) string {
	if len(history) == 0 {
		return ""
	}
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}

	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	for _, t := range history {
		fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", t.Query, t.Answer)
	}
	b.WriteString("\n")
	return b.String()
}
