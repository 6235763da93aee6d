package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

var askShowContext bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the collection",
	Long: `Retrieves the passages most relevant to the question and asks the
language model to answer using only those passages. When nothing relevant
is stored the model is told so and will say it does not know.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask follow-up questions interactively",
	Long: `Starts a conversation with the collection. Earlier questions and answers
are included in each prompt so follow-up questions can refer to them.

Type 'exit' or press Ctrl-D to leave, 'reset' to clear the history.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	askCmd.Flags().BoolVar(&askShowContext, "show-context", false, "print the passages the answer was based on")
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(args[0])
	if question == "" {
		return fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}

	p, err := openPipeline(cmd)
	if err != nil {
		return err
	}

	result, err := p.Answer.Ask(cmd.Context(), collectionName(p), question, nil)
	if err != nil {
		return err
	}

	printAnswer(cmd, result, askShowContext)
	return nil
}

func runChat(cmd *cobra.Command, _ []string) error {
	p, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	collection := collectionName(p)
	st := newStyles(cmd.OutOrStdout())

	cmd.Println(st.Title.Render("ragdesk chat") + st.Muted.Render(fmt.Sprintf(" (collection %q)", collection)))
	cmd.Println(st.Muted.Render("Type 'exit' to quit, 'reset' to clear the history."))

	var history []domain.ConversationTurn
	scanner := bufio.NewScanner(stdin)
	for {
		cmd.Print(st.Label.Render("> "))
		if !scanner.Scan() {
			cmd.Println()
			return scanner.Err()
		}

		question := strings.TrimSpace(scanner.Text())
		switch question {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "reset":
			history = nil
			cmd.Println(st.Muted.Render("History cleared."))
			continue
		}

		result, err := p.Answer.Ask(cmd.Context(), collection, question, history)
		if err != nil {
			if cmd.Context().Err() != nil {
				return err
			}
			printError(cmd.ErrOrStderr(), err)
			continue
		}

		printAnswer(cmd, result, false)
		history = append(history, result.Turn)
	}
}

func printAnswer(cmd *cobra.Command, result domain.AskResult, showContext bool) {
	st := newStyles(cmd.OutOrStdout())

	cmd.Println(st.Answer.Render(result.Turn.Answer))

	if !result.Context.Found {
		cmd.Println(st.Muted.Render("  (no relevant passages found)"))
		return
	}

	cmd.Println()
	cmd.Println(st.Label.Render("Sources"))
	seen := make(map[string]bool)
	for _, r := range result.Context.Results {
		if seen[r.Record.DocumentID] {
			continue
		}
		seen[r.Record.DocumentID] = true
		cmd.Printf("  %s %s\n", r.Record.DocumentID, st.Muted.Render(fmt.Sprintf("(%.2f)", r.Similarity)))
	}

	if showContext {
		cmd.Println()
		cmd.Println(st.Label.Render("Context"))
		cmd.Println(result.Context.Text)
	}
}
