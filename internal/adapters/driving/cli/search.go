package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

var (
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Show the stored passages nearest to a query",
	Long: `Embeds the query and lists the nearest stored chunks by cosine similarity.
No similarity floor or token budget is applied and no answer is generated.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "k", domain.DefaultRetrievalK, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

// searchResult is the JSON form of a search hit.
type searchResult struct {
	DocumentID   string  `json:"document_id"`
	ChunkIndex   int     `json:"chunk_index"`
	DocumentType string  `json:"document_type"`
	Similarity   float64 `json:"similarity"`
	Text         string  `json:"text"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchLimit <= 0 {
		return fmt.Errorf("%w: --limit must be positive", domain.ErrInvalidInput)
	}

	p, err := openPipeline(cmd)
	if err != nil {
		return err
	}

	results, err := p.Retriever.Search(cmd.Context(), collectionName(p), args[0], searchLimit)
	if err != nil && !errors.Is(err, domain.ErrEmptyCollection) {
		return err
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	outputSearchTable(cmd, results)
	if errors.Is(err, domain.ErrEmptyCollection) {
		cmd.Println(domain.ErrorKindNoContext.Hint())
	}
	return nil
}

func outputSearchJSON(cmd *cobra.Command, results domain.RetrievalResult) error {
	out := make([]searchResult, len(results))
	for i, r := range results {
		out[i] = searchResult{
			DocumentID:   r.Record.DocumentID,
			ChunkIndex:   r.Record.ChunkIndex,
			DocumentType: r.Record.DocumentType.String(),
			Similarity:   r.Similarity,
			Text:         r.Record.Text,
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results domain.RetrievalResult) {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return
	}

	st := newStyles(cmd.OutOrStdout())
	cmd.Println("Results:")
	cmd.Println()
	for i, r := range results {
		cmd.Printf("  [%d] %s %s\n", i+1,
			st.Label.Render(fmt.Sprintf("%s#%d", r.Record.DocumentID, r.Record.ChunkIndex)),
			st.Muted.Render(fmt.Sprintf("(%.3f)", r.Similarity)))
		cmd.Printf("      %s\n", snippet(r.Record.Text, 160))
		cmd.Println()
	}
}

// snippet flattens whitespace and cuts text to at most n runes.
func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n-1]) + "…"
}
