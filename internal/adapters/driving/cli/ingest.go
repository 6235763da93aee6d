package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragdesk/internal/connectors/filesystem"
	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

var (
	ingestType string
	addTextID  string
)

// stdin is the input read by add-text and chat. Replaced in tests.
var stdin io.Reader = os.Stdin

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Add files or directories to a collection",
	Long: `Loads, chunks and embeds documents, then stores them in the collection.

Directories are walked recursively. Hidden entries are skipped, as are files
whose type cannot be detected from the extension. Supported types: pdf, docx,
markdown (.md) and text (.txt).

Ingesting a file again replaces its previous chunks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var addTextCmd = &cobra.Command{
	Use:   "add-text [text]",
	Short: "Add inline text to a collection",
	Long: `Stores free text as a plain text document.

Without an argument the text is read from standard input. The document id
defaults to a hash of the text, so adding the same text twice is a no-op.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAddText,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestType, "type", "t", "", "treat every file as this type instead of detecting it")
	addTextCmd.Flags().StringVar(&addTextID, "id", "", "document id (default: derived from the text)")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(addTextCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	var opts []filesystem.Option
	if ingestType != "" {
		t, err := domain.ParseDocumentType(ingestType)
		if err != nil {
			return err
		}
		opts = append(opts, filesystem.WithType(t))
	}

	docs, skipped, err := filesystem.New(opts...).Collect(cmd.Context(), args)
	if err != nil {
		return err
	}

	st := newStyles(cmd.OutOrStdout())
	for _, s := range skipped {
		cmd.Println(st.Muted.Render(fmt.Sprintf("  skipped %s: %s", s.Path, s.Reason)))
	}
	if len(docs) == 0 {
		cmd.Println("No documents to ingest.")
		return nil
	}

	p, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	collection := collectionName(p)

	reports, err := p.Ingest.IngestAll(cmd.Context(), collection, docs)

	ingested := 0
	for i, r := range reports {
		if r.Chunks == 0 {
			cmd.Println(st.Error.Render("  ✗ " + docs[i].ID))
			continue
		}
		ingested++
		cmd.Printf("  %s %s (%s, %d chunks, %s)\n",
			st.Success.Render("✓"), docs[i].ID, r.Type, r.Chunks, r.Duration.Round(time.Millisecond))
	}
	cmd.Printf("Ingested %d of %d document(s) into %q.\n", ingested, len(docs), collection)
	return err
}

func runAddText(cmd *cobra.Command, args []string) error {
	var text string
	if len(args) == 1 {
		text = args[0]
	} else {
		if isTerminal(stdin) {
			return errors.New("no text given: pass it as an argument or pipe it on stdin")
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: text is empty", domain.ErrInvalidInput)
	}

	p, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	collection := collectionName(p)

	doc := domain.NewTextDocument(addTextID, text)
	report, err := p.Ingest.Ingest(cmd.Context(), collection, doc)
	if err != nil {
		return err
	}

	cmd.Printf("Added %s (%d chunks) to %q.\n", report.DocumentID, report.Chunks, collection)
	return nil
}
