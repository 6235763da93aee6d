// Package cli provides the ragdesk command line interface.
//
// Commands reach the pipeline through driving ports only. The pipeline is
// assembled on first use by the factory registered with SetPipelineFactory,
// so commands such as settings and version work without a reachable model
// server or a valid vector store.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

// version is set at build time.
var version = "dev"

// Pipeline holds the driving ports built from the effective configuration.
type Pipeline struct {
	Ingest      driving.IngestService
	Retriever   driving.Retriever
	Answer      driving.AnswerService
	Collections driving.CollectionService

	// Config is the configuration the pipeline was built from.
	Config domain.Config

	// Close releases the vector store and provider clients. May be nil.
	Close func() error
}

// PipelineOptions are the global flags that change how the pipeline is built.
type PipelineOptions struct {
	// Backend overrides vector.backend when set.
	Backend domain.VectorBackend

	// Ephemeral keeps vectors in memory for this invocation only.
	Ephemeral bool
}

// PipelineFactory builds the pipeline.
type PipelineFactory func(ctx context.Context, opts PipelineOptions) (*Pipeline, error)

// Global flags.
var (
	verbose        bool
	collectionFlag string
	backendFlag    string
	ephemeral      bool
)

// Services set by the application.
var (
	settingsService driving.SettingsService
	newPipeline     PipelineFactory
	pipeline        *Pipeline
)

var rootCmd = &cobra.Command{
	Use:   "ragdesk",
	Short: "Ask questions about your documents",
	Long: `ragdesk ingests PDF, Word, Markdown and text documents into a local
vector store and answers questions using only what those documents say.

Embeddings and answers come from a local Ollama server by default. OpenAI,
Anthropic and Gemini can be configured with 'ragdesk settings set'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return closePipeline()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print pipeline stages and timings")
	rootCmd.PersistentFlags().StringVarP(&collectionFlag, "collection", "c", "",
		"collection to use (default from vector.collection)")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "",
		"vector store backend: sqlite, chromem, qdrant or memory")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false,
		"keep vectors in memory for this run only")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetSettingsService sets the settings service.
func SetSettingsService(s driving.SettingsService) {
	settingsService = s
}

// SetPipelineFactory sets the function that builds the pipeline on first use.
func SetPipelineFactory(f PipelineFactory) {
	newPipeline = f
}

// Execute runs the root command. Errors are printed with a hint derived
// from their kind before being returned.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if cerr := closePipeline(); err == nil {
		err = cerr
	}
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

// openPipeline returns the pipeline, building it on first call.
func openPipeline(cmd *cobra.Command) (*Pipeline, error) {
	if pipeline != nil {
		return pipeline, nil
	}
	if newPipeline == nil {
		return nil, errors.New("pipeline not configured")
	}

	opts := PipelineOptions{Ephemeral: ephemeral}
	if backendFlag != "" {
		opts.Backend = domain.VectorBackend(backendFlag)
		if !opts.Backend.IsValid() {
			return nil, fmt.Errorf("%w: unknown backend %q", domain.ErrInvalidConfig, backendFlag)
		}
	}

	p, err := newPipeline(cmd.Context(), opts)
	if err != nil {
		return nil, err
	}
	pipeline = p
	return p, nil
}

func closePipeline() error {
	if pipeline == nil {
		return nil
	}
	p := pipeline
	pipeline = nil
	if p.Close == nil {
		return nil
	}
	return p.Close()
}

// collectionName returns the --collection flag or the configured default.
func collectionName(p *Pipeline) string {
	if collectionFlag != "" {
		return collectionFlag
	}
	return p.Config.Vector.Collection
}

func printError(w io.Writer, err error) {
	st := newStyles(w)
	fmt.Fprintln(w, st.Error.Render("Error: "+err.Error()))
	if hint := domain.Classify(err).Hint(); hint != "" {
		fmt.Fprintln(w, st.Muted.Render(hint))
	}
}
