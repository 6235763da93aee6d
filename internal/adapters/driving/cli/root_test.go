package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdesk/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
	"github.com/custodia-labs/ragdesk/internal/core/services"
	"github.com/custodia-labs/ragdesk/internal/normalisers/markdown"
	"github.com/custodia-labs/ragdesk/internal/normalisers/plaintext"
	"github.com/custodia-labs/ragdesk/internal/postprocessors/chunker"
)

// fakeEmbedding hashes words into a small bag-of-words vector, so identical
// texts have similarity 1.
type fakeEmbedding struct{}

func (fakeEmbedding) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, 32)
		for _, w := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(strings.Trim(w, ".,!?")))
			v[h.Sum32()%32]++
		}
		out[i] = v
	}
	return out, nil
}

func (fakeEmbedding) ModelName() string           { return "fake-embed" }
func (fakeEmbedding) Ping(_ context.Context) error { return nil }
func (fakeEmbedding) Close() error                 { return nil }

// fakeLLM answers every prompt with reply, or fails with err.
type fakeLLM struct {
	reply string
	err   error
}

func (f *fakeLLM) Generate(_ context.Context, _ string, _ driven.GenerateOptions) (string, error) {
	return f.reply, f.err
}

func (f *fakeLLM) ModelName() string           { return "fake-llm" }
func (f *fakeLLM) Ping(_ context.Context) error { return nil }
func (f *fakeLLM) Close() error                 { return nil }

// testEnv is the state shared by one test's command invocations.
type testEnv struct {
	store *memory.VectorStore
	llm   *fakeLLM
	opts  []PipelineOptions
}

// setupTestServices installs a pipeline over an in-memory store with fake
// providers and resets the global flags. Cleanup restores the previous
// services.
func setupTestServices(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store: memory.NewVectorStore(),
		llm:   &fakeLLM{reply: "The sky is blue."},
	}

	cfg := domain.DefaultConfig()
	cfg.Vector.Backend = domain.VectorBackendMemory
	cfg.Embedding.Retry.MaxRetries = 0
	cfg.LLM.Retry.MaxRetries = 0

	settings := services.NewSettingsService(memory.NewConfigStore(), nil, t.TempDir())
	settings.SetEnv(func(string) string { return "" })

	prevSettings, prevFactory, prevStdin := settingsService, newPipeline, stdin
	settingsService = settings
	newPipeline = func(_ context.Context, opts PipelineOptions) (*Pipeline, error) {
		env.opts = append(env.opts, opts)

		chunks, err := chunker.New(chunker.WithChunkSize(cfg.Chunk.MaxSize), chunker.WithOverlap(cfg.Chunk.Overlap))
		if err != nil {
			return nil, err
		}
		embedder := services.NewEmbedder(fakeEmbedding{}, cfg.Embedding)
		retriever := services.NewRetrievalService(embedder, env.store, cfg.Retrieval.SimilarityFloor)
		loader := services.NewLoader(plaintext.New(), markdown.New())

		return &Pipeline{
			Ingest:      services.NewIngestService(loader, chunks, embedder, env.store, 2),
			Retriever:   retriever,
			Answer:      services.NewOrchestrator(env.llm, retriever, nil, cfg.LLM, cfg.Retrieval),
			Collections: services.NewCollectionService(env.store),
			Config:      cfg,
		}, nil
	}
	resetFlags()

	t.Cleanup(func() {
		settingsService, newPipeline, stdin = prevSettings, prevFactory, prevStdin
		pipeline = nil
		resetFlags()
	})
	return env
}

// resetFlags restores flag variables, which persist between executions.
func resetFlags() {
	verbose = false
	collectionFlag = ""
	backendFlag = ""
	ephemeral = false
	searchLimit = domain.DefaultRetrievalK
	searchJSON = false
	askShowContext = false
	ingestType = ""
	addTextID = ""
}

// execute runs the root command with args and returns everything written.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

// addText stores text through the add-text command.
func addText(t *testing.T, id, text string) {
	t.Helper()
	_, err := execute(t, "add-text", "--id", id, text)
	require.NoError(t, err)
	addTextID = ""
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "ragdesk", rootCmd.Use)
	assert.True(t, rootCmd.SilenceUsage)
	assert.True(t, rootCmd.SilenceErrors)
}

func TestRootCmd_GlobalFlags(t *testing.T) {
	for _, name := range []string{"verbose", "collection", "backend", "ephemeral"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "v", rootCmd.PersistentFlags().Lookup("verbose").Shorthand)
	assert.Equal(t, "c", rootCmd.PersistentFlags().Lookup("collection").Shorthand)
}

func TestOpenPipeline_NotConfigured(t *testing.T) {
	setupTestServices(t)
	newPipeline = nil

	_, err := execute(t, "search", "anything")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline not configured")
}

func TestOpenPipeline_PassesOptions(t *testing.T) {
	env := setupTestServices(t)

	_, err := execute(t, "--backend", "chromem", "--ephemeral", "collections")

	require.NoError(t, err)
	require.Len(t, env.opts, 1)
	assert.Equal(t, PipelineOptions{Backend: domain.VectorBackendChromem, Ephemeral: true}, env.opts[0])
}

func TestOpenPipeline_UnknownBackend(t *testing.T) {
	env := setupTestServices(t)

	_, err := execute(t, "--backend", "redis", "collections")

	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Empty(t, env.opts)
}

func TestOpenPipeline_FactoryError(t *testing.T) {
	setupTestServices(t)
	newPipeline = func(context.Context, PipelineOptions) (*Pipeline, error) {
		return nil, fmt.Errorf("%w: store locked", domain.ErrServiceTransient)
	}

	_, err := execute(t, "collections")

	assert.ErrorIs(t, err, domain.ErrServiceTransient)
}

func TestClosePipeline(t *testing.T) {
	closed := 0
	pipeline = &Pipeline{Close: func() error { closed++; return errors.New("close failed") }}

	err := closePipeline()

	assert.EqualError(t, err, "close failed")
	assert.Equal(t, 1, closed)
	assert.Nil(t, pipeline)
	assert.NoError(t, closePipeline())
}

func TestCollectionName(t *testing.T) {
	setupTestServices(t)
	p := &Pipeline{Config: domain.Config{Vector: domain.VectorConfig{Collection: "configured"}}}

	assert.Equal(t, "configured", collectionName(p))

	collectionFlag = "flagged"
	assert.Equal(t, "flagged", collectionName(p))
}

func TestPrintError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantHint bool
	}{
		{"input error has a hint", fmt.Errorf("load: %w", domain.ErrUnsupportedFormat), true},
		{"transient error has a hint", domain.ErrGenerationUnavailable, true},
		{"unknown error has none", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			printError(buf, tt.err)

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			assert.Equal(t, "Error: "+tt.err.Error(), lines[0])
			if tt.wantHint {
				require.Len(t, lines, 2)
				assert.Equal(t, domain.Classify(tt.err).Hint(), lines[1])
			} else {
				assert.Len(t, lines, 1)
			}
		})
	}
}

func TestExecute_PrintsErrors(t *testing.T) {
	setupTestServices(t)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"delete", "missing.txt"})
	defer rootCmd.SetArgs(nil)

	err := Execute(context.Background())

	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, buf.String(), "Error: ")
}

// withStdin replaces the command input for the test.
func withStdin(t *testing.T, r io.Reader) {
	t.Helper()
	stdin = r
	t.Cleanup(func() { stdin = os.Stdin })
}
