package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

func numberedTexts(n int) []string {
	texts := make([]string, n)
	for i := range texts {
		texts[i] = strconv.Itoa(i)
	}
	return texts
}

// indexVectors encodes each text's number in the first component.
func indexVectors(_ int, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		n, err := strconv.Atoi(text)
		if err != nil {
			return nil, err
		}
		out[i] = []float32{float32(n), 1}
	}
	return out, nil
}

func TestEmbedder_PreservesOrderAcrossBatches(t *testing.T) {
	svc := newStubEmbedding(2)
	svc.embedFn = func(call int, texts []string) ([][]float32, error) {
		// Later batches answer first.
		time.Sleep(time.Duration(10-call) * time.Millisecond)
		return indexVectors(call, texts)
	}
	e := NewEmbedder(svc, domain.EmbeddingConfig{BatchSize: 2, MaxInFlight: 3, Retry: testRetry})

	vectors, err := e.Embed(context.Background(), numberedTexts(7))
	require.NoError(t, err)
	require.Len(t, vectors, 7)
	for i, v := range vectors {
		assert.Equal(t, float32(i), v[0], "text %d", i)
	}
	assert.Equal(t, 4, svc.callCount())
	for _, batch := range svc.batches {
		assert.LessOrEqual(t, len(batch), 2)
	}
}

func TestEmbedder_EmptyInput(t *testing.T) {
	svc := newStubEmbedding(2)
	e := NewEmbedder(svc, testEmbeddingConfig())

	vectors, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Zero(t, svc.callCount())
}

func TestEmbedder_RetriesTransientFailure(t *testing.T) {
	svc := newStubEmbedding(2)
	svc.embedFn = func(call int, texts []string) ([][]float32, error) {
		if call < 3 {
			return nil, fmt.Errorf("connection refused: %w", domain.ErrServiceTransient)
		}
		return indexVectors(call, texts)
	}
	e := NewEmbedder(svc, testEmbeddingConfig())

	vectors, err := e.Embed(context.Background(), numberedTexts(3))
	require.NoError(t, err)
	assert.Len(t, vectors, 3)
	assert.Equal(t, 3, svc.callCount())
}

func TestEmbedder_RetriesRateLimit(t *testing.T) {
	svc := newStubEmbedding(2)
	svc.embedFn = func(call int, texts []string) ([][]float32, error) {
		if call == 1 {
			return nil, &domain.RateLimitError{RetryAfter: 5 * time.Millisecond, Err: errors.New("429")}
		}
		return indexVectors(call, texts)
	}
	cfg := testEmbeddingConfig()
	cfg.RatePerSecond = 1000
	e := NewEmbedder(svc, cfg)

	_, err := e.Embed(context.Background(), numberedTexts(1))
	require.NoError(t, err)
	assert.Equal(t, 2, svc.callCount())
}

func TestEmbedder_ExhaustedRetriesFailWholeCall(t *testing.T) {
	svc := newStubEmbedding(2)
	svc.embedFn = func(_ int, _ []string) ([][]float32, error) {
		return nil, fmt.Errorf("503: %w", domain.ErrServiceTransient)
	}
	e := NewEmbedder(svc, testEmbeddingConfig())

	vectors, err := e.Embed(context.Background(), numberedTexts(3))
	require.Error(t, err)
	assert.Nil(t, vectors)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.ErrorIs(t, err, domain.ErrServiceTransient)

	var failure *domain.EmbeddingFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 0, failure.Offset)
	assert.Equal(t, 3, failure.Count)
	assert.Equal(t, testRetry.MaxRetries+1, failure.Attempts)
	assert.Equal(t, testRetry.MaxRetries+1, svc.callCount())
}

func TestEmbedder_FailureNamesBatch(t *testing.T) {
	svc := newStubEmbedding(2)
	svc.embedFn = func(call int, texts []string) ([][]float32, error) {
		if texts[0] == "4" {
			return nil, errors.New("model crashed")
		}
		return indexVectors(call, texts)
	}
	e := NewEmbedder(svc, domain.EmbeddingConfig{BatchSize: 2, MaxInFlight: 1, Retry: testRetry})

	_, err := e.Embed(context.Background(), numberedTexts(6))

	var failure *domain.EmbeddingFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 4, failure.Offset)
	assert.Equal(t, 2, failure.Count)
	assert.Equal(t, 1, failure.Attempts, "non-transient errors are not retried")
}

func TestEmbedder_WrongVectorCount(t *testing.T) {
	svc := newStubEmbedding(2)
	svc.embedFn = func(_ int, _ []string) ([][]float32, error) {
		return [][]float32{{1, 2}}, nil
	}
	e := NewEmbedder(svc, testEmbeddingConfig())

	_, err := e.Embed(context.Background(), numberedTexts(2))
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Equal(t, 1, svc.callCount())
}

func TestEmbedder_EmptyVector(t *testing.T) {
	svc := newStubEmbedding(2)
	svc.embedFn = func(_ int, texts []string) ([][]float32, error) {
		return make([][]float32, len(texts)), nil
	}
	e := NewEmbedder(svc, testEmbeddingConfig())

	_, err := e.Embed(context.Background(), numberedTexts(1))
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestEmbedder_DimensionDrift(t *testing.T) {
	svc := newStubEmbedding(4)
	e := NewEmbedder(svc, testEmbeddingConfig())

	_, err := e.Embed(context.Background(), []string{"first"})
	require.NoError(t, err)
	assert.Equal(t, 4, e.Dimensions())

	svc.dims = 8
	_, err = e.Embed(context.Background(), []string{"second"})
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)

	var mismatch *domain.DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 4, mismatch.Expected)
	assert.Equal(t, 8, mismatch.Got)
	assert.Equal(t, 2, svc.callCount(), "dimension mismatches are not retried")
}

func TestEmbedder_DimensionsArePerModel(t *testing.T) {
	svc := newStubEmbedding(4)
	e := NewEmbedder(svc, testEmbeddingConfig())

	_, err := e.Embed(context.Background(), []string{"first"})
	require.NoError(t, err)

	svc.model = "other-model"
	svc.dims = 8
	_, err = e.Embed(context.Background(), []string{"second"})
	require.NoError(t, err)
	assert.Equal(t, 8, e.Dimensions())
}

func TestEmbedder_Cancelled(t *testing.T) {
	svc := newStubEmbedding(2)
	e := NewEmbedder(svc, testEmbeddingConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Embed(ctx, numberedTexts(10))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestEmbedder_CancelDuringBackoff(t *testing.T) {
	svc := newStubEmbedding(2)
	svc.embedFn = func(_ int, _ []string) ([][]float32, error) {
		return nil, domain.ErrServiceTransient
	}
	cfg := testEmbeddingConfig()
	cfg.Retry = domain.RetryPolicy{MaxRetries: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour}
	e := NewEmbedder(svc, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := e.Embed(ctx, numberedTexts(1))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestEmbedder_EmbedOne(t *testing.T) {
	svc := newStubEmbedding(8)
	e := NewEmbedder(svc, testEmbeddingConfig())

	v, err := e.EmbedOne(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, 8, v.Dimensions())
	assert.Equal(t, "stub-embed", e.ModelName())
}
