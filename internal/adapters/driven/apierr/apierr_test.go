package apierr

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
		wantKind  domain.ErrorKind
	}{
		{"rate limited", http.StatusTooManyRequests, true, domain.ErrorKindTransient},
		{"server error", http.StatusInternalServerError, true, domain.ErrorKindTransient},
		{"bad gateway", http.StatusBadGateway, true, domain.ErrorKindTransient},
		{"request timeout", http.StatusRequestTimeout, true, domain.ErrorKindTransient},
		{"unauthorized", http.StatusUnauthorized, false, domain.ErrorKindConfig},
		{"model not found", http.StatusNotFound, false, domain.ErrorKindConfig},
		{"bad request", http.StatusBadRequest, false, domain.ErrorKindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromStatus("test", tt.status, nil, []byte(`{"error":"boom"}`))
			require.Error(t, err)
			assert.Equal(t, tt.transient, domain.IsTransient(err))
			assert.Equal(t, tt.wantKind, domain.Classify(err))
			assert.Contains(t, err.Error(), "boom")
		})
	}
}

func TestFromStatus_RetryAfter(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "3")

	err := FromStatus("test", http.StatusTooManyRequests, header, nil)

	var rl *domain.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 3*time.Second, rl.RetryAfter)
}

func TestFromStatus_TruncatesBody(t *testing.T) {
	err := FromStatus("test", http.StatusBadRequest, nil, []byte(strings.Repeat("x", 2000)))
	assert.Less(t, len(err.Error()), 700)
}

func TestFromTransport(t *testing.T) {
	assert.NoError(t, FromTransport("test", nil))

	err := FromTransport("test", errors.New("dial tcp: connection refused"))
	assert.True(t, domain.IsTransient(err))

	err = FromTransport("test", context.Canceled)
	assert.Equal(t, context.Canceled, err)
}

func TestRetryAfter(t *testing.T) {
	assert.Zero(t, RetryAfter(nil))
	assert.Zero(t, RetryAfter(http.Header{"Retry-After": []string{"soon"}}))
	assert.Equal(t, 10*time.Second, RetryAfter(http.Header{"Retry-After": []string{"10"}}))

	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	d := RetryAfter(http.Header{"Retry-After": []string{future}})
	assert.Greater(t, d, 50*time.Second)
}
