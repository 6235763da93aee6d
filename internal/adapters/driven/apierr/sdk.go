package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FromOllama classifies an error returned by the Ollama API client.
func FromOllama(err error) error {
	if err == nil {
		return nil
	}
	var se api.StatusError
	if errors.As(err, &se) {
		return FromStatus("ollama", se.StatusCode, nil, []byte(se.ErrorMessage))
	}
	return fromClient("ollama", err)
}

// FromGoogle classifies an error returned by the Gemini client, which
// reports failures as gRPC statuses or googleapi errors.
func FromGoogle(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return FromStatus("gemini", gerr.Code, gerr.Header, []byte(gerr.Message))
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return FromStatus("gemini", httpStatus(st.Code()), nil, []byte(st.Message()))
	}
	return fromClient("gemini", err)
}

// fromClient handles errors that carry no status: transport failures are
// transient, anything else is reported as is.
func fromClient(provider string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return FromTransport(provider, err)
	}
	return fmt.Errorf("%s: %w", provider, err)
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unavailable, codes.Internal, codes.Aborted:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}
