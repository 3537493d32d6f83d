package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"modelcache/internal/modelerr"
	"modelcache/internal/preload"
	"modelcache/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case errors.As(err, &he):
		return he.StatusCode()
	case modelerr.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, preload.ErrQueueFull):
		return http.StatusTooManyRequests
	case modelerr.IsCapacityExceeded(err):
		return http.StatusInsufficientStorage
	case modelerr.IsDependencyUnavailable(err), modelerr.IsClosed(err):
		return http.StatusServiceUnavailable
	case modelerr.IsLoadFailure(err):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger().Error().Err(err).Msg("encode response")
	}
}
