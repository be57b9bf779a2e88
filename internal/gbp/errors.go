package gbp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// FailureKind classifies a posting failure so the dispatcher can record a
// meaningful error code and decide what recovers on its own.
type FailureKind string

const (
	// FailureRateLimited clears once quota resets; the next cycle retries.
	FailureRateLimited FailureKind = "rate_limited"
	// FailureAuthExpired needs the user to reconnect their Google account.
	FailureAuthExpired FailureKind = "auth_expired"
	// FailureTransient covers network errors and 5xx responses.
	FailureTransient FailureKind = "transient"
	// FailurePermanent means the request itself is wrong and retrying is
	// pointless.
	FailurePermanent FailureKind = "permanent"
)

// APIError is a classified posting failure.
type APIError struct {
	Kind       FailureKind
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gbp %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("gbp %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("gbp %s (status %d)", e.Kind, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Classify extracts the failure kind from any error returned by CreatePost.
// Unknown errors are treated as transient.
func Classify(err error) FailureKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return FailureTransient
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func classifyStatus(statusCode int, payload []byte) *APIError {
	var body apiErrorBody
	_ = json.Unmarshal(payload, &body)

	apiErr := &APIError{
		StatusCode: statusCode,
		Message:    body.Error.Message,
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		apiErr.Kind = FailureRateLimited
	case statusCode == http.StatusUnauthorized:
		apiErr.Kind = FailureAuthExpired
	case statusCode == http.StatusForbidden && body.Error.Status == "PERMISSION_DENIED":
		apiErr.Kind = FailureAuthExpired
	case statusCode >= 500:
		apiErr.Kind = FailureTransient
	default:
		apiErr.Kind = FailurePermanent
	}
	return apiErr
}
