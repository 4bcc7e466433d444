package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInternalServerError will throw if any the Internal Server Error happen
	ErrInternalServerError = errors.New("Internal Server Error")
	// ErrNotFound will throw if the requested item is not exists
	ErrNotFound = errors.New("Your requested Item is not found")
	// ErrBadParamInput will throw if the given request-body or params is not valid
	ErrBadParamInput = errors.New("Given Param is not valid")

	// ErrRateLimitExceeded will throw when the marketplace retry budget is
	// exhausted on throttled responses
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrConfigurationMissing will throw when a required identifier or api key
	// is absent; no retry
	ErrConfigurationMissing = errors.New("required configuration missing")
	// ErrMalformedResponse will throw when an upstream body cannot be decoded
	// or lacks expected fields
	ErrMalformedResponse = errors.New("malformed upstream response")

	ErrInvalidAddress = errors.New("Invalid address")
)

// ApiError carries the status and best-effort message of a failed upstream
// request
type ApiError struct {
	Status  int
	Message string
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("api request failed: %d - %s", e.Status, e.Message)
}
