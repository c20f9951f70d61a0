package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSelector = errors.New("invalid selector")
	ErrConfiguration   = errors.New("malformed download request")
	ErrStorage         = errors.New("storage error")
	ErrBatchNotFound   = errors.New("batch not found")
	ErrShuttingDown    = errors.New("service is shutting down")
)

// ServiceError is one entry of the errors array of a 400 response.
type ServiceError struct {
	Code      int    `json:"errorCode"`
	Message   string `json:"errorMessage"`
	Parameter any    `json:"parameter"`
}

// HTTPError is returned when the ONC service answers with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Reason     string
	URL        string
	Errors     []ServiceError
}

func (e *HTTPError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "http status %d", e.StatusCode)
	if e.Reason != "" {
		fmt.Fprintf(&b, " - %s", e.Reason)
	}
	for _, se := range e.Errors {
		fmt.Fprintf(&b, "; error %d: %s (parameter: %v)", se.Code, se.Message, se.Parameter)
	}
	return b.String()
}

// StatusCode extracts the HTTP status of err, or 0 when err is not an HTTPError.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
