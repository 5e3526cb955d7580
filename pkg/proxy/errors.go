package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

// Error is a routing-pipeline error carrying the HTTP status it maps
// to. Handlers render it as an RFC 7807 problem response.
type Error struct {
	Status int
	Title  string
	Detail string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.cause)
	}
	return e.Detail
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewBadRequest maps to 400.
func NewBadRequest(detail string) *Error {
	return &Error{Status: http.StatusBadRequest, Title: "Bad Request", Detail: detail}
}

// NewServiceUnavailable maps to 503.
func NewServiceUnavailable(detail string, cause error) *Error {
	return &Error{Status: http.StatusServiceUnavailable, Title: "Service Unavailable", Detail: detail, cause: cause}
}

// NewGatewayTimeout maps to 504.
func NewGatewayTimeout(detail string, cause error) *Error {
	return &Error{Status: http.StatusGatewayTimeout, Title: "Gateway Timeout", Detail: detail, cause: cause}
}

// NewBadGateway maps to 502.
func NewBadGateway(detail string, cause error) *Error {
	return &Error{Status: http.StatusBadGateway, Title: "Bad Gateway", Detail: detail, cause: cause}
}

// NewInternal maps to 500.
func NewInternal(detail string, cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Title: "Internal Server Error", Detail: detail, cause: cause}
}

// attemptError is the failure of one upstream attempt. Either Response
// is set (the upstream answered with a 5xx) or Transport is set.
type attemptError struct {
	Response  *UpstreamResponse
	Transport error
}

func (e *attemptError) Error() string {
	if e.Response != nil {
		return fmt.Sprintf("upstream returned status %d", e.Response.StatusCode)
	}
	return fmt.Sprintf("upstream transport error: %v", e.Transport)
}

// classifyTransport maps a transport-level failure to the downstream
// status: timeouts are 504, connection failures are 503, anything else
// is 502.
func classifyTransport(err error) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return NewGatewayTimeout("upstream request timed out", err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) {
		return NewServiceUnavailable("failed to connect to upstream service", err)
	}
	return NewBadGateway("upstream transport error", err)
}
