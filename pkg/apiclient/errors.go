package apiclient

import "fmt"

// APIError is a non-2xx response from the SCP management API.
type APIError struct {
	StatusCode int
	Title      string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Detail)
	}
	if e.Title != "" {
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Title)
	}
	return fmt.Sprintf("API error %d", e.StatusCode)
}

// IsNotFound reports whether the error is a 404 response.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == 404
}
