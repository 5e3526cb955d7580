// Package handlers provides the HTTP handlers for the SCP front server.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nfmesh/scp/pkg/proxy"
)

// Problem is a 3GPP TS 29.571 ProblemDetails body (a superset of
// RFC 7807). JSON field names follow the SBI camelCase convention.
type Problem struct {
	// Type is a URI reference that identifies the problem type.
	Type string `json:"type,omitempty"`

	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title,omitempty"`

	// Status is the HTTP status code of this occurrence.
	Status int `json:"status"`

	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`

	// Instance identifies the specific occurrence, e.g. a correlation id.
	Instance string `json:"instance,omitempty"`

	// Cause is the SBI application error cause string.
	Cause string `json:"cause,omitempty"`

	// InvalidParams lists offending request parameters.
	InvalidParams []InvalidParam `json:"invalidParams,omitempty"`
}

// InvalidParam describes one invalid request parameter.
type InvalidParam struct {
	Param  string `json:"param"`
	Reason string `json:"reason,omitempty"`
}

// ContentTypeProblemJSON is the Content-Type for problem responses.
const ContentTypeProblemJSON = "application/problem+json"

// WriteProblem writes a problem response with the given status.
func WriteProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, &Problem{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// WriteProblemWithInstance writes a problem response carrying a
// correlation id in the instance field.
func WriteProblemWithInstance(w http.ResponseWriter, status int, title, detail, instance string) {
	writeProblemBody(w, &Problem{
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// WriteError renders any pipeline error as a problem response. Errors
// that are not *proxy.Error map to 500 without leaking internals.
func WriteError(w http.ResponseWriter, err error, instance string) {
	var perr *proxy.Error
	if errors.As(err, &perr) {
		writeProblemBody(w, &Problem{
			Title:    perr.Title,
			Status:   perr.Status,
			Detail:   perr.Detail,
			Instance: instance,
		})
		return
	}
	WriteProblemWithInstance(w, http.StatusInternalServerError,
		"Internal Server Error", "unexpected error", instance)
}

func writeProblemBody(w http.ResponseWriter, problem *Problem) {
	w.Header().Set("Content-Type", ContentTypeProblemJSON)
	w.WriteHeader(problem.Status)
	_ = json.NewEncoder(w).Encode(problem)
}

// BadRequest writes a 400 problem response.
func BadRequest(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusBadRequest, "Bad Request", detail)
}

// Unauthorized writes a 401 problem response.
func Unauthorized(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusUnauthorized, "Unauthorized", detail)
}

// Forbidden writes a 403 problem response.
func Forbidden(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusForbidden, "Forbidden", detail)
}

// ServiceUnavailable writes a 503 problem response.
func ServiceUnavailable(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusServiceUnavailable, "Service Unavailable", detail)
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteNoContent writes a 204 No Content response.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
