// Package problem implements the RFC 7807 problem-details payload shared by all
// HTTP handlers. Handlers classify domain errors into one of the well-known types
// below so clients can distinguish failure kinds without parsing prose.
package problem

import (
	"encoding/json"
	"net/http"
)

const (
	TypeValidation       = "https://steelworks.dev/problems/validation-error"
	TypeUnauthorized     = "https://steelworks.dev/problems/unauthorized"
	TypePermissionDenied = "https://steelworks.dev/problems/permission-denied"
	TypeNotFound         = "https://steelworks.dev/problems/not-found"
	TypeInvalidState     = "https://steelworks.dev/problems/invalid-state-transition"
	TypeConflict         = "https://steelworks.dev/problems/conflict"
	TypeInternal         = "https://steelworks.dev/problems/internal-error"
)

// Details is the wire shape of an error response.
type Details struct {
	Type   string              `json:"type"`
	Title  string              `json:"title"`
	Status int                 `json:"status"`
	Detail string              `json:"detail,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// New builds a Details value.
func New(problemType, title string, status int, detail string) Details {
	return Details{
		Type:   problemType,
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

// WithFields attaches per-field validation messages.
func (d Details) WithFields(fields map[string][]string) Details {
	d.Errors = fields
	return d
}

// Write serializes the problem to the response with the proper content type.
func Write(w http.ResponseWriter, d Details) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(d.Status)
	_ = json.NewEncoder(w).Encode(d)
}
