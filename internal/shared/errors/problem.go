// Package errors renders RFC 7807 problem details for the connector's HTTP surface.
package errors

import (
	"fmt"
	"net/http"
)

// ProblemDetail is an RFC 7807 problem document.
// See: https://www.rfc-editor.org/rfc/rfc7807
type ProblemDetail struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail,omitempty"`
	Instance   string         `json:"instance,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (p ProblemDetail) Error() string {
	if p.Detail != "" {
		return fmt.Sprintf("%s: %s", p.Title, p.Detail)
	}
	return p.Title
}

// WithDetail returns a copy with the given detail message.
func (p ProblemDetail) WithDetail(detail string) ProblemDetail {
	p.Detail = detail
	return p
}

// WithExtension returns a copy with an additional extension property.
func (p ProblemDetail) WithExtension(key string, value any) ProblemDetail {
	ext := make(map[string]any, len(p.Extensions)+1)
	for k, v := range p.Extensions {
		ext[k] = v
	}
	ext[key] = value
	p.Extensions = ext
	return p
}

const (
	TypeBadRequest    = "/problems/bad-request"
	TypeNotFound      = "/problems/not-found"
	TypeConfiguration = "/problems/configuration-error"
	TypeUpstream      = "/problems/upstream-error"
	TypeInternal      = "/problems/internal-error"
)

var (
	// ErrBadRequest indicates the request was malformed.
	ErrBadRequest = ProblemDetail{Type: TypeBadRequest, Title: "Bad Request", Status: http.StatusBadRequest}
	// ErrNotFound indicates a referenced record does not exist.
	ErrNotFound = ProblemDetail{Type: TypeNotFound, Title: "Not Found", Status: http.StatusNotFound}
	// ErrConfiguration indicates the connector cannot call the endpoint as configured.
	ErrConfiguration = ProblemDetail{Type: TypeConfiguration, Title: "Connector Misconfigured", Status: http.StatusInternalServerError}
	// ErrUpstream indicates the endpoint could not be reached or answered unexpectedly.
	ErrUpstream = ProblemDetail{Type: TypeUpstream, Title: "Endpoint Unavailable", Status: http.StatusBadGateway}
	// ErrInternal indicates an unexpected server error.
	ErrInternal = ProblemDetail{Type: TypeInternal, Title: "Internal Server Error", Status: http.StatusInternalServerError}
)
