package salesforce

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies Salesforce client failures.
type ErrorKind string

const (
	ErrKindAuth    ErrorKind = "auth"
	ErrKindNetwork ErrorKind = "network"
	ErrKindAPI     ErrorKind = "api"
	ErrKindParse   ErrorKind = "parse"
)

// APIError is a single error entry in a Salesforce REST error response.
type APIError struct {
	Message   string   `json:"message"`
	ErrorCode string   `json:"errorCode"`
	Fields    []string `json:"fields,omitempty"`
}

// Error is the error type returned by the Salesforce client. StatusCode and
// APIErrors are populated for REST-level failures.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	APIErrors  []APIError
	Err        error
}

func (e *Error) Error() string {
	if len(e.APIErrors) > 0 {
		parts := make([]string, 0, len(e.APIErrors))
		for _, ae := range e.APIErrors {
			parts = append(parts, fmt.Sprintf("%s: %s", ae.ErrorCode, ae.Message))
		}
		return fmt.Sprintf("salesforce API error (%d): %s", e.StatusCode, strings.Join(parts, "; "))
	}
	if e.Err != nil {
		return fmt.Sprintf("salesforce %s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("salesforce %s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a salesforce Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Kind == kind
}
