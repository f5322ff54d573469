package twenty

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotFound matches any remote error that reports a missing record
var ErrNotFound = errors.New("twenty: record not found")

// GraphQLError is one entry of a GraphQL errors array
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Code returns extensions.code when present
func (e GraphQLError) Code() string {
	if e.Extensions == nil {
		return ""
	}
	code, _ := e.Extensions["code"].(string)
	return code
}

// Error is a failed remote call: either a non-2xx response or a GraphQL
// errors array delivered with a 200.
type Error struct {
	Operation  string
	StatusCode int
	Errors     []GraphQLError
	Body       string
}

func (e *Error) Error() string {
	if len(e.Errors) > 0 {
		msgs := make([]string, 0, len(e.Errors))
		for _, ge := range e.Errors {
			msgs = append(msgs, ge.Message)
		}
		return fmt.Sprintf("twenty %s: %s", e.Operation, strings.Join(msgs, "; "))
	}
	if e.Body != "" {
		return fmt.Sprintf("twenty %s: http %d: %s", e.Operation, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("twenty %s: http %d", e.Operation, e.StatusCode)
}

// Message is the remote detail suitable for an API error response
func (e *Error) Message() string {
	if len(e.Errors) > 0 {
		return e.Errors[0].Message
	}
	return e.Body
}

// Is lets errors.Is(err, ErrNotFound) match remote not-found responses
func (e *Error) Is(target error) bool {
	if target != ErrNotFound {
		return false
	}
	if e.StatusCode == http.StatusNotFound {
		return true
	}
	for _, ge := range e.Errors {
		if ge.Code() == "NOT_FOUND" || strings.Contains(strings.ToLower(ge.Message), "not found") {
			return true
		}
	}
	return false
}

// UploadError reports which step of the attachment upload failed.
// Steps: 1 create metadata, 2 upload bytes, 3 attach storage path.
type UploadError struct {
	Step         int
	AttachmentID string
	Err          error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("attachment upload failed at step %d: %v", e.Step, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Detail extracts the remote message from err, if it came from the remote CRM
func Detail(err error) string {
	var re *Error
	if errors.As(err, &re) {
		return re.Message()
	}
	return ""
}
