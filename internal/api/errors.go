package api

import (
	"errors"
	"fmt"
)

// Numeric error codes carried in ErrorResponse.ErrorCode for absent resources.
const (
	CodeRowNotFound  = 2001
	CodeBlobNotFound = 2002
	CodeUnknownKind  = 2003
)

// APIError is a failed chronicle API call, decoded from an ErrorResponse body when the
// server sent one.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Message   string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" && e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Status > 0 {
		return fmt.Sprintf("api error: %d", e.Status)
	}
	return "api error"
}

// Subject names what was missing for a chronicle not_found error: "row", "blob" or
// "kind". It is empty for any other error, including a bare 404 from a server that
// is not chronicle.
func (e *APIError) Subject() string {
	if e == nil || e.Code != "not_found" {
		return ""
	}
	switch e.ErrorCode {
	case CodeRowNotFound:
		return "row"
	case CodeBlobNotFound:
		return "blob"
	case CodeUnknownKind:
		return "kind"
	}
	return ""
}

// IsNotFound reports whether err is a chronicle not_found response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 404 && apiErr.Code == "not_found"
}

// IsUnknownKind reports whether err rejects the requested kind name.
func IsUnknownKind(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Subject() == "kind"
}
