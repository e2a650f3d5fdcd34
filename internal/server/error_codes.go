package server

import "chronicle/internal/api"

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument = 1000
	ErrCodeInvalidQuery    = 1003
	ErrCodeInvalidID       = 1004
	ErrCodeInvalidKey      = 1005
	ErrCodeMissingRequired = 1009

	// Domain state (2xxx)
	ErrCodeRowNotFound  = api.CodeRowNotFound
	ErrCodeBlobNotFound = api.CodeBlobNotFound
	ErrCodeUnknownKind  = api.CodeUnknownKind

	// Auth (3xxx)
	ErrCodeUnauthorized = 3001
	ErrCodeForbidden    = 3002

	// Internal/system (4xxx)
	ErrCodeInternal         = 4001
	ErrCodeStoreFailure     = 4002
	ErrCodeBlobStoreFailure = 4003
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 401:
		return ErrCodeUnauthorized
	case 403:
		return ErrCodeForbidden
	case 404:
		return ErrCodeRowNotFound
	case 500:
		return ErrCodeInternal
	default:
		return 0
	}
}
