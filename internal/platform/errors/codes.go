// Package errors provides structured error codes shared by messenger services.
package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session errors
	CodeUnauthenticated   Code = "UNAUTHENTICATED"
	CodeIncompleteSession Code = "SESSION_INCOMPLETE_IDENTITY"

	// Input errors
	CodeEmailRequired    Code = "EMAIL_REQUIRED"
	CodeEmailInvalid     Code = "EMAIL_INVALID"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeMalformedProfile Code = "PROFILE_MALFORMED"

	// Remote collaborator errors
	CodeNotFound    Code = "NOT_FOUND"
	CodeUnavailable Code = "UNAVAILABLE"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeEmailRequired,
		CodeEmailInvalid,
		CodeInvalidArgument:
		return codes.InvalidArgument
	case CodeIncompleteSession,
		CodeMalformedProfile:
		return codes.FailedPrecondition
	case CodeUnauthenticated:
		return codes.Unauthenticated
	case CodeNotFound:
		return codes.NotFound
	case CodeUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c.GRPCCode() {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusConflict
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.NotFound:
		return http.StatusNotFound
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
