// Package errors provides structured error handling for the access service.
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

	// Validation errors
	CodeUsernameEmpty    Code = "USERNAME_EMPTY"
	CodeTeamNameEmpty    Code = "TEAM_NAME_EMPTY"
	CodeNameInvalid      Code = "NAME_INVALID"
	CodePasswordTooShort Code = "PASSWORD_TOO_SHORT"
	CodePasswordTooLong  Code = "PASSWORD_TOO_LONG"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeTeamNotEmpty  Code = "TEAM_NOT_EMPTY"
	CodeStorage       Code = "STORAGE_FAILURE"

	// Credential errors
	CodeCredentialInvalid Code = "CREDENTIAL_INVALID"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeUsernameEmpty,
		CodeTeamNameEmpty,
		CodeNameInvalid,
		CodePasswordTooShort,
		CodePasswordTooLong:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeTeamNotEmpty:
		return codes.FailedPrecondition

	case CodeNotFound:
		return codes.NotFound

	case CodeAlreadyExists:
		return codes.AlreadyExists

	case CodeCredentialInvalid:
		return codes.Unauthenticated

	default:
		return codes.Internal
	}
}

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c.GRPCCode() {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.FailedPrecondition, codes.AlreadyExists:
		return http.StatusConflict
	case codes.NotFound:
		return http.StatusNotFound
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
