package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies a request-level failure of a compilation run.
type Kind string

const (
	KindUnauthenticated     Kind = "Unauthenticated"
	KindForbidden           Kind = "Forbidden"
	KindResolveFailure      Kind = "ResolveFailure"
	KindNoReceiptsAvailable Kind = "NoReceiptsAvailable"
	KindPersistFailed       Kind = "PersistFailed"
	KindInvalidRequest      Kind = "InvalidRequest"
	KindInternal            Kind = "Internal"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrDatabase     = errors.New("database error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewKindError builds an AppError whose code is the given failure kind.
func NewKindError(kind Kind, message string, cause error) *AppError {
	return NewAppError(string(kind), message, cause)
}

// KindOf returns the failure kind carried by err, or KindInternal when err
// is not a kind-coded AppError.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		switch k := Kind(ae.Code); k {
		case KindUnauthenticated, KindForbidden, KindResolveFailure,
			KindNoReceiptsAvailable, KindPersistFailed, KindInvalidRequest:
			return k
		}
	}
	return KindInternal
}

// IsKind reports whether err carries the given failure kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// GRPCCode maps a failure kind to the status code returned over gRPC.
func GRPCCode(kind Kind) codes.Code {
	switch kind {
	case KindUnauthenticated:
		return codes.Unauthenticated
	case KindForbidden:
		return codes.PermissionDenied
	case KindNoReceiptsAvailable:
		return codes.FailedPrecondition
	case KindResolveFailure, KindPersistFailed:
		return codes.Unavailable
	case KindInvalidRequest:
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}

// StatusError converts err into a gRPC status error whose message is the kind name.
func StatusError(err error) error {
	kind := KindOf(err)
	return status.Error(GRPCCode(kind), string(kind))
}
