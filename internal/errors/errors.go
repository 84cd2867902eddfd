// Package errors provides structured error handling for the analysis pipeline.
// Every failure is classified into a Kind; the recovery coordinator keys its
// circuit breakers and recovery strategies off that Kind.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies a failure for recovery-strategy selection.
type Kind uint32

const (
	Unknown Kind = iota
	ModelNotLoaded
	ProcessingTimeout
	InsufficientMemory
	NetworkUnavailable
	StorageFailure
	ClassifierError
)

// String returns a stable lowercase name used in breaker keys and logs.
func (k Kind) String() string {
	switch k {
	case ModelNotLoaded:
		return "model_not_loaded"
	case ProcessingTimeout:
		return "timeout"
	case InsufficientMemory:
		return "out_of_memory"
	case NetworkUnavailable:
		return "network"
	case StorageFailure:
		return "storage"
	case ClassifierError:
		return "classifier"
	default:
		return "unknown"
	}
}

// grpcCodeMap maps Kind to the gRPC status code a remote collaborator would use.
var grpcCodeMap = map[Kind]codes.Code{
	ModelNotLoaded:     codes.FailedPrecondition,
	ProcessingTimeout:  codes.DeadlineExceeded,
	InsufficientMemory: codes.ResourceExhausted,
	NetworkUnavailable: codes.Unavailable,
	StorageFailure:     codes.DataLoss,
	ClassifierError:    codes.Internal,
	Unknown:            codes.Unknown,
}

// Error is the structured error type carried through the pipeline.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Kind, e.Op)
	if e.Message != "" {
		s += ": " + e.Message
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Cause }

// GRPCCode returns the status code a remote boundary should report for e.
func (e *Error) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Kind]; ok {
		return c
	}
	return codes.Unknown
}

// New creates an Error with the given kind, operation, and message.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Message: msg}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error, preserving it as the cause.
func Wrap(err error, kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op, Cause: err}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Cause: err}
}

// Classify maps an arbitrary error to its Kind. Wrapped causes are traversed;
// gRPC status errors from remote classifiers are mapped by code.
func Classify(err error) Kind {
	if err == nil {
		return Unknown
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return ProcessingTimeout
	}
	if st, ok := status.FromError(err); ok {
		return fromGRPCCode(st.Code())
	}
	return Unknown
}

// fromGRPCCode maps gRPC codes to kinds (best effort).
func fromGRPCCode(c codes.Code) Kind {
	switch c {
	case codes.Unavailable:
		return NetworkUnavailable
	case codes.DeadlineExceeded:
		return ProcessingTimeout
	case codes.ResourceExhausted:
		return InsufficientMemory
	case codes.FailedPrecondition:
		return ModelNotLoaded
	case codes.DataLoss:
		return StorageFailure
	case codes.Internal, codes.Aborted:
		return ClassifierError
	default:
		return Unknown
	}
}

// IsKind checks whether an error classifies to a specific kind.
func IsKind(err error, kind Kind) bool {
	return Classify(err) == kind
}

// IsRetryable returns true if another attempt could plausibly succeed after
// the kind's recovery strategy has run. Only Unknown failures are excluded.
func IsRetryable(err error) bool {
	return Classify(err) != Unknown
}
