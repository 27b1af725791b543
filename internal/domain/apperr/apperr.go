// Package apperr carries the error taxonomy shared by the settlement engine.
//
// Every error surfaced by a domain operation is an *Error whose Code is one of
// the gRPC status codes below. Transports map the code to their own status
// vocabulary; status.Code(err) works directly because *Error implements
// GRPCStatus.
package apperr

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Codes used by the engine.
const (
	InvalidArgument    = codes.InvalidArgument
	NotFound           = codes.NotFound
	FailedPrecondition = codes.FailedPrecondition
	AlreadyExists      = codes.AlreadyExists
	Aborted            = codes.Aborted
	Unauthenticated    = codes.Unauthenticated
	Internal           = codes.Internal
)

// Error is a coded, wrappable error.
type Error struct {
	Code codes.Code
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// GRPCStatus lets status.FromError and status.Code read the code.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.Code, e.Error())
}

// New builds an error with no cause.
func New(code codes.Code, op, msg string) error {
	return &Error{Code: code, Op: op, Msg: msg}
}

// Newf is New with formatting.
func Newf(code codes.Code, op, format string, args ...any) error {
	return &Error{Code: code, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to err. A nil err yields nil.
func Wrap(code codes.Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Err: err}
}

// Wrapf wraps err with a code and a message.
func Wrapf(code codes.Code, op string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the code of the outermost *Error in err's chain, codes.OK for
// nil, and codes.Internal for uncoded errors.
func CodeOf(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	return codes.Internal
}

// Is reports whether err carries code.
func Is(err error, code codes.Code) bool {
	return CodeOf(err) == code
}
