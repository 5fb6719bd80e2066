// Package apperr defines the error taxonomy shared by the client core, the
// backend service and the stores, and maps it to and from Connect codes.
package apperr

import (
	"errors"
	"fmt"

	"connectrpc.com/connect"
)

// Kind classifies an error by how it should be handled and surfaced.
type Kind int

const (
	KindInternal Kind = iota
	KindAuth
	KindValidation
	KindAccess
	KindNotFound
	KindTransientNetwork
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "AuthError"
	case KindValidation:
		return "ValidationError"
	case KindAccess:
		return "AccessError"
	case KindNotFound:
		return "NotFoundError"
	case KindTransientNetwork:
		return "TransientNetworkError"
	default:
		return "InternalError"
	}
}

// fieldMetaKey carries the offending field of a validation error across Connect.
const fieldMetaKey = "X-Lifeboard-Field"

// Error is a classified error. Message is shown to users verbatim.
type Error struct {
	Kind    Kind
	Message string
	// Field names the offending input field for validation errors.
	Field string
	Err   error
}

// Sentinels for errors.Is checks against a whole kind.
var (
	ErrAuth             = &Error{Kind: KindAuth}
	ErrValidation       = &Error{Kind: KindValidation}
	ErrAccess           = &Error{Kind: KindAccess}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrTransientNetwork = &Error{Kind: KindTransientNetwork}
	ErrInternal         = &Error{Kind: KindInternal}
)

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches kind sentinels (errors with no message) by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Auth reports a missing or invalid session.
func Auth(format string, args ...any) *Error { return newf(KindAuth, format, args...) }

// Validation reports a malformed or incomplete payload.
func Validation(format string, args ...any) *Error { return newf(KindValidation, format, args...) }

// FieldInvalid reports a validation error tied to one input field.
func FieldInvalid(field, format string, args ...any) *Error {
	e := newf(KindValidation, format, args...)
	e.Field = field
	return e
}

// Access reports a permission or row-level policy rejection.
func Access(format string, args ...any) *Error { return newf(KindAccess, format, args...) }

// NotFound reports a referenced id that does not exist.
func NotFound(format string, args ...any) *Error { return newf(KindNotFound, format, args...) }

// Transient reports a request that failed to complete.
func Transient(err error) *Error {
	return &Error{Kind: KindTransientNetwork, Message: err.Error(), Err: err}
}

// Internal wraps an unexpected failure.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: err.Error(), Err: err}
}

// KindOf returns the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

var kindCodes = map[Kind]connect.Code{
	KindAuth:             connect.CodeUnauthenticated,
	KindValidation:       connect.CodeInvalidArgument,
	KindAccess:           connect.CodePermissionDenied,
	KindNotFound:         connect.CodeNotFound,
	KindTransientNetwork: connect.CodeUnavailable,
	KindInternal:         connect.CodeInternal,
}

// ToConnect converts err into a Connect error carrying the message verbatim.
func ToConnect(err error) *connect.Error {
	if err == nil {
		return nil
	}
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return cerr
	}
	var e *Error
	if !errors.As(err, &e) {
		e = Internal(err)
	}
	out := connect.NewError(kindCodes[e.Kind], errors.New(e.Error()))
	if e.Field != "" {
		out.Meta().Set(fieldMetaKey, e.Field)
	}
	return out
}

// FromConnect classifies an error returned by a Connect client.
func FromConnect(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	var cerr *connect.Error
	if !errors.As(err, &cerr) {
		return Transient(err)
	}
	out := &Error{Message: cerr.Message(), Err: err}
	switch cerr.Code() {
	case connect.CodeUnauthenticated:
		out.Kind = KindAuth
	case connect.CodeInvalidArgument, connect.CodeFailedPrecondition, connect.CodeAlreadyExists, connect.CodeOutOfRange:
		out.Kind = KindValidation
		out.Field = cerr.Meta().Get(fieldMetaKey)
	case connect.CodePermissionDenied:
		out.Kind = KindAccess
	case connect.CodeNotFound:
		out.Kind = KindNotFound
	case connect.CodeUnavailable, connect.CodeDeadlineExceeded, connect.CodeCanceled,
		connect.CodeAborted, connect.CodeResourceExhausted, connect.CodeUnknown:
		out.Kind = KindTransientNetwork
	default:
		out.Kind = KindInternal
	}
	return out
}
