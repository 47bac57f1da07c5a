package quiz

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies errors for the user-facing surface.
type Kind int

const (
	KindTransientStore Kind = iota
	KindNotFound
	KindNotAvailable
	KindAlreadyAttempted
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindNotAvailable:
		return "not_available"
	case KindAlreadyAttempted:
		return "already_attempted"
	case KindValidation:
		return "validation"
	default:
		return "transient_store"
	}
}

// Error carries a Kind and a message that is safe to show to the user.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func NotAvailable(format string, args ...any) error {
	return &Error{Kind: KindNotAvailable, Msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

var ErrAlreadyAttempted = &Error{Kind: KindAlreadyAttempted, Msg: "you have already attempted this quiz"}

// Transient wraps a store failure. The action reads as "failed to <action>".
func Transient(err error, action string) error {
	if err == nil {
		return nil
	}
	var qe *Error
	if errors.As(err, &qe) {
		return err
	}
	return &Error{Kind: KindTransientStore, Msg: "failed to " + action, Err: errors.WithStack(err)}
}

// KindOf reports the Kind of err; errors outside the taxonomy are transient.
func KindOf(err error) Kind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return KindTransientStore
}

// Message is the user-facing text for err.
func Message(err error) string {
	var qe *Error
	if errors.As(err, &qe) {
		if qe.Kind == KindTransientStore {
			return qe.Msg + ", try again"
		}
		return qe.Msg
	}
	return "something went wrong, try again"
}

func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
