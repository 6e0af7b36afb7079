package reminder

import (
	"errors"
	"fmt"
)

// Kind classifies failures surfaced to callers.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindScheduler   Kind = "scheduler"
	KindDataAccess  Kind = "data_access"
	KindPersistence Kind = "persistence"
	KindInternal    Kind = "internal"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("not found")
	ErrScheduler   = errors.New("scheduler error")
	ErrDataAccess  = errors.New("data access error")
	ErrPersistence = errors.New("persistence error")
	ErrInternal    = errors.New("internal error")

	ErrInvalidTransition = errors.New("invalid state transition")
)

var kindSentinels = map[Kind]error{
	KindValidation:  ErrValidation,
	KindNotFound:    ErrNotFound,
	KindScheduler:   ErrScheduler,
	KindDataAccess:  ErrDataAccess,
	KindPersistence: ErrPersistence,
	KindInternal:    ErrInternal,
}

// Error is a classified failure. Op names the operation, Subject the
// offending id or expression.
type Error struct {
	Kind    Kind
	Op      string
	Subject string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Subject != "" {
		msg += " " + e.Subject
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// E builds a classified error. Subject is quoted.
func E(kind Kind, op, subject string, err error) error {
	if subject != "" {
		subject = fmt.Sprintf("%q", subject)
	}
	return &Error{Kind: kind, Op: op, Subject: subject, Err: err}
}

// NotFound reports a missing reminder or group.
func NotFound(what, id string) error {
	return E(KindNotFound, what, id, nil)
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func newTransitionError(id string, from, to Status) error {
	return E(KindValidation, "transition reminder", id,
		fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to))
}
