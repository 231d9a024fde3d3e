package tracker

import (
	"errors"
	"fmt"
)

// error kinds, match with errors.Is
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// ErrNoActiveSeason is returned when an operation needs the active season and there is none.
// It matches both ErrNotFound and ErrConflict.
var ErrNoActiveSeason error = &Error{msg: "no active season found", kinds: []error{ErrNotFound, ErrConflict}}

// Error carries a human-readable message and unwraps to its kinds
type Error struct {
	msg   string
	kinds []error
}

func (e *Error) Error() string { return e.msg }

// Unwrap returns error kinds for errors.Is
func (e *Error) Unwrap() []error { return e.kinds }

// Validationf makes an error of ErrValidation kind
func Validationf(format string, args ...any) error {
	return &Error{msg: fmt.Sprintf(format, args...), kinds: []error{ErrValidation}}
}

// NotFoundf makes an error of ErrNotFound kind
func NotFoundf(format string, args ...any) error {
	return &Error{msg: fmt.Sprintf(format, args...), kinds: []error{ErrNotFound}}
}

// Conflictf makes an error of ErrConflict kind
func Conflictf(format string, args ...any) error {
	return &Error{msg: fmt.Sprintf(format, args...), kinds: []error{ErrConflict}}
}
