package engine

import "fmt"

// ValidationError marks a rejected input; the server maps it to 400.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError marks a duplicate unique value (tag); mapped to 400.
type ConflictError struct {
	Msg string
}

func (e ConflictError) Error() string { return e.Msg }
