package checkpoint

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports every violated rule of an invalid entry in one
// message. Callers must never see a partial list.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid checkpoint: " + strings.Join(e.Violations, "; ")
}

// QuerySyntaxError reports a malformed full-text query. It carries the
// offending query string so callers can echo it back.
type QuerySyntaxError struct {
	Query  string
	Reason string
}

func (e *QuerySyntaxError) Error() string {
	return fmt.Sprintf("invalid search query %q: %s", e.Query, e.Reason)
}

// ResourceBusyError means the store's lock could not be acquired within the
// busy timeout. It is retryable, not fatal.
type ResourceBusyError struct {
	Op  string
	Err error
}

func (e *ResourceBusyError) Error() string {
	return fmt.Sprintf("store busy during %s (retryable): %v", e.Op, e.Err)
}

func (e *ResourceBusyError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsQuerySyntax reports whether err is a QuerySyntaxError.
func IsQuerySyntax(err error) bool {
	var qe *QuerySyntaxError
	return errors.As(err, &qe)
}

// IsBusy reports whether err is a ResourceBusyError.
func IsBusy(err error) bool {
	var be *ResourceBusyError
	return errors.As(err, &be)
}
