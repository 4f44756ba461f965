// Package apperr defines the error taxonomy shared across the sync pipeline.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// ParseError reports malformed note markup or a metadata grammar violation.
// It aborts resolution of the offending record.
type ParseError struct {
	Fragment string
	Reason   string
}

func (e *ParseError) Error() string {
	if e.Fragment == "" {
		return fmt.Sprintf("parse error: %s", e.Reason)
	}
	return fmt.Sprintf("parse error: %s (at %q)", e.Reason, e.Fragment)
}

// MissingResourceError reports an image note without its required binary
// attachment.
type MissingResourceError struct {
	NoteTitle string
}

func (e *MissingResourceError) Error() string {
	return fmt.Sprintf("image note %q has no attached resources", e.NoteTitle)
}

// UnknownReferenceError reports a cross-reference to an identifier the note
// store does not have.
type UnknownReferenceError struct {
	RecordTitle string
	Reference   string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("record %q references unknown note %q", e.RecordTitle, e.Reference)
}

func (e *UnknownReferenceError) Unwrap() error { return ErrNotFound }

// NotPublishableError reports an attempt to publish a record before all of
// its references carry external identifiers.
type NotPublishableError struct {
	RecordTitle string
	Missing     []string
}

func (e *NotPublishableError) Error() string {
	return fmt.Sprintf("record %q is not publishable: unresolved references %v", e.RecordTitle, e.Missing)
}

// RateLimitError is the transient rate-limit condition raised by the note
// store. Cooldown is the service-reported wait before retrying.
type RateLimitError struct {
	Cooldown time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit reached, cooldown %s", e.Cooldown)
}
