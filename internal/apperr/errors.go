// Package apperr defines the failure taxonomy shared by the sync pipeline,
// the storage layer and the HTTP handlers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch on it without parsing text
type Kind string

const (
	KindAuthentication Kind = "authentication"  // token endpoint rejected credentials or was unreachable
	KindQuery          Kind = "query"           // analytical endpoint returned non-2xx
	KindRemoteQuery    Kind = "remote_query"    // 2xx envelope carrying an error payload
	KindStorageConfig  Kind = "storage_config"  // storage credentials missing
	KindStorageWrite   Kind = "storage_write"   // a batch upsert failed
	KindStorageRead    Kind = "storage_read"    // lookup failed for a reason other than "not found"
	KindMalformedInput Kind = "malformed_input" // trigger payload incomplete or invalid
)

// Machine codes attached to storage_write failures
const (
	CodeConflictTargetMissing = "conflict_target_missing"
	CodeDuplicateInBatch      = "duplicate_in_batch"
	CodeUndefinedTable        = "undefined_table"
)

// Error is a classified failure. Status and Body carry the remote response
// verbatim when the failure came from an HTTP peer.
type Error struct {
	Kind    Kind
	Code    string
	Stage   string
	Message string
	Status  int
	Body    string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Stage != "" {
		msg = e.Stage + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// HTTP creates a classified error for a non-2xx response
func HTTP(kind Kind, message string, status int, body string) *Error {
	return &Error{Kind: kind, Message: message, Status: status, Body: body}
}

// WithStage returns a copy of e tagged with the pipeline stage it came from
func (e *Error) WithStage(stage string) *Error {
	cp := *e
	cp.Stage = stage
	return &cp
}

// WithCode returns a copy of e carrying a machine-checkable code
func (e *Error) WithCode(code string) *Error {
	cp := *e
	cp.Code = code
	return &cp
}

// As extracts the classified error from a chain
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or "" when it is unclassified
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// CodeOf returns the machine code of err, or ""
func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}

// Is reports whether err is classified as kind
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
