// Package xerrors provides structured errors for the indexing pipeline.
//
// The fatal-vs-recoverable line is drawn at "can this run still produce
// an internally consistent index if we continue": per-file problems
// (scan, parse) are recoverable, cross-cutting problems (embedding auth,
// store corruption) are not.
package xerrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the pipeline concern it belongs to.
type Kind string

const (
	// KindScan covers unreadable directories and files during scanning.
	KindScan Kind = "SCAN"
	// KindParse covers per-file AST failures during chunking.
	KindParse Kind = "PARSE"
	// KindEmbedding covers embedding-provider failures (auth, model).
	KindEmbedding Kind = "EMBEDDING"
	// KindStorage covers vector-store operation failures.
	KindStorage Kind = "STORAGE"
	// KindMetadata covers unreadable or unparseable metadata files.
	KindMetadata Kind = "METADATA"
	// KindSearch covers failures on the search path.
	KindSearch Kind = "SEARCH"
	// KindLock covers per-project lock contention.
	KindLock Kind = "LOCK"
	// KindInternal covers everything else.
	KindInternal Kind = "INTERNAL"
)

// Error is the structured error type for the indexer.
type Error struct {
	// Kind is the pipeline concern this error belongs to.
	Kind Kind

	// Message is the human-readable error message.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Retryable indicates the operation may succeed on retry
	// (transient network failures, lock contention).
	Retryable bool

	// Fatal indicates the indexing run cannot continue.
	Fatal bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by Kind, enabling errors.Is against sentinel kinds.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// New creates an Error with the given kind and message.
func New(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
		Fatal:   fatalByDefault(kind),
	}
}

// Scan creates a recoverable scan error.
func Scan(message string, cause error) *Error {
	return New(KindScan, message, cause)
}

// Parse creates a recoverable per-file parse error.
func Parse(message string, cause error) *Error {
	return New(KindParse, message, cause)
}

// Embedding creates a fatal embedding-provider error. retryable marks
// transient failures worth another attempt before giving up.
func Embedding(message string, cause error, retryable bool) *Error {
	e := New(KindEmbedding, message, cause)
	e.Retryable = retryable
	return e
}

// Storage creates a fatal vector-store error.
func Storage(message string, cause error) *Error {
	return New(KindStorage, message, cause)
}

// Metadata creates a metadata-corruption error. Callers treat it as
// "no prior index" rather than failing the run.
func Metadata(message string, cause error) *Error {
	return New(KindMetadata, message, cause)
}

// Lock creates a lock-contention error.
func Lock(message string, cause error) *Error {
	e := New(KindLock, message, cause)
	e.Retryable = true
	return e
}

// fatalByDefault reports whether errors of this kind abort the run.
func fatalByDefault(kind Kind) bool {
	switch kind {
	case KindScan, KindParse, KindMetadata, KindSearch:
		return false
	default:
		return true
	}
}

// IsRetryable reports whether err (or anything it wraps) is a retryable
// Error.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// KindOf returns the Kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
