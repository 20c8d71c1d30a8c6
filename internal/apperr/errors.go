// Package apperr defines the error taxonomy shared across blogit packages.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrMalformedDocument  = errors.New("malformed document")
	ErrMissingMetadata    = errors.New("document metadata not found")
	ErrMissingTitle       = errors.New("title metadata is missing or empty")
	ErrEmptyCommitHistory = errors.New("document has no commit history")
	ErrRemoteSource       = errors.New("remote source failure")
	ErrFieldNotFound      = errors.New("metadata field not found")
	ErrDuplicateSlug      = errors.New("duplicate slug")
)

// RemoteSourceError reports a failed call against a document source.
type RemoteSourceError struct {
	Op   string
	Path string
	Err  error
}

func (e *RemoteSourceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("remote source: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("remote source: %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap exposes both ErrRemoteSource and the underlying cause to errors.Is/As.
func (e *RemoteSourceError) Unwrap() []error {
	return []error{ErrRemoteSource, e.Err}
}

// NewRemoteSourceError wraps err, passing nil through unchanged.
func NewRemoteSourceError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var rse *RemoteSourceError
	if errors.As(err, &rse) {
		return err
	}
	return &RemoteSourceError{Op: op, Path: path, Err: err}
}

// DocumentError ties a per-document failure to the offending path.
type DocumentError struct {
	Path string
	Err  error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document %s: %v", e.Path, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// IsDocumentFault reports whether err is a per-document parsing or modeling
// failure, as opposed to a source or infrastructure failure.
func IsDocumentFault(err error) bool {
	return errors.Is(err, ErrMalformedDocument) ||
		errors.Is(err, ErrMissingMetadata) ||
		errors.Is(err, ErrMissingTitle) ||
		errors.Is(err, ErrEmptyCommitHistory)
}
