package export

import (
	"context"
	"errors"

	errorslib "github.com/goliatone/go-errors"
)

// ErrorKind defines export error kinds. Values double as the wire-level
// error_code strings.
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation_error"
	KindTemplateLimit   ErrorKind = "template_limit_exceeded"
	KindBackpressure    ErrorKind = "backpressure"
	KindSourceDown      ErrorKind = "source_unavailable"
	KindTimeout         ErrorKind = "job_timeout"
	KindArtifactInvalid ErrorKind = "artifact_invalid"
	KindNotFound        ErrorKind = "not_found"
	KindExpired         ErrorKind = "expired"
	KindVariantMismatch ErrorKind = "variant_mismatch"
	KindInternal        ErrorKind = "internal_error"
)

// ExportError wraps errors with a kind.
type ExportError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *ExportError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// NewError creates a new export error.
func NewError(kind ErrorKind, msg string, err error) *ExportError {
	return &ExportError{Kind: kind, Msg: msg, Err: err}
}

// KindFromError maps an error to its export error kind. Context deadline and
// cancellation both surface as job timeouts: the job was terminated before
// completing.
func KindFromError(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var exportErr *ExportError
	if errors.As(err, &exportErr) {
		return exportErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}

	return KindInternal
}

// AsGoError maps an error into a go-errors error carrying the wire code.
func AsGoError(err error) *errorslib.Error {
	if err == nil {
		return nil
	}

	var ge *errorslib.Error
	if errors.As(err, &ge) {
		return ge
	}

	kind := KindFromError(err)
	msg := err.Error()
	var exportErr *ExportError
	if errors.As(err, &exportErr) && exportErr.Msg != "" {
		msg = exportErr.Msg
	}

	switch kind {
	case KindValidation, KindTemplateLimit, KindVariantMismatch:
		return errorslib.New(msg, errorslib.CategoryValidation).WithTextCode(string(kind))
	case KindNotFound, KindExpired:
		return errorslib.New(msg, errorslib.CategoryNotFound).WithTextCode(string(kind))
	case KindBackpressure, KindSourceDown, KindTimeout:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode(string(kind))
	default:
		return errorslib.New(msg, errorslib.CategoryInternal).WithTextCode(string(kind))
	}
}
