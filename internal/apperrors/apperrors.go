// Package apperrors defines the error taxonomy for the analysis pipeline.
// Every failed analysis resolves with exactly one of these kinds; none of
// them is fatal to the pipeline.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// Kind categorizes an analysis failure.
type Kind string

const (
	// KindQueueFull means the pipeline could not accept the request at all.
	KindQueueFull Kind = "queue_full"
	// KindSuperseded means the request was evicted to make room for a
	// newer one. Recency wins: conversation context ages quickly.
	KindSuperseded Kind = "superseded"
	// KindTimeout means the classifier did not answer inside the worker
	// timeout. Any late answer is discarded.
	KindTimeout Kind = "timeout"
	// KindClassifier wraps an error raised by the classifier itself.
	KindClassifier Kind = "classifier_error"
)

// AnalysisError wraps an errbuilder error with the pipeline error kind and
// the HTTP status the API layer should map it to.
type AnalysisError struct {
	*errbuilder.ErrBuilder
	Kind       Kind      `json:"kind"`
	HTTPStatus int       `json:"http_status"`
	Timestamp  time.Time `json:"timestamp"`
}

// Error implements the error interface.
func (e *AnalysisError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.ErrBuilder.Msg)
}

// Unwrap returns the underlying cause, if any.
func (e *AnalysisError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

func newAnalysisError(builder *errbuilder.ErrBuilder, kind Kind, status int) *AnalysisError {
	return &AnalysisError{
		ErrBuilder: builder,
		Kind:       kind,
		HTTPStatus: status,
		Timestamp:  time.Now(),
	}
}

// NewQueueFull creates the error returned when the pipeline rejects a
// request outright (submit channel saturated or pipeline stopped).
func NewQueueFull(detail string) *AnalysisError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeResourceExhausted).
		WithMsg("analysis queue full: " + detail)
	return newAnalysisError(builder, KindQueueFull, http.StatusServiceUnavailable)
}

// NewSuperseded creates the error a request is resolved with when it is
// evicted as the oldest outstanding entry.
func NewSuperseded(age time.Duration) *AnalysisError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeResourceExhausted).
		WithMsg(fmt.Sprintf("request superseded by newer work after %s", age))
	return newAnalysisError(builder, KindSuperseded, http.StatusConflict)
}

// NewTimeout creates the error a request is resolved with when its deadline
// fires before the classifier answers.
func NewTimeout(timeout time.Duration) *AnalysisError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeDeadlineExceeded).
		WithMsg(fmt.Sprintf("classification exceeded worker timeout of %s", timeout))
	return newAnalysisError(builder, KindTimeout, http.StatusGatewayTimeout)
}

// NewClassifierError wraps a classifier failure, surfaced verbatim to the
// caller.
func NewClassifierError(cause error) *AnalysisError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("classifier failed")
	if cause != nil {
		builder = builder.WithCause(cause)
	}
	return newAnalysisError(builder, KindClassifier, http.StatusBadGateway)
}

// IsKind reports whether err is an AnalysisError of the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or "" if err is not an AnalysisError.
func KindOf(err error) Kind {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// HTTPStatusOf maps err to the HTTP status the API should return,
// defaulting to 500 for non-pipeline errors.
func HTTPStatusOf(err error) int {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.HTTPStatus
	}
	return http.StatusInternalServerError
}
