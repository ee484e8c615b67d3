package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindWorkspace
	KindExtraction
	KindSummarization
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindWorkspace:
		return "workspace"
	case KindExtraction:
		return "extraction_failed"
	case KindSummarization:
		return "summarization_failed"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// JobError is a job-ending failure. Message is safe to show to the listener;
// Error includes the cause for logs.
type JobError struct {
	Kind    Kind   `json:"-"`
	Message string `json:"error"`
	Op      string `json:"-"`
	Err     error  `json:"-"`
}

func (e *JobError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// StatusCode maps the kind to an HTTP status for non-streaming responses.
func (e *JobError) StatusCode() int {
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindExtraction, KindSummarization:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func E(kind Kind, op string, err error, message string) *JobError {
	return &JobError{
		Kind:    kind,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func InvalidInput(op string, err error, message string) *JobError {
	return E(KindInvalidInput, op, err, message)
}

func Workspace(op string, err error, message string) *JobError {
	return E(KindWorkspace, op, err, message)
}

func ExtractionFailed(op string, err error, message string) *JobError {
	return E(KindExtraction, op, err, message)
}

func SummarizationFailed(op string, err error, message string) *JobError {
	return E(KindSummarization, op, err, message)
}

func RateLimited(op string, message string) *JobError {
	return E(KindRateLimited, op, nil, message)
}

func Internal(op string, err error, message string) *JobError {
	return E(KindInternal, op, err, message)
}

// KindOf returns the kind of the first JobError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var je *JobError
	if stderrors.As(err, &je) {
		return je.Kind
	}
	return KindInternal
}

// Message returns the listener-facing text for err.
func Message(err error) string {
	var je *JobError
	if stderrors.As(err, &je) {
		return je.Message
	}
	return "서버 오류가 발생했습니다."
}

func IsWorkspace(err error) bool {
	return err != nil && KindOf(err) == KindWorkspace
}

func IsExtractionFailed(err error) bool {
	return err != nil && KindOf(err) == KindExtraction
}

func IsSummarizationFailed(err error) bool {
	return err != nil && KindOf(err) == KindSummarization
}

func IsInvalidInput(err error) bool {
	return err != nil && KindOf(err) == KindInvalidInput
}
