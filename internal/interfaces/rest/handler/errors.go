package handler

import (
	"errors"
	"net/http"

	"github.com/pot-code/coursegate/internal/course"
	"github.com/pot-code/coursegate/internal/infrastructure/validate"
	"github.com/pot-code/coursegate/internal/playback"
	"github.com/pot-code/coursegate/internal/progress"
	"github.com/pot-code/coursegate/internal/quiz"
	"github.com/pot-code/coursegate/internal/unlock"
)

// RESTStandardError response error
type RESTStandardError struct {
	Type    string `json:"type,omitempty"`
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Detail  string `json:"detail,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

func NewRESTStandardError(code int, detail string) *RESTStandardError {
	return &RESTStandardError{
		Code:   code,
		Title:  http.StatusText(code),
		Detail: detail,
	}
}

func (re RESTStandardError) Error() string {
	return re.Detail
}

func (re RESTStandardError) SetTraceID(traceID string) RESTStandardError {
	re.TraceID = traceID
	return re
}

// RESTValidationError standard validation error
type RESTValidationError struct {
	RESTStandardError
	InvalidParams []*validate.FieldError `json:"invalid_params"`
}

func NewRESTValidationError(code int, detail string, internal []*validate.FieldError) *RESTValidationError {
	return &RESTValidationError{
		RESTStandardError: RESTStandardError{
			Code:   code,
			Title:  http.StatusText(code),
			Detail: detail,
		},
		InvalidParams: internal,
	}
}

func (rve RESTValidationError) Error() string {
	return rve.Detail
}

func (rve RESTValidationError) SetTraceID(traceID string) RESTValidationError {
	rve.RESTStandardError.TraceID = traceID
	return rve
}

// errorStatus maps domain errors to a status code
var errorStatus = []struct {
	err  error
	code int
}{
	{progress.ErrStoreUnavailable, http.StatusServiceUnavailable},
	{course.ErrCourseNotFound, http.StatusNotFound},
	{course.ErrQuizNotFound, http.StatusNotFound},
	{unlock.ErrLessonNotFound, http.StatusNotFound},
	{playback.ErrNoSession, http.StatusNotFound},
	{unlock.ErrOutOfOrderCompletion, http.StatusConflict},
	{playback.ErrLessonLocked, http.StatusConflict},
	{playback.ErrStaleSession, http.StatusConflict},
	{quiz.ErrQuizLocked, http.StatusConflict},
	{quiz.ErrIncompleteAnswers, http.StatusBadRequest},
}

// StatusOf status code and public detail of err
func StatusOf(err error) (int, string) {
	if errors.Is(err, progress.ErrStoreUnavailable) {
		return http.StatusServiceUnavailable, "Progress not saved, please retry"
	}
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.code, e.err.Error()
		}
	}
	return http.StatusInternalServerError, err.Error()
}
