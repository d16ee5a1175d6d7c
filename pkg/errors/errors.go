package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrFileTooBig        = errors.New("file too large to memory-map")
	ErrMalformedIndex    = errors.New("malformed index record")
	ErrRegisterCorrupt   = errors.New("index register is corrupt")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrUnknownCharset    = errors.New("unknown charset")
	ErrUnsupportedChunk  = errors.New("partial chunks are not supported")
	ErrCapacityExceeded  = errors.New("value exceeds 32-bit index capacity")
	ErrIndexNotFound     = errors.New("index file not found")
	ErrSearchUnavailable = errors.New("search backend unavailable")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrUnknownCharset):
		return http.StatusBadRequest
	case errors.Is(err, ErrIndexNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrFileTooBig), errors.Is(err, ErrCapacityExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrSearchUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
