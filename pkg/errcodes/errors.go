package errcodes

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Error is a failure whose Message is safe to show to a user verbatim.
type Error struct {
	HTTPCode int
	Message  string
	Code     string
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) As(target interface{}) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	te.HTTPCode = err.HTTPCode
	te.Message = err.Message
	te.Code = err.Code
	return true
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.HTTPCode == err.HTTPCode &&
		te.Message == err.Message &&
		te.Code == err.Code
}

// HasCode reports whether err wraps an *Error carrying the given code.
func HasCode(err error, code string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// NotFound returns a 404 error with a message indicating the given resource.
func NotFound(resource string) error {
	return &Error{
		http.StatusNotFound,
		resource + " not found.",
		"not_found",
	}
}

func Conflict(msg string) error {
	return &Error{
		http.StatusConflict,
		msg,
		"conflict",
	}
}

// Duplicate is returned when an import matches a book that is already in the
// catalog. The existing title is part of the message.
func Duplicate(existingTitle string) error {
	return &Error{
		http.StatusConflict,
		fmt.Sprintf("Book already exists: %q.", existingTitle),
		"duplicate",
	}
}

func UnsupportedFormat(fileName string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		fmt.Sprintf("Unsupported document format for %q.", fileName),
		"unsupported_format",
	}
}

// OutOfRange is returned by reader navigation when an index falls outside the
// document.
func OutOfRange(what string, index, count int) error {
	return &Error{
		http.StatusUnprocessableEntity,
		fmt.Sprintf("%s %d is out of range (0..%d).", what, index, count-1),
		"out_of_range",
	}
}

func NotReady(msg string) error {
	return &Error{
		http.StatusConflict,
		msg,
		"not_ready",
	}
}

func Cancelled() error {
	return &Error{
		499,
		"Import was cancelled.",
		"cancelled",
	}
}

func UnsupportedMediaType() error {
	return &Error{
		http.StatusUnsupportedMediaType,
		"Unsupported Media Type",
		"unsupported_media_type",
	}
}

func UnknownParameter(param string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		fmt.Sprintf("Unknown Parameter %q", param),
		"unknown_parameter",
	}
}

func ValidationTypeError(msg string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		msg,
		"validation_type_error",
	}
}

func ValidationError(msg string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		msg,
		"validation_error",
	}
}

func MalformedPayload() error {
	return &Error{
		http.StatusBadRequest,
		"Malformed Payload",
		"malformed_payload",
	}
}

func EmptyRequestBody() error {
	return &Error{
		http.StatusBadRequest,
		"Request body can't be empty.",
		"empty_request_body",
	}
}
