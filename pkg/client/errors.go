package client

import (
	"errors"
	"fmt"
)

// Failure kinds of a single site request. Match with errors.Is.
var (
	// ErrNetwork covers transport failures, timeouts and non-2xx responses.
	ErrNetwork = errors.New("network error")

	// ErrDecode is returned when a response body does not have the expected shape.
	ErrDecode = errors.New("decode error")
)

// ErrorClass represents a finer classification of request errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx and other unexpected status codes.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents unparsable response bodies.
	ErrorClassDecode ErrorClass = "decode"
)

// SourceError is a failed request to one site endpoint for one key.
type SourceError struct {
	Class      ErrorClass
	Endpoint   string
	Key        string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	msg := fmt.Sprintf("%s %s error", e.Endpoint, e.Class)
	if e.Key != "" {
		msg += fmt.Sprintf(" for %s", e.Key)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *SourceError) Unwrap() error {
	return e.Err
}

// Is maps the error class onto ErrNetwork or ErrDecode.
func (e *SourceError) Is(target error) bool {
	switch target {
	case ErrDecode:
		return e.Class == ErrorClassDecode
	case ErrNetwork:
		return e.Class != ErrorClassDecode
	default:
		return false
	}
}

// Kind returns the error class as a metrics label.
func (e *SourceError) Kind() string {
	return string(e.Class)
}

// classifyStatus maps a non-2xx status code to an error class.
func classifyStatus(statusCode int) ErrorClass {
	if statusCode >= 400 && statusCode < 500 {
		return ErrorClassClient
	}
	return ErrorClassServer
}
