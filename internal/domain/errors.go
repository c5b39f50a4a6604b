package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	ErrTooManySessions = errors.New("too many live sessions")
)

// ErrorKind classifies why a dispatch did not produce a reply.
type ErrorKind string

const (
	KindEmptyInput         ErrorKind = "empty_input"
	KindInputTooLong       ErrorKind = "input_too_long"
	KindBusy               ErrorKind = "busy"
	KindRateLimited        ErrorKind = "rate_limited"
	KindServerError        ErrorKind = "server_error"
	KindNetworkUnreachable ErrorKind = "network_unreachable"
	KindTimeout            ErrorKind = "timeout"
	KindUnexpectedStatus   ErrorKind = "unexpected_status"
	KindApplicationError   ErrorKind = "application_error"
)

const (
	msgEmptyInput         = "Message cannot be empty."
	msgInputTooLong       = "Message is too long."
	msgBusy               = "Please wait for the current reply before sending another message."
	msgRateLimited        = "Too many requests. Please wait a moment and try again."
	msgServerError        = "Server error. The assistant is temporarily unavailable."
	msgNetworkUnreachable = "Cannot connect to the assistant. Please check your internet connection."
	msgTimeout            = "The assistant took too long to respond. Please try again."
	msgUnexpectedStatus   = "Sorry, I encountered an error. Please try again later."
	msgApplicationError   = "Failed to get response."
)

// DispatchError is the classified failure of a single dispatch.
type DispatchError struct {
	Kind   ErrorKind
	Status int    // HTTP status, 0 when no response was received
	Detail string // error text reported by the backend payload, if any
	Err    error
}

func (e *DispatchError) Error() string {
	var s string
	switch {
	case e.Status != 0:
		s = fmt.Sprintf("%s (status %d)", e.Kind, e.Status)
	default:
		s = string(e.Kind)
	}
	if e.Detail != "" {
		s += ": " + e.Detail
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *DispatchError) Unwrap() error { return e.Err }

// UserMessage is the text shown in the transcript and in State.Error.
func (e *DispatchError) UserMessage() string {
	switch e.Kind {
	case KindEmptyInput:
		return msgEmptyInput
	case KindInputTooLong:
		return msgInputTooLong
	case KindBusy:
		return msgBusy
	case KindRateLimited:
		return msgRateLimited
	case KindServerError:
		return msgServerError
	case KindNetworkUnreachable:
		return msgNetworkUnreachable
	case KindTimeout:
		return msgTimeout
	case KindApplicationError:
		if e.Detail != "" {
			return e.Detail
		}
		return msgApplicationError
	default:
		return msgUnexpectedStatus
	}
}

// NewDispatchError builds a DispatchError of the given kind.
func NewDispatchError(kind ErrorKind, err error) *DispatchError {
	return &DispatchError{Kind: kind, Err: err}
}

// AsDispatchError reports whether err is (or wraps) a DispatchError and
// returns it.
func AsDispatchError(err error) (*DispatchError, bool) {
	var de *DispatchError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// KindOf returns the ErrorKind of err, or "" if err is not a DispatchError.
func KindOf(err error) ErrorKind {
	if de, ok := AsDispatchError(err); ok {
		return de.Kind
	}
	return ""
}
