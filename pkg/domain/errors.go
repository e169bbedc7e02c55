package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindConfiguration ErrorKind = "CONFIGURATION"
	KindInvalidInput  ErrorKind = "INVALID_INPUT"
	KindNotFound      ErrorKind = "NOT_FOUND"
	KindTransport     ErrorKind = "TRANSPORT"
	KindModelRefusal  ErrorKind = "MODEL_REFUSAL"
	KindChain         ErrorKind = "CHAIN"
)

// Sentinels for errors.Is; a *Error matches the sentinel of its Kind.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("not found")
	ErrTransport     = errors.New("transport error")
	ErrModelRefusal  = errors.New("model refusal")
	ErrChain         = errors.New("chain error")
)

// Error is the structured failure every component returns at its boundary.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	// Body carries the upstream diagnostic payload of a TRANSPORT error, when the service sent one.
	Body string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s (response: %s)", msg, e.Body)
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfiguration:
		return e.Kind == KindConfiguration
	case ErrInvalidInput:
		return e.Kind == KindInvalidInput
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrModelRefusal:
		return e.Kind == KindModelRefusal
	case ErrChain:
		return e.Kind == KindChain
	}
	return false
}

func NewError(kind ErrorKind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

func ConfigurationError(op, message string) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Message: message}
}

func NotFoundError(op, message string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

func TransportError(op string, err error, body string) *Error {
	return &Error{Kind: KindTransport, Op: op, Err: err, Body: body}
}

func ChainError(op string, err error) *Error {
	return &Error{Kind: KindChain, Op: op, Err: err}
}

// KindOf reports the kind of err, or "" when err carries no *Error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
