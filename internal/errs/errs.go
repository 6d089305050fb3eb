package errs

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Code is a harness error code.
type Code string

const (
	InvalidArgument  Code = "invalid_argument"
	NavigationFailed Code = "navigation_failed"
	LocatorNotFound  Code = "locator_not_found"
	LocatorAmbiguous Code = "locator_ambiguous"
	AssertionTimeout Code = "assertion_timeout"
	ActionFailed     Code = "action_failed"
	Unavailable      Code = "unavailable"
	Canceled         Code = "canceled"
	Internal         Code = "internal"
)

// Diagnostics describes the last thing a polling check saw before giving up.
type Diagnostics struct {
	Subject  string `json:"subject,omitempty"`
	Expected string `json:"expected"`
	Observed string `json:"observed"`
	Attempts int    `json:"attempts,omitempty"`
}

func (d Diagnostics) String() string {
	var b strings.Builder
	if d.Subject != "" {
		fmt.Fprintf(&b, "subject: %s\n", d.Subject)
	}
	fmt.Fprintf(&b, "expected: %s\n", d.Expected)
	fmt.Fprintf(&b, "observed: %s", d.Observed)
	if d.Attempts > 0 {
		fmt.Fprintf(&b, "\nattempts: %d", d.Attempts)
	}
	return b.String()
}

// Error is a coded harness error.
type Error struct {
	Code        Code
	Message     string
	Err         error
	Diagnostics *Diagnostics
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Code)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a coded error with message.
func New(code Code, message string) error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a coded error with message and cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// WithDiagnostics creates a coded error carrying the last observation.
func WithDiagnostics(code Code, message string, diag Diagnostics) error {
	return &Error{
		Code:        code,
		Message:     message,
		Diagnostics: &diag,
	}
}

// CodeOf returns the error code, defaulting to internal.
func CodeOf(err error) Code {
	if err == nil {
		return Internal
	}
	var coded *Error
	if errors.As(err, &coded) {
		if coded.Code == "" {
			return Internal
		}
		return coded.Code
	}
	return Internal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// MessageOf returns the coded message, or the raw error text for untyped errors.
func MessageOf(err error) string {
	if err == nil {
		return string(Internal)
	}
	var coded *Error
	if errors.As(err, &coded) && coded.Message != "" {
		return coded.Message
	}
	return err.Error()
}

// DiagnosticsOf returns the diagnostics attached anywhere in the chain.
func DiagnosticsOf(err error) (Diagnostics, bool) {
	var coded *Error
	for err != nil {
		if !errors.As(err, &coded) {
			return Diagnostics{}, false
		}
		if coded.Diagnostics != nil {
			return *coded.Diagnostics, true
		}
		err = coded.Err
	}
	return Diagnostics{}, false
}

// InterruptCode codes a wait that stopped before its own deadline. A
// canceled context is Canceled; anything else keeps code.
func InterruptCode(cause error, code Code) Code {
	if errors.Is(cause, context.Canceled) {
		return Canceled
	}
	return code
}

// IsFailure reports whether the code represents a verification failure in the
// system under test rather than a harness or environment error.
func IsFailure(code Code) bool {
	switch code {
	case AssertionTimeout, LocatorNotFound, LocatorAmbiguous:
		return true
	default:
		return false
	}
}
