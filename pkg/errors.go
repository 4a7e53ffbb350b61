package pkg

import (
	"errors"
	"fmt"
	"strings"
)

// Error is a domain failure carrying every diagnostic that contributed to it
type Error struct {
	Code        Code
	Message     string
	Diagnostics []Diagnostic
}

// NewError builds an Error from a code, a summary message and diagnostics.
func NewError(code Code, message string, diags ...Diagnostic) *Error {
	return &Error{Code: code, Message: message, Diagnostics: diags}
}

// Error returns a compact summary
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Diagnostics) == 0 {
		return b.String()
	}
	msgs := make([]string, 0, len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		msgs = append(msgs, d.String())
	}
	b.WriteString(" [")
	b.WriteString(strings.Join(msgs, "; "))
	b.WriteString("]")
	return b.String()
}

// String formats a diagnostic for humans and logs
func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteString(string(d.Code))
	if d.Operation > 0 {
		fmt.Fprintf(&b, " op#%d", d.Operation)
	}
	if d.CellID != "" {
		fmt.Fprintf(&b, " cell %q", d.CellID)
	}
	if d.Field != "" {
		fmt.Fprintf(&b, " %s", d.Field)
	}
	if d.Ref != "" {
		fmt.Fprintf(&b, " -> %q", d.Ref)
	}
	if d.Message != "" {
		b.WriteString(": ")
		b.WriteString(d.Message)
	}
	return b.String()
}

// CodeOf returns the code of a domain error, or "" for anything else.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// DiagnosticsOf returns the diagnostics of a domain error. A domain error without
// diagnostics yields a single diagnostic built from its code and message.
func DiagnosticsOf(err error) []Diagnostic {
	var e *Error
	if !errors.As(err, &e) {
		return nil
	}
	if len(e.Diagnostics) > 0 {
		return e.Diagnostics
	}
	return []Diagnostic{{Code: e.Code, Message: e.Message}}
}
