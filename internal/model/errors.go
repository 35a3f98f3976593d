package model

import (
	"fmt"
	"strings"
)

// ConfigError reports missing input columns or invalid command-line
// arguments. It is raised before any output is written.
type ConfigError struct {
	Missing []string
	Msg     string
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		msg := "missing " + strings.Join(e.Missing, ", ")
		if e.Msg != "" {
			msg += ": " + e.Msg
		}
		return msg
	}
	return e.Msg
}

// FormatError reports a required field that could not be parsed.
type FormatError struct {
	Line  int
	Field string
	Value string
	Err   error
}

func (e *FormatError) Error() string {
	var b strings.Builder
	if e.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", e.Line)
	}
	parts := make([]string, 0, 2)
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	if e.Value != "" {
		parts = append(parts, fmt.Sprintf("%q", e.Value))
	}
	b.WriteString(strings.Join(parts, " "))
	if e.Err != nil {
		if len(parts) > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// DataIntegrityWarning describes an optional token that was dropped.
// It is logged, never returned to callers.
type DataIntegrityWarning struct {
	Line  int
	Field string
	Token string
	Err   error
}

func (w DataIntegrityWarning) String() string {
	return fmt.Sprintf("line %d: dropped %s token %q: %v", w.Line, w.Field, w.Token, w.Err)
}
