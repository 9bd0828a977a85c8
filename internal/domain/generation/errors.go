package generation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies run-terminating generation failures. None of them is retried.
type Kind string

const (
	KindUnknownStage         Kind = "unknown_stage"
	KindMissingDependency    Kind = "missing_dependency"
	KindSchemaTranslationGap Kind = "schema_translation_gap"
	KindGenerationInterface  Kind = "generation_interface"
	KindPersistence          Kind = "persistence"
)

// Error is the canonical generation failure.
type Error struct {
	Kind    Kind
	Stage   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches on Kind so callers can test errors.Is(err, &Error{Kind: ...}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}
	return t.Kind == e.Kind && (t.Stage == "" || t.Stage == e.Stage)
}

func UnknownStage(name string) error {
	return &Error{
		Kind:    KindUnknownStage,
		Stage:   name,
		Message: fmt.Sprintf("unknown stage %q", name),
	}
}

func MissingDependency(stage, dep string) error {
	return &Error{
		Kind:    KindMissingDependency,
		Stage:   stage,
		Message: fmt.Sprintf("stage %s requires %s to be completed first", stage, dep),
	}
}

func SchemaTranslationGap(stage string, categories []string) error {
	return &Error{
		Kind:    KindSchemaTranslationGap,
		Stage:   stage,
		Message: fmt.Sprintf("no translatable schema for any category of stage %s (%s)", stage, strings.Join(categories, ", ")),
	}
}

func Persistence(stage string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{
		Kind:    KindPersistence,
		Stage:   stage,
		Message: "persist " + stage + ": " + cause.Error(),
		Cause:   cause,
	}
}

// KindOf extracts the Kind of a generation error, or "" when err is not one.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// Reason enumerates the ways the generative service interface can fail.
type Reason string

const (
	ReasonUnauthorized        Reason = "unauthorized"
	ReasonRateLimited         Reason = "rate_limited"
	ReasonMalformedRequest    Reason = "malformed_request"
	ReasonTransport           Reason = "transport"
	ReasonNonConformingOutput Reason = "non_conforming_output"
)

// InterfaceError is returned by generative service clients.
type InterfaceError struct {
	Reason     Reason
	StatusCode int
	RetryAfter time.Duration
	Message    string
	Cause      error
}

func (e *InterfaceError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("generative service ")
	b.WriteString(string(e.Reason))
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (http %d)", e.StatusCode)
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	} else if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *InterfaceError) Unwrap() error { return e.Cause }

func NonConformingOutput(msg string) error {
	return &InterfaceError{Reason: ReasonNonConformingOutput, Message: msg}
}

// GenerationInterface wraps a client failure as a run-terminating error for stage.
func GenerationInterface(stage string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{
		Kind:  KindGenerationInterface,
		Stage: stage,
		Cause: cause,
	}
}

// ReasonOf extracts the interface failure reason, or "" when err is not one.
func ReasonOf(err error) Reason {
	var ie *InterfaceError
	if errors.As(err, &ie) {
		return ie.Reason
	}
	return ""
}
