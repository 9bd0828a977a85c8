package generation

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKindMatching(t *testing.T) {
	err := fmt.Errorf("run: %w", MissingDependency("b", "a"))

	if !errors.Is(err, &Error{Kind: KindMissingDependency}) {
		t.Fatalf("expected missing dependency match, got %v", err)
	}
	if !errors.Is(err, &Error{Kind: KindMissingDependency, Stage: "b"}) {
		t.Fatalf("expected stage-qualified match")
	}
	if errors.Is(err, &Error{Kind: KindMissingDependency, Stage: "a"}) {
		t.Fatalf("unexpected match on other stage")
	}
	if KindOf(err) != KindMissingDependency {
		t.Fatalf("KindOf=%q", KindOf(err))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatalf("plain errors carry no kind")
	}
}

func TestGenerationInterfaceKeepsReason(t *testing.T) {
	err := GenerationInterface("phase_1a_core_world", NonConformingOutput("no tool_use block"))
	if KindOf(err) != KindGenerationInterface {
		t.Fatalf("KindOf=%q", KindOf(err))
	}
	if ReasonOf(err) != ReasonNonConformingOutput {
		t.Fatalf("ReasonOf=%q", ReasonOf(err))
	}
	want := "generative service non_conforming_output: no tool_use block"
	if err.Error() != want {
		t.Fatalf("Error()=%q want %q", err.Error(), want)
	}
}

func TestPersistenceNilCause(t *testing.T) {
	if Persistence("x", nil) != nil {
		t.Fatalf("nil cause should yield nil error")
	}
}
