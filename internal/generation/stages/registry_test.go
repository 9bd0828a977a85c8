package stages

import (
	"errors"
	"strings"
	"testing"

	"github.com/Crohnos/dnd-generator/internal/domain/generation"
)

func TestDefaultRegistryIsValid(t *testing.T) {
	reg := Default()
	if reg.Len() != len(All()) {
		t.Fatalf("expected %d stages, got %d", len(All()), reg.Len())
	}
	prev := 0
	for _, d := range reg.Ordered() {
		if d.Ordinal <= prev {
			t.Fatalf("stages out of ordinal order at %s", d.ID)
		}
		prev = d.Ordinal
		if len(d.Categories) == 0 {
			t.Fatalf("%s owns no categories", d.ID)
		}
		if d.Budget.MaxTokens <= 0 {
			t.Fatalf("%s has no token budget", d.ID)
		}
	}
}

func TestValidateEveryDependencyPair(t *testing.T) {
	reg := Default()
	for _, d := range reg.Ordered() {
		for _, dep := range d.Dependencies {
			if err := reg.Validate(NewSet(), d.ID); err == nil {
				t.Fatalf("validate({}, %s) should fail", d.ID)
			}
			err := reg.Validate(NewSet(dep), d.ID)
			if len(d.Dependencies) == 1 && err != nil {
				t.Fatalf("validate({%s}, %s): %v", dep, d.ID, err)
			}
			if len(d.Dependencies) > 1 && err == nil {
				t.Fatalf("validate({%s}, %s) should fail: more than one dependency", dep, d.ID)
			}
		}
		if err := reg.Validate(NewSet(d.Dependencies...), d.ID); err != nil {
			t.Fatalf("validate(all deps, %s): %v", d.ID, err)
		}
	}
}

func TestValidateUnknownStage(t *testing.T) {
	reg := Default()
	err := reg.ValidateName(NewSet(All()...), "unknown")
	if generation.KindOf(err) != generation.KindUnknownStage {
		t.Fatalf("expected unknown stage, got %v", err)
	}

	small, err := NewRegistry(Descriptor{ID: CoreWorld, Ordinal: 1, Categories: []string{"planes"}})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if err := small.Validate(NewSet(), Relationships); generation.KindOf(err) != generation.KindUnknownStage {
		t.Fatalf("unregistered id should be unknown, got %v", err)
	}
}

func TestValidateStopsAtFirstMissingDependency(t *testing.T) {
	reg := Default()
	err := reg.Validate(NewSet(CoreWorld), PCEntities)
	var ge *generation.Error
	if !errors.As(err, &ge) || ge.Kind != generation.KindMissingDependency {
		t.Fatalf("expected missing dependency, got %v", err)
	}
	if !strings.Contains(ge.Message, CharacterBuilding.String()) {
		t.Fatalf("expected first missing dep %s in %q", CharacterBuilding, ge.Message)
	}
}

func TestScenarioDependentStageWaitsForPrerequisite(t *testing.T) {
	a := Descriptor{ID: CoreWorld, Ordinal: 1, Categories: []string{"planes"}}
	b := Descriptor{ID: CharacterBuilding, Ordinal: 2, Categories: []string{"races"}, Dependencies: []ID{CoreWorld}}
	reg, err := NewRegistry(a, b)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	completed := NewSet()
	if err := reg.Validate(completed, b.ID); !errors.Is(err, &generation.Error{Kind: generation.KindMissingDependency}) {
		t.Fatalf("B before A: expected missing dependency, got %v", err)
	}
	if err := reg.Validate(completed, a.ID); err != nil {
		t.Fatalf("A: %v", err)
	}
	completed.Add(a.ID)
	if err := reg.Validate(completed, b.ID); err != nil {
		t.Fatalf("B after A: %v", err)
	}
}

func TestNewRegistryRejectsBadGraphs(t *testing.T) {
	cases := []struct {
		name  string
		descs []Descriptor
		want  string
	}{
		{
			name:  "self dependency",
			descs: []Descriptor{{ID: CoreWorld, Ordinal: 1, Dependencies: []ID{CoreWorld}}},
			want:  "depends on itself",
		},
		{
			name: "cycle",
			descs: []Descriptor{
				{ID: CoreWorld, Ordinal: 1, Dependencies: []ID{CharacterBuilding}},
				{ID: CharacterBuilding, Ordinal: 2, Dependencies: []ID{CoreWorld}},
			},
			want: "cycle",
		},
		{
			name:  "unregistered dependency",
			descs: []Descriptor{{ID: CharacterBuilding, Ordinal: 1, Dependencies: []ID{CoreWorld}}},
			want:  "unregistered",
		},
		{
			name: "duplicate",
			descs: []Descriptor{
				{ID: CoreWorld, Ordinal: 1},
				{ID: CoreWorld, Ordinal: 2},
			},
			want: "duplicate",
		},
		{
			name: "shared ordinal",
			descs: []Descriptor{
				{ID: CoreWorld, Ordinal: 1},
				{ID: CharacterBuilding, Ordinal: 1},
			},
			want: "share ordinal",
		},
		{
			name:  "unknown id",
			descs: []Descriptor{{ID: ID(99), Ordinal: 1}},
			want:  "unknown stage",
		},
	}
	for _, tc := range cases {
		_, err := NewRegistry(tc.descs...)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, id := range All() {
		got, err := Parse(id.String())
		if err != nil || got != id {
			t.Fatalf("Parse(%q)=%v,%v", id.String(), got, err)
		}
	}
	if _, err := Parse("phase_9z"); generation.KindOf(err) != generation.KindUnknownStage {
		t.Fatalf("expected unknown stage, got %v", err)
	}
}

func TestRegistryReturnsCopies(t *testing.T) {
	reg := Default()

	ordered := reg.Ordered()
	ordered[0].Categories[0] = "mutated"
	for i := range ordered {
		if len(ordered[i].Dependencies) > 0 {
			ordered[i].Dependencies[0] = QuestsEncounters
		}
	}

	d, ok := reg.Get(CharacterBuilding)
	if !ok {
		t.Fatalf("expected %s in registry", CharacterBuilding)
	}
	d.Dependencies[0] = QuestsEncounters
	d.Categories = append(d.Categories[:0], "mutated")

	core, _ := reg.Get(CoreWorld)
	if core.Categories[0] == "mutated" {
		t.Fatalf("Ordered leaked the registry's category slice")
	}
	again, _ := reg.Get(CharacterBuilding)
	if again.Dependencies[0] != CoreWorld {
		t.Fatalf("dependency slice leaked: got %s", again.Dependencies[0])
	}
	if again.Categories[0] == "mutated" {
		t.Fatalf("Get leaked the registry's category slice")
	}
	if err := reg.Validate(NewSet(CoreWorld), CharacterBuilding); err != nil {
		t.Fatalf("validate after caller mutation: %v", err)
	}
}
