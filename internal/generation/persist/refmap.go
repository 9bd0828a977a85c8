package persist

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a referenceable row kind. Each kind is backed by one table.
type Kind string

const (
	KindPlane      Kind = "plane"
	KindRegion     Kind = "region"
	KindRace       Kind = "race"
	KindClass      Kind = "class"
	KindBackground Kind = "background"
	KindLanguage   Kind = "language"
	KindFaction    Kind = "faction"
	KindPantheon   Kind = "pantheon"
	KindDeity      Kind = "deity"
	KindEntity     Kind = "entity"
	KindLocation   Kind = "location"
	KindItem       Kind = "item"
)

var kindTables = []struct {
	kind  Kind
	table string
}{
	{KindPlane, "planes"},
	{KindRegion, "geography_regions"},
	{KindRace, "races"},
	{KindClass, "character_classes"},
	{KindBackground, "backgrounds"},
	{KindLanguage, "languages"},
	{KindFaction, "factions"},
	{KindPantheon, "pantheons"},
	{KindDeity, "deities"},
	{KindEntity, "entities"},
	{KindLocation, "locations"},
	{KindItem, "items"},
}

// ErrAmbiguousReference is returned when a referenced name matches more than
// one row of its kind.
var ErrAmbiguousReference = errors.New("ambiguous reference")

type refEntry struct {
	id        uint
	ambiguous bool
}

// RefMap resolves free-text names to row ids for one stage. Names compare
// case-insensitively after trimming.
type RefMap struct {
	byKind map[Kind]map[string]refEntry
}

func NewRefMap() *RefMap {
	return &RefMap{byKind: map[Kind]map[string]refEntry{}}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register records id under name. A second registration of the same name
// marks it ambiguous; that only matters if the name is looked up later.
func (m *RefMap) Register(kind Kind, name string, id uint) {
	key := normalizeName(name)
	if key == "" || id == 0 {
		return
	}
	names := m.byKind[kind]
	if names == nil {
		names = map[string]refEntry{}
		m.byKind[kind] = names
	}
	if prev, ok := names[key]; ok {
		if prev.id != id {
			names[key] = refEntry{id: prev.id, ambiguous: true}
		}
		return
	}
	names[key] = refEntry{id: id}
}

// Lookup returns the id registered for name. ok is false when the name is
// unknown; err is set when it is ambiguous.
func (m *RefMap) Lookup(kind Kind, name string) (id uint, ok bool, err error) {
	key := normalizeName(name)
	if key == "" {
		return 0, false, nil
	}
	e, found := m.byKind[kind][key]
	if !found {
		return 0, false, nil
	}
	if e.ambiguous {
		return 0, false, fmt.Errorf("%w: %s %q matches more than one row", ErrAmbiguousReference, kind, strings.TrimSpace(name))
	}
	return e.id, true, nil
}

// Has reports whether name is registered for kind, ambiguous or not.
func (m *RefMap) Has(kind Kind, name string) bool {
	_, ok := m.byKind[kind][normalizeName(name)]
	return ok
}

func (m *RefMap) Len(kind Kind) int { return len(m.byKind[kind]) }
