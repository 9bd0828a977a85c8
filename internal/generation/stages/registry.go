package stages

import (
	"fmt"
	"sort"

	"github.com/Crohnos/dnd-generator/internal/domain/generation"
)

// Set is an insertion-ordered set of completed stages.
type Set struct {
	order []ID
	has   map[ID]bool
}

func NewSet(ids ...ID) *Set {
	s := &Set{has: map[ID]bool{}}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s *Set) Add(id ID) {
	if s.has == nil {
		s.has = map[ID]bool{}
	}
	if s.has[id] {
		return
	}
	s.has[id] = true
	s.order = append(s.order, id)
}

func (s *Set) Has(id ID) bool { return s != nil && s.has[id] }

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

func (s *Set) IDs() []ID {
	if s == nil {
		return nil
	}
	return append([]ID(nil), s.order...)
}

// Registry is the immutable stage catalogue. It is safe for concurrent reads.
type Registry struct {
	ordered []Descriptor
	byID    map[ID]Descriptor
}

// NewRegistry validates descs as a DAG and orders them by ordinal.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	if len(descs) == 0 {
		return nil, fmt.Errorf("stage registry: no stages")
	}
	byID := make(map[ID]Descriptor, len(descs))
	ordinals := map[int]ID{}
	for _, d := range descs {
		if !d.ID.Valid() {
			return nil, fmt.Errorf("stage registry: %w", generation.UnknownStage(d.ID.String()))
		}
		if _, dup := byID[d.ID]; dup {
			return nil, fmt.Errorf("stage registry: duplicate stage %s", d.ID)
		}
		if other, dup := ordinals[d.Ordinal]; dup {
			return nil, fmt.Errorf("stage registry: %s and %s share ordinal %d", other, d.ID, d.Ordinal)
		}
		ordinals[d.Ordinal] = d.ID
		d.Categories = append([]string(nil), d.Categories...)
		d.Dependencies = append([]ID(nil), d.Dependencies...)
		byID[d.ID] = d
	}

	ordered := make([]Descriptor, 0, len(byID))
	for _, d := range byID {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Ordinal < ordered[j].Ordinal })

	if err := validateDAG(ordered, byID); err != nil {
		return nil, fmt.Errorf("stage registry: %w", err)
	}
	return &Registry{ordered: ordered, byID: byID}, nil
}

func validateDAG(ordered []Descriptor, byID map[ID]Descriptor) error {
	deg := map[ID]int{}
	out := map[ID][]ID{}
	for _, d := range ordered {
		deg[d.ID] = 0
	}
	for _, d := range ordered {
		for _, dep := range d.Dependencies {
			if dep == d.ID {
				return fmt.Errorf("stage %s depends on itself", d.ID)
			}
			if _, ok := byID[dep]; !ok {
				return fmt.Errorf("stage %s depends on unregistered stage %s", d.ID, dep)
			}
			deg[d.ID]++
			out[dep] = append(out[dep], d.ID)
		}
	}

	// Kahn topological sort.
	queue := []ID{}
	for _, d := range ordered {
		if deg[d.ID] == 0 {
			queue = append(queue, d.ID)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, n := range out[id] {
			deg[n]--
			if deg[n] == 0 {
				queue = append(queue, n)
			}
		}
	}
	if visited != len(ordered) {
		return fmt.Errorf("cycle detected in stage graph")
	}
	return nil
}

// Ordered returns the stages in ascending ordinal order. The result is a
// copy; callers may modify it freely.
func (r *Registry) Ordered() []Descriptor {
	out := make([]Descriptor, len(r.ordered))
	for i, d := range r.ordered {
		out[i] = d.clone()
	}
	return out
}

func (r *Registry) Len() int { return len(r.ordered) }

func (r *Registry) Get(id ID) (Descriptor, bool) {
	d, ok := r.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return d.clone(), true
}

func (d Descriptor) clone() Descriptor {
	d.Categories = append([]string(nil), d.Categories...)
	d.Dependencies = append([]ID(nil), d.Dependencies...)
	return d
}

// Validate checks that every dependency of target is in completed. It stops
// at the first missing dependency, in declared order.
func (r *Registry) Validate(completed *Set, target ID) error {
	d, ok := r.byID[target]
	if !ok {
		return generation.UnknownStage(target.String())
	}
	for _, dep := range d.Dependencies {
		if !completed.Has(dep) {
			return generation.MissingDependency(target.String(), dep.String())
		}
	}
	return nil
}

// ValidateName is Validate for a stage given by name.
func (r *Registry) ValidateName(completed *Set, target string) error {
	id, err := Parse(target)
	if err != nil {
		return err
	}
	return r.Validate(completed, id)
}
