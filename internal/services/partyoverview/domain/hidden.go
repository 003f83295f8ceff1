package domain

import "sort"

// HiddenSet holds the actor IDs the gamemaster has hidden from the overview.
//
// The zero value is an empty, usable set.
type HiddenSet struct {
	ids map[string]struct{}
}

// NewHiddenSet returns a set containing ids.
func NewHiddenSet(ids ...string) HiddenSet {
	set := HiddenSet{}
	for _, id := range ids {
		set.Add(id)
	}
	return set
}

// Has reports whether id is hidden.
func (s HiddenSet) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Add hides id. Adding an already hidden id is a no-op.
func (s *HiddenSet) Add(id string) {
	if id == "" {
		return
	}
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}
	s.ids[id] = struct{}{}
}

// Remove unhides id. Removing an absent id is a no-op.
func (s *HiddenSet) Remove(id string) {
	delete(s.ids, id)
}

// Toggle flips the hidden state of id and reports whether it is now hidden.
func (s *HiddenSet) Toggle(id string) bool {
	if s.Has(id) {
		s.Remove(id)
		return false
	}
	s.Add(id)
	return s.Has(id)
}

// Len returns the number of hidden ids.
func (s HiddenSet) Len() int {
	return len(s.ids)
}

// IDs returns the hidden ids in sorted order.
func (s HiddenSet) IDs() []string {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns an independent copy of the set.
func (s HiddenSet) Clone() HiddenSet {
	return NewHiddenSet(s.IDs()...)
}
