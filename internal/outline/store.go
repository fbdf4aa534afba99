package outline

import (
	"github.com/google/uuid"
)

// Store holds the ordered section sequence for one editing session. It is
// the single source of truth for ordering and content while an outline is
// being edited. All operations are synchronous, total, and perform no I/O;
// an absent id is a no-op, never an error, because edit/delete races from
// the UI are expected. After every mutation the positions are a contiguous
// 0..n-1 run matching slice order.
//
// The Store is not safe for concurrent use on its own; the orchestrator
// that owns it serializes access.
type Store struct {
	sections []Section
}

// NewStore returns an empty section store.
func NewStore() *Store {
	return &Store{}
}

// ReplaceAll discards the current sequence and installs the given one in
// order, renumbering positions from zero. Whatever positions the input
// carried are overwritten.
func (s *Store) ReplaceAll(sections []Section) {
	s.sections = make([]Section, len(sections))
	copy(s.sections, sections)
	s.renumber()
}

// Reorder moves the section with id to toIndex, clamped to the valid
// range, and renumbers. Reordering never touches any other field.
func (s *Store) Reorder(id string, toIndex int) {
	from := s.indexOf(id)
	if from < 0 {
		return
	}
	if toIndex < 0 {
		toIndex = 0
	}
	if toIndex > len(s.sections)-1 {
		toIndex = len(s.sections) - 1
	}
	if toIndex == from {
		return
	}

	moved := s.sections[from]
	s.sections = append(s.sections[:from], s.sections[from+1:]...)
	s.sections = append(s.sections, Section{})
	copy(s.sections[toIndex+1:], s.sections[toIndex:])
	s.sections[toIndex] = moved
	s.renumber()
}

// Insert places sec at atIndex (clamped; past-the-end appends) and
// renumbers. A section arriving without an id is assigned a fresh one.
// The stored section is returned so callers can learn the assigned id.
func (s *Store) Insert(sec Section, atIndex int) Section {
	if sec.ID == "" {
		sec.ID = uuid.NewString()
	}
	if atIndex < 0 {
		atIndex = 0
	}
	if atIndex > len(s.sections) {
		atIndex = len(s.sections)
	}

	s.sections = append(s.sections, Section{})
	copy(s.sections[atIndex+1:], s.sections[atIndex:])
	s.sections[atIndex] = sec
	s.renumber()
	return s.sections[atIndex]
}

// Append inserts sec at the end of the sequence.
func (s *Store) Append(sec Section) Section {
	return s.Insert(sec, len(s.sections))
}

// Remove deletes the section with id and renumbers the remainder. It
// reports whether a deletion occurred, so the owner can treat any
// in-flight regeneration for that id as targeting a removed section.
func (s *Store) Remove(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.sections = append(s.sections[:i], s.sections[i+1:]...)
	s.renumber()
	return true
}

// Update shallow-merges patch into the section with id. Position and id
// are never changed by an update. Reports whether a section was patched.
func (s *Store) Update(id string, patch Patch) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	sec := &s.sections[i]
	if patch.Title != nil {
		sec.Title = *patch.Title
	}
	if patch.Description != nil {
		sec.Description = *patch.Description
	}
	if patch.Instructions != nil {
		sec.Instructions = *patch.Instructions
	}
	if patch.Content != nil {
		sec.Content = *patch.Content
	}
	return true
}

// Get returns the section with id, if present.
func (s *Store) Get(id string) (Section, bool) {
	i := s.indexOf(id)
	if i < 0 {
		return Section{}, false
	}
	return s.sections[i], true
}

// List returns a copy of the sections in position order.
func (s *Store) List() []Section {
	out := make([]Section, len(s.sections))
	copy(out, s.sections)
	return out
}

// Len returns the number of sections.
func (s *Store) Len() int {
	return len(s.sections)
}

func (s *Store) indexOf(id string) int {
	for i := range s.sections {
		if s.sections[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) renumber() {
	for i := range s.sections {
		s.sections[i].Position = i
	}
}
