package writer

import (
	"context"
)

// Writer generates outline structure and section prose from a brief. It is
// the generation service's own model layer; the HTTP API sits in front of it.
type Writer interface {
	// OutlineDraft returns an ordered list of section plans for a script.
	OutlineDraft(ctx context.Context, brief OutlineBrief) ([]SectionPlan, error)
	// SectionContent writes the prose for exactly one section.
	SectionContent(ctx context.Context, brief SectionBrief) (string, error)
}

// SectionPlan is one planned section of an outline draft: structure and
// guidance, no prose.
type SectionPlan struct {
	Position     int    `json:"position"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Instructions string `json:"instructions"`
}

// OutlineBrief describes the outline to draft.
type OutlineBrief struct {
	ScriptTitle   string
	Audience      string
	Style         string
	Tone          string
	Language      string
	SectionsCount int
	Context       string
}

// SectionBrief describes one section to write, with its neighbors for
// continuity. PreviousContent carries the already-written text of the
// preceding section, truncated by the caller, so the model avoids
// repeating itself.
type SectionBrief struct {
	ScriptTitle     string
	Current         SectionPlan
	Previous        *SectionPlan
	Next            *SectionPlan
	Context         string
	NPersonView     string
	ExcludedWords   string
	PreviousContent string
}
