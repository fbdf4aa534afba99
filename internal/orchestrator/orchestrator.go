// Package orchestrator sequences outline generation, per-section
// regeneration, and structural edits over a single section store. It is the
// only stateful, asynchronous component of the authoring core: structural
// edits run synchronously under its lock, generation calls suspend outside
// it, and results are reconciled against the store state current at
// resolution time.
package orchestrator

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"scriptloom/internal/genclient"
	"scriptloom/internal/outline"
)

// Validation failures. These never reach the generation service.
var (
	ErrBlankTheme = errors.New("theme must not be blank")
	ErrNoSections = errors.New("outline has no sections")
)

// Generator is the slice of the generation service the orchestrator uses.
// *genclient.Client satisfies it.
type Generator interface {
	GenerateOutline(ctx context.Context, req genclient.OutlineRequest) ([]outline.Section, error)
	CompleteOutline(ctx context.Context, p genclient.CompleteParams) (genclient.WrittenSection, error)
	RegenerateSection(ctx context.Context, req genclient.SectionContentRequest) (string, error)
	SaveOutline(ctx context.Context, req genclient.SaveRequest) (string, error)
	GetOutline(ctx context.Context, outlineID string) ([]outline.Section, error)
	WrittenSections(ctx context.Context, outlineID string) ([]genclient.WrittenSection, error)
}

// GenerateParams are the user-supplied authoring parameters for one
// outline. Zero-valued fields fall back to the same defaults the original
// authoring form used.
type GenerateParams struct {
	outline.Params
	NPersonView   string
	ExcludedWords string
}

func (p GenerateParams) withDefaults() GenerateParams {
	if p.WordCount <= 0 {
		p.WordCount = 2000
	}
	if p.Language == "" {
		p.Language = "English"
	}
	if p.Audience == "" {
		p.Audience = "General"
	}
	if p.Style == "" {
		p.Style = "Informative"
	}
	if p.Tone == "" {
		p.Tone = "Neutral"
	}
	if p.Model == "" {
		p.Model = "gpt-4o-mini"
	}
	if p.NPersonView == "" {
		p.NPersonView = "third"
	}
	return p
}

// RegenResult is the resolution of one section regeneration.
type RegenResult struct {
	SectionID string
	Content   string
	// Discarded is set when the section was deleted while the call was in
	// flight; the result is dropped without touching the store.
	Discarded bool
	Err       error
}

// Orchestrator owns a section store for one authoring session. Construct
// with New; the user identity and generation backend are explicit inputs,
// never ambient state.
type Orchestrator struct {
	gen    Generator
	userID string

	mu           sync.Mutex
	store        *outline.Store
	params       GenerateParams
	outlineID    string
	inflight     map[string]struct{}
	contentReady bool
}

// New creates an orchestrator with an empty outline for the given user.
func New(gen Generator, userID string) *Orchestrator {
	return &Orchestrator{
		gen:      gen,
		userID:   userID,
		store:    outline.NewStore(),
		inflight: make(map[string]struct{}),
	}
}

// GenerateOutline asks the service for a fresh outline and installs it,
// replacing whatever the store held. A blank theme is rejected locally. On
// failure the outline is left exactly as it was.
func (o *Orchestrator) GenerateOutline(ctx context.Context, p GenerateParams) error {
	if strings.TrimSpace(p.ScriptTitle) == "" {
		return ErrBlankTheme
	}
	p = p.withDefaults()

	sections, err := o.gen.GenerateOutline(ctx, genclient.OutlineRequest{
		ScriptTitle:    p.ScriptTitle,
		WordCount:      p.WordCount,
		Language:       p.Language,
		Audience:       p.Audience,
		Style:          p.Style,
		Tone:           p.Tone,
		Model:          p.Model,
		AdditionalData: p.AdditionalData,
	})
	if err != nil {
		return err
	}

	for i := range sections {
		sections[i].Content = ""
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.store.ReplaceAll(sections)
	o.params = p
	o.outlineID = ""
	o.contentReady = false
	return nil
}

// GenerateContent triggers full-content generation for the current outline.
// The outline is persisted first if it never was, so the service has stable
// section rows to write into. The first section's content arrives in the
// acknowledgment and is applied immediately; the rest lands server-side and
// is pulled in by SyncContent.
func (o *Orchestrator) GenerateContent(ctx context.Context) error {
	o.mu.Lock()
	if o.store.Len() == 0 {
		o.mu.Unlock()
		return ErrNoSections
	}
	sections := o.store.List()
	params := o.params
	outlineID := o.outlineID
	o.mu.Unlock()

	if outlineID == "" {
		id, err := o.Save(ctx)
		if err != nil {
			return err
		}
		outlineID = id
	}

	first, err := o.gen.CompleteOutline(ctx, genclient.CompleteParams{
		OutlineID:     outlineID,
		Sections:      sections,
		ScriptTitle:   params.ScriptTitle,
		Context:       params.AdditionalData,
		NPersonView:   params.NPersonView,
		ExcludedWords: params.ExcludedWords,
		Model:         params.Model,
	})
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if first.ID != "" && first.Content != "" {
		o.store.Update(first.ID, outline.Patch{Content: &first.Content})
	}
	o.contentReady = true
	return nil
}

// SyncContent pulls the written sections from the service and merges their
// content into sections that still exist locally. Content for sections the
// user deleted in the meantime is dropped. It returns how many sections
// received content.
func (o *Orchestrator) SyncContent(ctx context.Context) (int, error) {
	o.mu.Lock()
	outlineID := o.outlineID
	o.mu.Unlock()
	if outlineID == "" {
		return 0, ErrNoSections
	}

	written, err := o.gen.WrittenSections(ctx, outlineID)
	if err != nil {
		return 0, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	merged := 0
	for _, w := range written {
		if w.Content == "" {
			continue
		}
		if _, ok := o.store.Get(w.ID); !ok {
			continue
		}
		content := w.Content
		o.store.Update(w.ID, outline.Patch{Content: &content})
		merged++
	}
	return merged, nil
}

// Save persists the current outline through the generation service and
// records the returned id for later completion and sync calls.
func (o *Orchestrator) Save(ctx context.Context) (string, error) {
	o.mu.Lock()
	if o.store.Len() == 0 {
		o.mu.Unlock()
		return "", ErrNoSections
	}
	req := genclient.SaveRequest{
		Params:   o.params.Params,
		UserID:   o.userID,
		Sections: o.store.List(),
	}
	o.mu.Unlock()

	id, err := o.gen.SaveOutline(ctx, req)
	if err != nil {
		return "", err
	}

	o.mu.Lock()
	o.outlineID = id
	o.mu.Unlock()
	return id, nil
}

// Load replaces the session with a stored outline fetched through the
// service, so a saved draft can be edited further.
func (o *Orchestrator) Load(ctx context.Context, outlineID string) error {
	sections, err := o.gen.GetOutline(ctx, outlineID)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.store.ReplaceAll(sections)
	o.outlineID = outlineID
	o.contentReady = false
	return nil
}

// RegenerateSection starts an asynchronous rewrite of one section. It
// reports false without issuing a backend call when the id is unknown or a
// regeneration for it is already outstanding; requests are never queued.
// The returned channel receives exactly one result when the call resolves.
func (o *Orchestrator) RegenerateSection(ctx context.Context, id string) (<-chan RegenResult, bool) {
	o.mu.Lock()
	sec, ok := o.store.Get(id)
	if !ok {
		o.mu.Unlock()
		return nil, false
	}
	if _, busy := o.inflight[id]; busy {
		o.mu.Unlock()
		return nil, false
	}
	o.inflight[id] = struct{}{}
	req := o.sectionRequestLocked(sec)
	o.mu.Unlock()

	done := make(chan RegenResult, 1)
	go func() {
		content, err := o.gen.RegenerateSection(ctx, req)
		done <- o.resolveRegeneration(id, content, err)
	}()
	return done, true
}

// resolveRegeneration reconciles a finished regeneration against the store
// state current now, not at request time. A result for a section that was
// deleted in the meantime is discarded silently.
func (o *Orchestrator) resolveRegeneration(id, content string, err error) RegenResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, id)

	if _, ok := o.store.Get(id); !ok {
		log.Printf("discarding regeneration result for removed section %s", id)
		return RegenResult{SectionID: id, Discarded: true}
	}
	if err != nil {
		return RegenResult{SectionID: id, Err: err}
	}
	o.store.Update(id, outline.Patch{Content: &content})
	return RegenResult{SectionID: id, Content: content}
}

// sectionRequestLocked snapshots a section with its neighbors for a
// content request. Callers hold o.mu.
func (o *Orchestrator) sectionRequestLocked(sec outline.Section) genclient.SectionContentRequest {
	req := genclient.SectionContentRequest{
		SectionID:      sec.ID,
		CurrentSection: sec,
		ScriptTitle:    o.params.ScriptTitle,
		Context:        o.params.AdditionalData,
		NPersonView:    o.params.NPersonView,
		ExcludedWords:  o.params.ExcludedWords,
		Model:          o.params.Model,
	}
	list := o.store.List()
	for i := range list {
		if list[i].ID != sec.ID {
			continue
		}
		if i > 0 {
			prev := list[i-1]
			req.PreviousSection = &prev
		}
		if i < len(list)-1 {
			next := list[i+1]
			req.NextSection = &next
		}
		break
	}
	return req
}

// Reorder moves a section to toIndex. Synchronous passthrough to the store.
func (o *Orchestrator) Reorder(id string, toIndex int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.store.Reorder(id, toIndex)
}

// InsertSection appends a blank section the user can rename and returns it.
func (o *Orchestrator) InsertSection() outline.Section {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store.Append(outline.Section{
		Title:        "New Section",
		Instructions: "Describe how this section should be structured and what tone it should have.",
	})
}

// DeleteSection removes a section. Any in-flight regeneration for it now
// targets a removed section and will be discarded on arrival.
func (o *Orchestrator) DeleteSection(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store.Remove(id)
}

// EditSection applies a user edit to a section.
func (o *Orchestrator) EditSection(id string, patch outline.Patch) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store.Update(id, patch)
}

// Sections returns the current ordered view of the outline.
func (o *Orchestrator) Sections() []outline.Section {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store.List()
}

// Regenerating reports whether a regeneration is outstanding for id.
func (o *Orchestrator) Regenerating(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, busy := o.inflight[id]
	return busy
}

// ContentReady reports whether full-content generation has been triggered
// and acknowledged for the current outline.
func (o *Orchestrator) ContentReady() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.contentReady
}

// OutlineID returns the persisted id of the current outline, or empty if
// it was never saved.
func (o *Orchestrator) OutlineID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outlineID
}
