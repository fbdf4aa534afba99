package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scriptloom/internal/genclient"
	"scriptloom/internal/outline"
)

// fakeGenerator is a scriptable Generator. Regeneration calls block on
// gate when it is set, so tests can hold a call in flight.
type fakeGenerator struct {
	outlineSections []outline.Section
	outlineErr      error
	completeFirst   genclient.WrittenSection
	completeErr     error
	regenContent    string
	regenErr        error
	written         []genclient.WrittenSection

	gate       chan struct{}
	regenCalls atomic.Int64
}

func (f *fakeGenerator) GenerateOutline(ctx context.Context, req genclient.OutlineRequest) ([]outline.Section, error) {
	if f.outlineErr != nil {
		return nil, f.outlineErr
	}
	return f.outlineSections, nil
}

func (f *fakeGenerator) CompleteOutline(ctx context.Context, p genclient.CompleteParams) (genclient.WrittenSection, error) {
	if f.completeErr != nil {
		return genclient.WrittenSection{}, f.completeErr
	}
	return f.completeFirst, nil
}

func (f *fakeGenerator) RegenerateSection(ctx context.Context, req genclient.SectionContentRequest) (string, error) {
	f.regenCalls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.regenErr != nil {
		return "", f.regenErr
	}
	return f.regenContent, nil
}

func (f *fakeGenerator) SaveOutline(ctx context.Context, req genclient.SaveRequest) (string, error) {
	return "outline-1", nil
}

func (f *fakeGenerator) GetOutline(ctx context.Context, outlineID string) ([]outline.Section, error) {
	return f.outlineSections, nil
}

func (f *fakeGenerator) WrittenSections(ctx context.Context, outlineID string) ([]genclient.WrittenSection, error) {
	return f.written, nil
}

func seededOrchestrator(t *testing.T, gen *fakeGenerator) *Orchestrator {
	t.Helper()
	if gen.outlineSections == nil {
		gen.outlineSections = []outline.Section{
			{ID: "s1", Title: "Opening", Position: 42},
			{ID: "s2", Title: "Middle", Position: 42},
			{ID: "s3", Title: "Closing", Position: 42},
		}
	}
	o := New(gen, "user-1")
	require.NoError(t, o.GenerateOutline(context.Background(), GenerateParams{
		Params: outline.Params{ScriptTitle: "The Secret Life of Elephants"},
	}))
	return o
}

func TestGenerateOutline_RejectsBlankTheme(t *testing.T) {
	gen := &fakeGenerator{}
	o := New(gen, "user-1")

	err := o.GenerateOutline(context.Background(), GenerateParams{})

	require.ErrorIs(t, err, ErrBlankTheme)
	assert.Empty(t, o.Sections())

	// A theme that is nothing but whitespace is just as blank.
	whitespace := GenerateParams{}
	whitespace.ScriptTitle = "   \t"
	err = o.GenerateOutline(context.Background(), whitespace)

	require.ErrorIs(t, err, ErrBlankTheme)
	assert.Empty(t, o.Sections())
}

func TestGenerateOutline_InstallsSectionsWithContiguousPositions(t *testing.T) {
	o := seededOrchestrator(t, &fakeGenerator{})

	sections := o.Sections()
	require.Len(t, sections, 3)
	for i, sec := range sections {
		assert.Equal(t, i, sec.Position, "backend-supplied positions must be renumbered")
		assert.Empty(t, sec.Content)
	}
}

func TestGenerateOutline_FailureLeavesOutlineUntouched(t *testing.T) {
	gen := &fakeGenerator{}
	o := seededOrchestrator(t, gen)
	before := o.Sections()

	gen.outlineErr = &genclient.GenerationError{Status: 500, Message: "backend exploded"}
	err := o.GenerateOutline(context.Background(), GenerateParams{
		Params: outline.Params{ScriptTitle: "Another Theme"},
	})

	var genErr *genclient.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 500, genErr.Status)
	assert.Equal(t, before, o.Sections())
}

func TestGenerateContent_RejectsEmptyOutline(t *testing.T) {
	o := New(&fakeGenerator{}, "user-1")

	err := o.GenerateContent(context.Background())

	require.ErrorIs(t, err, ErrNoSections)
	assert.False(t, o.ContentReady())
}

func TestGenerateContent_SavesThenAppliesFirstSection(t *testing.T) {
	gen := &fakeGenerator{
		completeFirst: genclient.WrittenSection{ID: "s1", Content: "written opening"},
	}
	o := seededOrchestrator(t, gen)

	require.NoError(t, o.GenerateContent(context.Background()))

	assert.True(t, o.ContentReady())
	assert.Equal(t, "outline-1", o.OutlineID())
	assert.Equal(t, "written opening", o.Sections()[0].Content)
}

func TestGenerateContent_FailureLeavesOutlineUnchanged(t *testing.T) {
	gen := &fakeGenerator{
		completeErr: &genclient.GenerationError{Status: 502, Message: "bad gateway"},
	}
	o := seededOrchestrator(t, gen)

	err := o.GenerateContent(context.Background())

	require.Error(t, err)
	assert.False(t, o.ContentReady())
	for _, sec := range o.Sections() {
		assert.Empty(t, sec.Content)
	}
}

func TestRegenerateSection_AppliesContentOnResolution(t *testing.T) {
	gen := &fakeGenerator{regenContent: "rewritten text"}
	o := seededOrchestrator(t, gen)

	done, started := o.RegenerateSection(context.Background(), "s2")
	require.True(t, started)

	res := <-done
	require.NoError(t, res.Err)
	assert.False(t, res.Discarded)

	sec := o.Sections()[1]
	assert.Equal(t, "rewritten text", sec.Content)
	assert.False(t, o.Regenerating("s2"))
}

func TestRegenerateSection_UnknownIDIsNoop(t *testing.T) {
	gen := &fakeGenerator{}
	o := seededOrchestrator(t, gen)

	_, started := o.RegenerateSection(context.Background(), "missing")

	assert.False(t, started)
	assert.Equal(t, int64(0), gen.regenCalls.Load())
}

func TestRegenerateSection_AtMostOneInFlightPerSection(t *testing.T) {
	gen := &fakeGenerator{regenContent: "text", gate: make(chan struct{})}
	o := seededOrchestrator(t, gen)

	done, started := o.RegenerateSection(context.Background(), "s1")
	require.True(t, started)

	// Give the goroutine time to reach the backend call before asserting.
	require.Eventually(t, func() bool {
		return gen.regenCalls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	_, second := o.RegenerateSection(context.Background(), "s1")
	assert.False(t, second, "second request for an in-flight id must be a no-op")
	assert.Equal(t, int64(1), gen.regenCalls.Load(), "no second backend call may be issued")

	// A different section may regenerate concurrently.
	otherDone, otherStarted := o.RegenerateSection(context.Background(), "s3")
	require.True(t, otherStarted)

	close(gen.gate)
	<-done
	<-otherDone

	// After resolution the id is free again.
	gen.gate = nil
	_, retried := o.RegenerateSection(context.Background(), "s1")
	assert.True(t, retried)
}

func TestRegenerateSection_DiscardOnDelete(t *testing.T) {
	gen := &fakeGenerator{regenContent: "ghost content", gate: make(chan struct{})}
	o := seededOrchestrator(t, gen)

	done, started := o.RegenerateSection(context.Background(), "s2")
	require.True(t, started)
	require.Eventually(t, func() bool {
		return gen.regenCalls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	require.True(t, o.DeleteSection("s2"))
	close(gen.gate)

	res := <-done
	assert.True(t, res.Discarded)
	require.NoError(t, res.Err)

	// No resurrection: s2 stays gone and positions stay contiguous.
	sections := o.Sections()
	require.Len(t, sections, 2)
	for i, sec := range sections {
		assert.NotEqual(t, "s2", sec.ID)
		assert.Equal(t, i, sec.Position)
	}
}

func TestRegenerateSection_FailureLeavesContentUntouched(t *testing.T) {
	gen := &fakeGenerator{regenErr: &genclient.GenerationError{Status: 500, Message: "nope"}}
	o := seededOrchestrator(t, gen)
	content := "user draft"
	require.True(t, o.EditSection("s1", outline.Patch{Content: &content}))

	done, started := o.RegenerateSection(context.Background(), "s1")
	require.True(t, started)

	res := <-done
	require.Error(t, res.Err)
	assert.Equal(t, "user draft", o.Sections()[0].Content)
	assert.False(t, o.Regenerating("s1"))
}

func TestStructuralEditsDoNotWaitForInFlightRegeneration(t *testing.T) {
	gen := &fakeGenerator{regenContent: "text", gate: make(chan struct{})}
	o := seededOrchestrator(t, gen)

	done, started := o.RegenerateSection(context.Background(), "s1")
	require.True(t, started)
	require.Eventually(t, func() bool {
		return gen.regenCalls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	// These must complete while the regeneration is still blocked.
	o.Reorder("s3", 0)
	added := o.InsertSection()
	title := "Renamed"
	o.EditSection("s2", outline.Patch{Title: &title})

	ids := []string{}
	for _, sec := range o.Sections() {
		ids = append(ids, sec.ID)
	}
	assert.Equal(t, []string{"s3", "s1", "s2", added.ID}, ids)

	close(gen.gate)
	res := <-done
	require.NoError(t, res.Err)

	// The result reconciled against the post-edit order: s1 moved but kept
	// its identity, so the content landed on it.
	sec := o.Sections()[1]
	assert.Equal(t, "s1", sec.ID)
	assert.Equal(t, "text", sec.Content)
}

func TestSyncContent_MergesOnlySurvivingSections(t *testing.T) {
	gen := &fakeGenerator{
		completeFirst: genclient.WrittenSection{ID: "s1", Content: "first"},
	}
	o := seededOrchestrator(t, gen)
	require.NoError(t, o.GenerateContent(context.Background()))

	gen.written = []genclient.WrittenSection{
		{ID: "s1", Content: "first"},
		{ID: "s2", Content: "second"},
		{ID: "s3", Content: "third"},
	}
	require.True(t, o.DeleteSection("s3"))

	merged, err := o.SyncContent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, merged)

	sections := o.Sections()
	require.Len(t, sections, 2)
	assert.Equal(t, "first", sections[0].Content)
	assert.Equal(t, "second", sections[1].Content)
}

func TestLoad_InstallsStoredOutline(t *testing.T) {
	gen := &fakeGenerator{outlineSections: []outline.Section{
		{ID: "a", Title: "A", Position: 9},
		{ID: "b", Title: "B", Position: 1},
	}}
	o := New(gen, "user-1")

	require.NoError(t, o.Load(context.Background(), "outline-7"))

	assert.Equal(t, "outline-7", o.OutlineID())
	sections := o.Sections()
	require.Len(t, sections, 2)
	assert.Equal(t, 0, sections[0].Position)
	assert.Equal(t, 1, sections[1].Position)
}
