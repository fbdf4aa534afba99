package writer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatResponse(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestParseSectionPlans_StripsFenceAndRenumbers(t *testing.T) {
	text := "```json\n[{\"position\": 9, \"title\": \"One\"}, {\"position\": 9, \"title\": \"Two\"}]\n```"

	plans, err := parseSectionPlans(text)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, 0, plans[0].Position)
	assert.Equal(t, 1, plans[1].Position)
}

func TestParseSectionPlans_FindsArrayInsideProse(t *testing.T) {
	text := `Here is your outline:
[{"title": "Only Section", "description": "d", "instructions": "i"}]
Hope this helps!`

	plans, err := parseSectionPlans(text)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "Only Section", plans[0].Title)
}

func TestParseSectionPlans_RejectsMissingTitleAndEmptyArray(t *testing.T) {
	_, err := parseSectionPlans(`[{"description": "no title"}]`)
	require.Error(t, err)

	_, err = parseSectionPlans(`[]`)
	require.Error(t, err)

	_, err = parseSectionPlans(`no json here`)
	require.Error(t, err)
}

func TestOpenAIWriter_OutlineDraft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "The Secret Life of Elephants")
		assert.Contains(t, req.Messages[0].Content, "3 sections")

		_, _ = w.Write([]byte(chatResponse(`[
			{"title": "Arrival", "description": "d1", "instructions": "i1"},
			{"title": "Discovery", "description": "d2", "instructions": "i2"},
			{"title": "Truth", "description": "d3", "instructions": "i3"}
		]`)))
	}))
	defer srv.Close()

	w := NewOpenAIWriter("test-key", "gpt-4o-mini", srv.URL)
	plans, err := w.OutlineDraft(context.Background(), OutlineBrief{
		ScriptTitle:   "The Secret Life of Elephants",
		Audience:      "General",
		Style:         "Informative",
		Tone:          "Neutral",
		Language:      "English",
		SectionsCount: 3,
	})
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, "Discovery", plans[1].Title)
}

func TestOpenAIWriter_SectionContentIncludesNeighbors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompt := req.Messages[0].Content
		assert.Contains(t, prompt, "third person view")
		assert.Contains(t, prompt, `"title":"Current"`)
		assert.Contains(t, prompt, `"title":"Before"`)
		assert.Contains(t, prompt, "DO NOT REPEAT")

		_, _ = w.Write([]byte(chatResponse("The elephants moved on.")))
	}))
	defer srv.Close()

	w := NewOpenAIWriter("test-key", "gpt-4o-mini", srv.URL)
	content, err := w.SectionContent(context.Background(), SectionBrief{
		ScriptTitle:     "Elephants",
		Current:         SectionPlan{Title: "Current"},
		Previous:        &SectionPlan{Title: "Before"},
		NPersonView:     "third",
		PreviousContent: "Earlier prose.",
	})
	require.NoError(t, err)
	assert.Equal(t, "The elephants moved on.", content)
}

func TestOpenAIWriter_SurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	w := NewOpenAIWriter("test-key", "gpt-4o-mini", srv.URL)
	_, err := w.SectionContent(context.Background(), SectionBrief{Current: SectionPlan{Title: "X"}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestOpenAIWriter_RequiresKeyAndModel(t *testing.T) {
	w := NewOpenAIWriter("", "gpt-4o-mini", "")
	_, err := w.OutlineDraft(context.Background(), OutlineBrief{SectionsCount: 1})
	require.Error(t, err)

	w = NewOpenAIWriter("key", "", "")
	_, err = w.OutlineDraft(context.Background(), OutlineBrief{SectionsCount: 1})
	require.Error(t, err)
}

func TestNewWriter_ProviderDispatch(t *testing.T) {
	w, err := NewWriter(context.Background(), Options{Provider: "openai", APIKey: "k", Model: "m"})
	require.NoError(t, err)
	_, ok := w.(*OpenAIWriter)
	assert.True(t, ok)

	_, err = NewWriter(context.Background(), Options{Provider: "markov-chain"})
	require.Error(t, err)
}
