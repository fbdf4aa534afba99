package outline

// Section is one titled unit of an outline: a stable id, its place in the
// sequence, the guidance used to write it, and the written text itself.
// Content is the empty string until generation has produced it.
type Section struct {
	ID           string `json:"id"`
	OutlineID    string `json:"outline_id,omitempty"`
	Position     int    `json:"position"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Instructions string `json:"instructions"`
	Content      string `json:"content"`
}

// Patch carries a partial update for a Section. Nil fields are left
// unchanged. Position and ID are deliberately absent: ordering is owned by
// the Store and ids are stable for the life of a session.
type Patch struct {
	Title        *string
	Description  *string
	Instructions *string
	Content      *string
}

// Params are the authoring parameters an outline was generated from. They
// are persisted alongside the sections and reused for section regeneration.
type Params struct {
	ScriptTitle    string `json:"script_title"`
	WordCount      int    `json:"word_count"`
	Language       string `json:"language"`
	Audience       string `json:"audience"`
	Style          string `json:"style"`
	Tone           string `json:"tone"`
	Model          string `json:"model"`
	AdditionalData string `json:"additional_data"`
}

// Outline status values as stored.
const (
	StatusDraft     = "draft"
	StatusCompleted = "completed"
)
