// Package genclient is the request/response wrapper around the generation
// service's HTTP API. It performs no retries: generation calls are expensive
// and not idempotent, so a failure is surfaced to the caller, which decides
// whether the user retries manually.
package genclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"scriptloom/internal/outline"
)

// GenerationError reports a generation call that failed, either with a
// non-success HTTP status or a response body that violates the contract.
// Status is zero when no HTTP status applies.
type GenerationError struct {
	Status  int
	Message string
}

func (e *GenerationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("generation request failed (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("generation request failed: %s", e.Message)
}

// Client talks to the generation service.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a client for the generation service at baseURL.
func New(baseURL string) *Client {
	endpoint := strings.TrimSpace(baseURL)
	if endpoint == "" {
		endpoint = "http://localhost:8000"
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 180 * time.Second,
		},
		baseURL: strings.TrimRight(endpoint, "/"),
	}
}

// OutlineRequest is the wire body of POST /outline/generate.
type OutlineRequest struct {
	ScriptTitle    string `json:"script_title"`
	WordCount      int    `json:"word_count"`
	Language       string `json:"language"`
	Audience       string `json:"audience"`
	Style          string `json:"style"`
	Tone           string `json:"tone"`
	Model          string `json:"model"`
	AdditionalData string `json:"additional_data"`
}

type outlineResponse struct {
	ID       string            `json:"id"`
	Sections []outline.Section `json:"sections"`
}

// GenerateOutline asks the service for an outline draft. The returned
// sections carry no content; any position values the service supplied are
// passed through untouched, the caller renumbers on install. A section
// arriving without a title is a contract violation.
func (c *Client) GenerateOutline(ctx context.Context, req OutlineRequest) ([]outline.Section, error) {
	var resp outlineResponse
	if err := c.post(ctx, "/outline/generate", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Sections) == 0 {
		return nil, &GenerationError{Message: "response contained no sections"}
	}
	for i := range resp.Sections {
		if strings.TrimSpace(resp.Sections[i].Title) == "" {
			return nil, &GenerationError{Message: fmt.Sprintf("section %d is missing a title", i)}
		}
		if resp.Sections[i].ID == "" {
			resp.Sections[i].ID = uuid.NewString()
		}
		if resp.Sections[i].OutlineID == "" {
			resp.Sections[i].OutlineID = resp.ID
		}
		resp.Sections[i].Content = ""
	}
	return resp.Sections, nil
}

// CompleteRequest is the wire body of POST /outline/complete.
type CompleteRequest struct {
	Outline       outlinePayload `json:"outline"`
	ScriptTitle   string         `json:"script_title"`
	Context       string         `json:"context"`
	NPersonView   string         `json:"n_person_view"`
	ExcludedWords string         `json:"excluded_words"`
	Model         string         `json:"model"`
}

type outlinePayload struct {
	ID       string            `json:"id,omitempty"`
	Sections []outline.Section `json:"sections"`
}

// WrittenSection is a section together with its generated content, as the
// service returns it from the complete and sections endpoints.
type WrittenSection struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Instructions string `json:"instructions"`
	Content      string `json:"content"`
}

// CompleteParams is everything CompleteOutline needs to trigger
// full-content generation.
type CompleteParams struct {
	OutlineID     string
	Sections      []outline.Section
	ScriptTitle   string
	Context       string
	NPersonView   string
	ExcludedWords string
	Model         string
}

// CompleteOutline triggers full-content generation for all sections. The
// service writes the first section synchronously and returns it; remaining
// sections are generated in the background and observed via WrittenSections.
func (c *Client) CompleteOutline(ctx context.Context, p CompleteParams) (WrittenSection, error) {
	req := CompleteRequest{
		Outline:       outlinePayload{ID: p.OutlineID, Sections: p.Sections},
		ScriptTitle:   p.ScriptTitle,
		Context:       p.Context,
		NPersonView:   p.NPersonView,
		ExcludedWords: p.ExcludedWords,
		Model:         p.Model,
	}
	var first WrittenSection
	if err := c.post(ctx, "/outline/complete", req, &first); err != nil {
		return WrittenSection{}, err
	}
	return first, nil
}

// SectionContentRequest is the wire body of POST /outline/section/content.
type SectionContentRequest struct {
	SectionID       string           `json:"section_id"`
	CurrentSection  outline.Section  `json:"current_section"`
	PreviousSection *outline.Section `json:"previous_section,omitempty"`
	NextSection     *outline.Section `json:"next_section,omitempty"`
	ScriptTitle     string           `json:"script_title"`
	Context         string           `json:"context"`
	NPersonView     string           `json:"n_person_view"`
	ExcludedWords   string           `json:"excluded_words"`
	Model           string           `json:"model"`
}

type sectionContentResponse struct {
	Content string `json:"content"`
}

// RegenerateSection asks the service to rewrite exactly one section and
// returns the replacement content.
func (c *Client) RegenerateSection(ctx context.Context, req SectionContentRequest) (string, error) {
	var resp sectionContentResponse
	if err := c.post(ctx, "/outline/section/content", req, &resp); err != nil {
		return "", err
	}
	if resp.Content == "" {
		return "", &GenerationError{Message: "response contained no content"}
	}
	return resp.Content, nil
}

// SaveRequest is the wire body of POST /outline/save.
type SaveRequest struct {
	outline.Params
	UserID   string            `json:"user_id"`
	Sections []outline.Section `json:"sections"`
}

type saveResponse struct {
	OutlineID string `json:"outline_id"`
}

// SaveOutline persists a user-edited outline and returns its id.
func (c *Client) SaveOutline(ctx context.Context, req SaveRequest) (string, error) {
	var resp saveResponse
	if err := c.post(ctx, "/outline/save", req, &resp); err != nil {
		return "", err
	}
	if resp.OutlineID == "" {
		return "", &GenerationError{Message: "response contained no outline id"}
	}
	return resp.OutlineID, nil
}

// GetOutline fetches a stored outline and its sections by id.
func (c *Client) GetOutline(ctx context.Context, outlineID string) ([]outline.Section, error) {
	var resp outlineResponse
	if err := c.get(ctx, "/outline/"+outlineID, &resp); err != nil {
		return nil, err
	}
	return resp.Sections, nil
}

// WrittenSections fetches the written sections for a stored outline. Used
// to poll background completion progress.
func (c *Client) WrittenSections(ctx context.Context, outlineID string) ([]WrittenSection, error) {
	var resp []WrittenSection
	if err := c.get(ctx, "/outline/"+outlineID+"/sections", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &GenerationError{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &GenerationError{Status: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &GenerationError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &GenerationError{Status: resp.StatusCode, Message: fmt.Sprintf("malformed response body: %v", err)}
	}
	return nil
}
