package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"unicode/utf8"

	"github.com/google/uuid"

	"scriptloom/internal/billing"
	"scriptloom/internal/outline"
	"scriptloom/internal/storage"
	"scriptloom/internal/writer"
)

// wordsPerSection decides how many sections an outline gets for a target
// word count. A 2000-word script drafts as 2 sections, never fewer than 1.
const wordsPerSection = 700

// previousContentLimit caps how much already-written text is fed back to
// the model for continuity.
const previousContentLimit = 1200

const maxRequestBody = 1 << 20

type outlineRequest struct {
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
	Status   string            `json:"status,omitempty"`
	Sections []outline.Section `json:"sections"`
}

func (s *Server) handleGenerateOutline(w http.ResponseWriter, r *http.Request) {
	var req outlineRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ScriptTitle == "" {
		writeError(w, http.StatusBadRequest, "script_title is required")
		return
	}

	sectionsCount := req.WordCount / wordsPerSection
	if sectionsCount < 1 {
		sectionsCount = 1
	}

	plans, err := s.writer.OutlineDraft(r.Context(), writer.OutlineBrief{
		ScriptTitle:   req.ScriptTitle,
		Audience:      req.Audience,
		Style:         req.Style,
		Tone:          req.Tone,
		Language:      req.Language,
		SectionsCount: sectionsCount,
		Context:       req.AdditionalData,
	})
	if err != nil {
		log.Printf("server: outline draft failed: %v", err)
		writeError(w, http.StatusBadGateway, "outline generation failed")
		return
	}

	sections := make([]outline.Section, len(plans))
	for i, plan := range plans {
		sections[i] = outline.Section{
			ID:           uuid.NewString(),
			Position:     i,
			Title:        plan.Title,
			Description:  plan.Description,
			Instructions: plan.Instructions,
		}
	}
	writeJSON(w, http.StatusOK, outlineResponse{Sections: sections})
}

type saveRequest struct {
	outline.Params
	UserID   string            `json:"user_id"`
	Sections []outline.Section `json:"sections"`
}

func (s *Server) handleSaveOutline(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Sections) == 0 {
		writeError(w, http.StatusBadRequest, "outline has no sections")
		return
	}

	id, err := s.store.CreateOutline(r.Context(), req.UserID, req.Params, req.Sections)
	if err != nil {
		log.Printf("server: failed to save outline: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save outline")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"outline_id": id})
}

func (s *Server) handleGetOutline(w http.ResponseWriter, r *http.Request) {
	stored, err := s.store.GetOutline(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "outline not found")
			return
		}
		log.Printf("server: failed to load outline: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load outline")
		return
	}
	writeJSON(w, http.StatusOK, outlineResponse{
		ID:       stored.ID,
		Status:   stored.Status,
		Sections: stored.Sections,
	})
}

type writtenSection struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Instructions string `json:"instructions"`
	Content      string `json:"content"`
}

func (s *Server) handleListSections(w http.ResponseWriter, r *http.Request) {
	sections, err := s.store.ListSections(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "outline not found")
			return
		}
		log.Printf("server: failed to list sections: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list sections")
		return
	}

	out := make([]writtenSection, len(sections))
	for i, sec := range sections {
		out[i] = writtenSection{
			ID:           sec.ID,
			Title:        sec.Title,
			Description:  sec.Description,
			Instructions: sec.Instructions,
			Content:      sec.Content,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type completeRequest struct {
	Outline struct {
		ID       string            `json:"id"`
		Sections []outline.Section `json:"sections"`
	} `json:"outline"`
	ScriptTitle   string `json:"script_title"`
	Context       string `json:"context"`
	NPersonView   string `json:"n_person_view"`
	ExcludedWords string `json:"excluded_words"`
	Model         string `json:"model"`
}

// handleCompleteOutline writes the first section synchronously so the
// caller has something to show, answers 202, and finishes the remaining
// sections in the background. Progress is observed via the sections
// endpoint.
func (s *Server) handleCompleteOutline(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sections := req.Outline.Sections
	if len(sections) == 0 {
		writeError(w, http.StatusBadRequest, "outline has no sections")
		return
	}

	first := sections[0]
	content, err := s.writer.SectionContent(r.Context(), s.sectionBrief(req, sections, 0, ""))
	if err != nil {
		log.Printf("server: failed to write first section: %v", err)
		writeError(w, http.StatusBadGateway, "content generation failed")
		return
	}
	s.persistSectionContent(r.Context(), req.Outline.ID, first.ID, content)

	s.background.Add(1)
	go s.completeRemaining(req, sections, content)

	writeJSON(w, http.StatusAccepted, writtenSection{
		ID:           first.ID,
		Title:        first.Title,
		Description:  first.Description,
		Instructions: first.Instructions,
		Content:      content,
	})
}

func (s *Server) completeRemaining(req completeRequest, sections []outline.Section, firstContent string) {
	defer s.background.Done()

	// The request context is gone once 202 is written.
	ctx := context.Background()
	previous := firstContent
	for i := 1; i < len(sections); i++ {
		content, err := s.writer.SectionContent(ctx, s.sectionBrief(req, sections, i, previous))
		if err != nil {
			log.Printf("server: failed to write section %q: %v", sections[i].ID, err)
			return
		}
		s.persistSectionContent(ctx, req.Outline.ID, sections[i].ID, content)
		previous = content
	}

	if req.Outline.ID != "" {
		if err := s.store.SetOutlineStatus(ctx, req.Outline.ID, outline.StatusCompleted); err != nil {
			log.Printf("server: failed to mark outline %q completed: %v", req.Outline.ID, err)
		}
	}
}

func (s *Server) sectionBrief(req completeRequest, sections []outline.Section, i int, previousContent string) writer.SectionBrief {
	brief := writer.SectionBrief{
		ScriptTitle:     req.ScriptTitle,
		Current:         planFromSection(sections[i]),
		Context:         req.Context,
		NPersonView:     req.NPersonView,
		ExcludedWords:   req.ExcludedWords,
		PreviousContent: truncateTail(previousContent, previousContentLimit),
	}
	if i > 0 {
		prev := planFromSection(sections[i-1])
		brief.Previous = &prev
	}
	if i+1 < len(sections) {
		next := planFromSection(sections[i+1])
		brief.Next = &next
	}
	return brief
}

func (s *Server) persistSectionContent(ctx context.Context, outlineID, sectionID, content string) {
	if outlineID == "" || sectionID == "" {
		return
	}
	if err := s.store.UpdateSectionContent(ctx, sectionID, content); err != nil {
		log.Printf("server: failed to persist content for section %q: %v", sectionID, err)
	}
}

type sectionContentRequest struct {
	SectionID       string           `json:"section_id"`
	CurrentSection  outline.Section  `json:"current_section"`
	PreviousSection *outline.Section `json:"previous_section"`
	NextSection     *outline.Section `json:"next_section"`
	ScriptTitle     string           `json:"script_title"`
	Context         string           `json:"context"`
	NPersonView     string           `json:"n_person_view"`
	ExcludedWords   string           `json:"excluded_words"`
	Model           string           `json:"model"`
}

func (s *Server) handleSectionContent(w http.ResponseWriter, r *http.Request) {
	var req sectionContentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.CurrentSection.Title == "" {
		writeError(w, http.StatusBadRequest, "current_section is required")
		return
	}

	brief := writer.SectionBrief{
		ScriptTitle:   req.ScriptTitle,
		Current:       planFromSection(req.CurrentSection),
		Context:       req.Context,
		NPersonView:   req.NPersonView,
		ExcludedWords: req.ExcludedWords,
	}
	if req.PreviousSection != nil {
		prev := planFromSection(*req.PreviousSection)
		brief.Previous = &prev
		brief.PreviousContent = truncateTail(req.PreviousSection.Content, previousContentLimit)
	}
	if req.NextSection != nil {
		next := planFromSection(*req.NextSection)
		brief.Next = &next
	}

	content, err := s.writer.SectionContent(r.Context(), brief)
	if err != nil {
		log.Printf("server: failed to rewrite section %q: %v", req.SectionID, err)
		writeError(w, http.StatusBadGateway, "content generation failed")
		return
	}

	// Saved sections keep their stored content in sync with the rewrite.
	// Unsaved sections only live in the caller's session.
	if req.SectionID != "" {
		if err := s.store.UpdateSectionContent(r.Context(), req.SectionID, content); err != nil && !errors.Is(err, storage.ErrNotFound) {
			log.Printf("server: failed to persist rewrite for section %q: %v", req.SectionID, err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

type checkoutRequest struct {
	UserID   string `json:"user_id"`
	PriceID  string `json:"price_id"`
	Quantity int    `json:"quantity"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if s.checkout == nil {
		writeError(w, http.StatusServiceUnavailable, "billing is not configured")
		return
	}
	var req checkoutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" || req.PriceID == "" {
		writeError(w, http.StatusBadRequest, "user_id and price_id are required")
		return
	}

	session, err := s.checkout.CreateSession(r.Context(), billing.CheckoutParams{
		UserID:   req.UserID,
		PriceID:  req.PriceID,
		Quantity: req.Quantity,
	})
	if err != nil {
		log.Printf("server: failed to create checkout session: %v", err)
		writeError(w, http.StatusBadGateway, "failed to create checkout session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhook == nil {
		writeError(w, http.StatusServiceUnavailable, "billing is not configured")
		return
	}
	s.webhook.ServeHTTP(w, r)
}

func (s *Server) handleEntitlement(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	priceID := r.PathValue("priceID")

	quantity, err := s.store.Entitlement(r.Context(), userID, priceID)
	if err != nil {
		log.Printf("server: failed to read entitlement: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to read entitlement")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":  userID,
		"price_id": priceID,
		"quantity": quantity,
	})
}

func planFromSection(sec outline.Section) writer.SectionPlan {
	return writer.SectionPlan{
		Position:     sec.Position,
		Title:        sec.Title,
		Description:  sec.Description,
		Instructions: sec.Instructions,
	}
}

// truncateTail keeps at most limit bytes from the end of s, trimming
// forward so the result never starts mid-rune.
func truncateTail(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := s[len(s)-limit:]
	for i := 0; i < len(cut); i++ {
		if utf8.RuneStart(cut[i]) {
			return cut[i:]
		}
	}
	return ""
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
