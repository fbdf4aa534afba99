package billing

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"
)

// maxWebhookBody caps how much of a webhook request we will read.
const maxWebhookBody = 1 << 20

// EntitlementStore persists a purchase grant exactly once per event id.
type EntitlementStore interface {
	GrantEntitlement(ctx context.Context, eventID, eventType, userID, priceID string, quantity int) (bool, error)
}

// webhookEvent mirrors the checkout event envelope the provider posts.
// Metadata values arrive as strings regardless of their logical type.
type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			Metadata struct {
				UserID   string `json:"userId"`
				PriceID  string `json:"priceId"`
				Quantity string `json:"quantity"`
			} `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// WebhookHandler receives checkout webhooks, verifies their signature on
// the raw body, and applies fulfilled purchases to the entitlement store.
type WebhookHandler struct {
	store     EntitlementStore
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

// NewWebhookHandler builds a handler for the given store and shared
// signing secret.
func NewWebhookHandler(store EntitlementStore, secret string) *WebhookHandler {
	return &WebhookHandler{
		store:     store,
		secret:    secret,
		tolerance: DefaultTolerance,
		now:       time.Now,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	// The signature covers the raw bytes, so verification must happen
	// before any parsing of the payload.
	header := r.Header.Get("Stripe-Signature")
	if err := VerifySignature(body, header, h.secret, h.tolerance, h.now()); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid signature")
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed event payload")
		return
	}
	if event.ID == "" {
		writeDetail(w, http.StatusBadRequest, "event id is required")
		return
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		h.handlePurchase(w, r, event)
	default:
		// Acknowledge so the provider stops redelivering.
		writeDetail(w, http.StatusOK, "Omitted event")
	}
}

func (h *WebhookHandler) handlePurchase(w http.ResponseWriter, r *http.Request, event webhookEvent) {
	meta := event.Data.Object.Metadata
	if meta.UserID == "" || meta.PriceID == "" {
		writeDetail(w, http.StatusBadRequest, "event metadata is missing userId or priceId")
		return
	}

	quantity := 1
	if meta.Quantity != "" {
		n, err := strconv.Atoi(meta.Quantity)
		if err != nil || n < 1 {
			writeDetail(w, http.StatusBadRequest, "event metadata has invalid quantity")
			return
		}
		quantity = n
	}

	applied, err := h.store.GrantEntitlement(r.Context(), event.ID, event.Type, meta.UserID, meta.PriceID, quantity)
	if err != nil {
		log.Printf("billing: failed to apply event %s: %v", event.ID, err)
		writeDetail(w, http.StatusInternalServerError, "failed to record purchase")
		return
	}
	if !applied {
		writeDetail(w, http.StatusOK, "Duplicate event ignored")
		return
	}
	writeDetail(w, http.StatusOK, "Item purchased")
}

func writeDetail(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": msg})
}
