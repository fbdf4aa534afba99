package storage

import (
	"context"
	"errors"

	"scriptloom/internal/outline"
)

// ErrNotFound is returned when an outline or section id does not exist.
var ErrNotFound = errors.New("not found")

// StoredOutline is an outline record with its ordered sections.
type StoredOutline struct {
	ID       string
	UserID   string
	Status   string
	Params   outline.Params
	Sections []outline.Section
}

// Store combines outline persistence and entitlement bookkeeping.
type Store interface {
	OutlineStore
	EntitlementStore
	Close() error
}

// OutlineStore defines operations for persisting outlines and sections.
type OutlineStore interface {
	// CreateOutline stores the outline parameters and sections, returning
	// the outline id. Section ids are preserved when present so in-session
	// ids stay stable across a save.
	CreateOutline(ctx context.Context, userID string, p outline.Params, sections []outline.Section) (string, error)

	// GetOutline retrieves an outline with its sections ordered by position.
	GetOutline(ctx context.Context, outlineID string) (*StoredOutline, error)

	// ListOutlines returns the outlines belonging to a user, without sections.
	ListOutlines(ctx context.Context, userID string) ([]StoredOutline, error)

	// ListSections returns an outline's sections ordered by position.
	ListSections(ctx context.Context, outlineID string) ([]outline.Section, error)

	// UpdateSectionContent stores generated content for one section.
	UpdateSectionContent(ctx context.Context, sectionID, content string) error

	// SetOutlineStatus moves an outline between draft and completed.
	SetOutlineStatus(ctx context.Context, outlineID, status string) error
}

// EntitlementStore defines the payment-side persistence. Idempotence lives
// here: granting twice for the same event id applies once.
type EntitlementStore interface {
	// GrantEntitlement applies a paid entitlement for a webhook event. It
	// reports false when the event id was seen before and nothing changed.
	GrantEntitlement(ctx context.Context, eventID, eventType, userID, priceID string, quantity int) (bool, error)

	// Entitlement returns the accumulated quantity for a user and price.
	Entitlement(ctx context.Context, userID, priceID string) (int, error)
}
