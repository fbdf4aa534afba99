package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"scriptloom/internal/outline"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS outlines (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			script_title TEXT,
			word_count INTEGER,
			language TEXT,
			audience TEXT,
			style TEXT,
			tone TEXT,
			model TEXT,
			additional_data TEXT,
			status TEXT NOT NULL DEFAULT 'draft',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS outline_sections (
			id TEXT PRIMARY KEY,
			outline_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			title TEXT,
			description TEXT,
			instructions TEXT,
			content TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS entitlements (
			user_id TEXT NOT NULL,
			price_id TEXT NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, price_id)
		);`,
		`CREATE TABLE IF NOT EXISTS webhook_events (
			id TEXT PRIMARY KEY,
			event_type TEXT,
			received_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sections_outline ON outline_sections(outline_id);`,
		`CREATE INDEX IF NOT EXISTS idx_outlines_user ON outlines(user_id);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// --- OutlineStore Implementation ---

func (s *SQLiteStore) CreateOutline(ctx context.Context, userID string, p outline.Params, sections []outline.Section) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	outlineID := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO outlines (id, user_id, script_title, word_count, language, audience, style, tone, model, additional_data, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, outlineID, userID, p.ScriptTitle, p.WordCount, p.Language, p.Audience, p.Style, p.Tone, p.Model, p.AdditionalData, outline.StatusDraft)
	if err != nil {
		return "", fmt.Errorf("failed to create outline: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO outline_sections (id, outline_id, position, title, description, instructions, content)
		VALUES (?, ?, ?, ?, ?, ?, '')
	`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for i, sec := range sections {
		id := sec.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := stmt.Exec(id, outlineID, i, sec.Title, sec.Description, sec.Instructions); err != nil {
			return "", fmt.Errorf("failed to create outline sections: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return outlineID, nil
}

func (s *SQLiteStore) GetOutline(ctx context.Context, outlineID string) (*StoredOutline, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, script_title, word_count, language, audience, style, tone, model, additional_data
		FROM outlines WHERE id = ?
	`, outlineID)

	var o StoredOutline
	err := row.Scan(&o.ID, &o.UserID, &o.Status,
		&o.Params.ScriptTitle, &o.Params.WordCount, &o.Params.Language, &o.Params.Audience,
		&o.Params.Style, &o.Params.Tone, &o.Params.Model, &o.Params.AdditionalData)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("outline %s: %w", outlineID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan outline: %w", err)
	}

	o.Sections, err = s.ListSections(ctx, outlineID)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *SQLiteStore) ListOutlines(ctx context.Context, userID string) ([]StoredOutline, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, status, script_title, word_count, language, audience, style, tone, model, additional_data
		FROM outlines WHERE user_id = ? ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outlines: %w", err)
	}
	defer rows.Close()

	var out []StoredOutline
	for rows.Next() {
		var o StoredOutline
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status,
			&o.Params.ScriptTitle, &o.Params.WordCount, &o.Params.Language, &o.Params.Audience,
			&o.Params.Style, &o.Params.Tone, &o.Params.Model, &o.Params.AdditionalData); err != nil {
			return nil, fmt.Errorf("failed to scan outline: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListSections(ctx context.Context, outlineID string) ([]outline.Section, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, outline_id, position, title, description, instructions, content
		FROM outline_sections WHERE outline_id = ? ORDER BY position
	`, outlineID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sections: %w", err)
	}
	defer rows.Close()

	var sections []outline.Section
	for rows.Next() {
		var sec outline.Section
		if err := rows.Scan(&sec.ID, &sec.OutlineID, &sec.Position, &sec.Title, &sec.Description, &sec.Instructions, &sec.Content); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

func (s *SQLiteStore) UpdateSectionContent(ctx context.Context, sectionID, content string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE outline_sections SET content = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, content, sectionID)
	if err != nil {
		return fmt.Errorf("failed to update section content: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("section %s: %w", sectionID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) SetOutlineStatus(ctx context.Context, outlineID, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE outlines SET status = ? WHERE id = ?`, status, outlineID)
	if err != nil {
		return fmt.Errorf("failed to update outline status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("outline %s: %w", outlineID, ErrNotFound)
	}
	return nil
}

// --- EntitlementStore Implementation ---

// GrantEntitlement records the webhook event and applies the entitlement in
// one transaction. The unique event id is the idempotence key: a redelivered
// event inserts zero rows and the grant is skipped.
func (s *SQLiteStore) GrantEntitlement(ctx context.Context, eventID, eventType, userID, priceID string, quantity int) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO webhook_events (id, event_type) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("failed to record webhook event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// Seen before: acknowledge without side effect.
		return false, tx.Commit()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entitlements (user_id, price_id, quantity) VALUES (?, ?, ?)
		ON CONFLICT(user_id, price_id) DO UPDATE SET
			quantity = quantity + excluded.quantity,
			updated_at = CURRENT_TIMESTAMP
	`, userID, priceID, quantity)
	if err != nil {
		return false, fmt.Errorf("failed to apply entitlement: %w", err)
	}

	return true, tx.Commit()
}

func (s *SQLiteStore) Entitlement(ctx context.Context, userID, priceID string) (int, error) {
	var quantity int
	err := s.db.QueryRowContext(ctx, `
		SELECT quantity FROM entitlements WHERE user_id = ? AND price_id = ?
	`, userID, priceID).Scan(&quantity)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query entitlement: %w", err)
	}
	return quantity, nil
}
