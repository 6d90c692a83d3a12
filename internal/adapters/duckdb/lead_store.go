package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/manthysbr/curunir/internal/core/ports"
)

// LeadStore persists market scraper listings and classified leads in a
// local DuckDB file. Listing URLs are unique; re-scraping an existing
// URL is treated as a refresh rather than a duplicate.
type LeadStore struct {
	db *sql.DB
}

var _ ports.LeadStore = (*LeadStore)(nil)

func NewLeadStore(path string) (*LeadStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb at %s: %w", path, err)
	}

	s := &LeadStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *LeadStore) initSchema() error {
	stmts := []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_raw_listings START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_leads START 1`,
		`CREATE TABLE IF NOT EXISTS raw_listings (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_raw_listings'),
			source TEXT NOT NULL,
			external_id TEXT,
			url TEXT UNIQUE NOT NULL,
			content TEXT,
			scraped_at TIMESTAMP DEFAULT current_timestamp,
			status TEXT DEFAULT 'pending_classification'
		)`,
		`CREATE TABLE IF NOT EXISTS leads (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_leads'),
			raw_listing_id BIGINT NOT NULL,
			is_private BOOLEAN NOT NULL,
			confidence DOUBLE,
			contact_name TEXT,
			contact_phone TEXT,
			notes TEXT,
			status TEXT DEFAULT 'new',
			created_at TIMESTAMP DEFAULT current_timestamp,
			exported_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_raw_status ON raw_listings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_lead_status ON leads(status)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init lead store schema: %w", err)
		}
	}
	return nil
}

// SaveRawListing inserts the listing or refreshes an existing row with
// the same URL, returning the row ID either way.
func (s *LeadStore) SaveRawListing(ctx context.Context, l ports.RawListing) (int64, error) {
	query := `
	INSERT INTO raw_listings (source, external_id, url, content, scraped_at, status)
	VALUES (?, ?, ?, ?, current_timestamp, 'pending_classification')
	ON CONFLICT (url) DO UPDATE SET
		content = EXCLUDED.content,
		scraped_at = current_timestamp,
		status = 'pending_classification'`

	if _, err := s.db.ExecContext(ctx, query, l.Source, l.ExternalID, l.URL, l.Content); err != nil {
		return 0, fmt.Errorf("save raw listing: %w", err)
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM raw_listings WHERE url = ?`, l.URL).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("lookup raw listing id: %w", err)
	}
	return id, nil
}

// SaveLead records a classification result and marks the source listing
// classified.
func (s *LeadStore) SaveLead(ctx context.Context, lead ports.Lead) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
	INSERT INTO leads (raw_listing_id, is_private, confidence, contact_name, contact_phone, notes)
	VALUES (?, ?, ?, ?, ?, ?)
	RETURNING id`,
		lead.RawListingID, lead.IsPrivate, lead.Confidence,
		lead.ContactName, lead.ContactPhone, lead.Notes,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save lead: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE raw_listings SET status = 'classified' WHERE id = ?`, lead.RawListingID); err != nil {
		return 0, fmt.Errorf("mark listing classified: %w", err)
	}
	return id, nil
}

// ListLeads returns leads filtered by status; an empty status returns
// all of them.
func (s *LeadStore) ListLeads(ctx context.Context, status string) ([]ports.Lead, error) {
	query := `
	SELECT id, raw_listing_id, is_private, confidence,
	       coalesce(contact_name, ''), coalesce(contact_phone, ''), coalesce(notes, ''), status
	FROM leads`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var leads []ports.Lead
	for rows.Next() {
		var l ports.Lead
		if err := rows.Scan(&l.ID, &l.RawListingID, &l.IsPrivate, &l.Confidence,
			&l.ContactName, &l.ContactPhone, &l.Notes, &l.Status); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// MarkExported transitions the given leads to exported and stamps the
// export time.
func (s *LeadStore) MarkExported(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, time.Now().UTC())
	for _, id := range ids {
		args = append(args, id)
	}

	query := fmt.Sprintf(
		`UPDATE leads SET status = 'exported', exported_at = ? WHERE id IN (%s)`, placeholders)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark leads exported: %w", err)
	}
	return nil
}

func (s *LeadStore) Close() error {
	return s.db.Close()
}
