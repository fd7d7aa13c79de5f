// Package donors lists the email addresses that receive the newsletter.
package donors

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Source lists opted-in donor email addresses.
type Source interface {
	OptedInEmails(ctx context.Context) ([]string, error)
}

// PostgresSource reads donors from the donors table.
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource wraps an open database handle.
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// OptedInEmails returns distinct, non-empty addresses of donors who opted in.
func (s *PostgresSource) OptedInEmails(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT LOWER(TRIM(email))
		FROM donors
		WHERE newsletter_opt_in = TRUE AND email IS NOT NULL AND TRIM(email) <> ''
		ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to query donors: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("failed to scan donor email: %w", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate donors: %w", err)
	}
	return emails, nil
}

// StaticSource serves a fixed recipient list, typically from configuration.
type StaticSource struct {
	emails []string
}

// NewStaticSource normalizes and de-duplicates emails.
func NewStaticSource(emails []string) *StaticSource {
	return &StaticSource{emails: Normalize(emails)}
}

// OptedInEmails implements Source.
func (s *StaticSource) OptedInEmails(ctx context.Context) ([]string, error) {
	out := make([]string, len(s.emails))
	copy(out, s.emails)
	return out, nil
}

// Normalize lower-cases, trims and de-duplicates addresses, dropping
// anything without an @.
func Normalize(emails []string) []string {
	seen := make(map[string]bool, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || !strings.Contains(e, "@") || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
