package content

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresSource reads content items from the CMS content_items table.
type PostgresSource struct {
	db *sql.DB
}

// OpenPostgres opens a connection pool for the given connection string.
func OpenPostgres(connectionString string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// NewPostgresSource wraps an open database handle.
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// Fetch returns every item created inside the query window. Category
// filtering happens after normalization so ad-hoc tags survive.
func (s *PostgresSource) Fetch(ctx context.Context, q Query) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, COALESCE(description, ''), COALESCE(images, '{}'),
		       COALESCE(category_title, ''), COALESCE(category_slug, ''), created_at
		FROM content_items
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC`, q.From, q.To)
	if err != nil {
		return nil, fmt.Errorf("failed to query content items: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r      Record
			images pq.StringArray
			title  string
			slug   string
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &images, &title, &slug, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan content item: %w", err)
		}
		r.Images = []string(images)
		r.Categories = []string{title, slug}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate content items: %w", err)
	}
	return records, nil
}
