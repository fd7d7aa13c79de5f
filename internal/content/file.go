package content

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileSource serves content items from a YAML fixture file. It is used for
// local previews when no CMS database is available.
type FileSource struct {
	path string
}

type fileDocument struct {
	Items []fileItem `yaml:"items"`
}

type fileItem struct {
	ID          string    `yaml:"id"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Images      []string  `yaml:"images"`
	Category    string    `yaml:"category"`
	Slug        string    `yaml:"slug"`
	CreatedAt   time.Time `yaml:"created_at"`
}

// NewFileSource creates a source backed by the YAML file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Fetch reads the file on every call so edits show up without a restart.
func (s *FileSource) Fetch(ctx context.Context, q Query) ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read content file %s: %w", s.path, err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse content file %s: %w", s.path, err)
	}

	var records []Record
	for i, it := range doc.Items {
		created := it.CreatedAt.UTC()
		if created.Before(q.From) || !created.Before(q.To) {
			continue
		}
		id := it.ID
		if id == "" {
			id = fmt.Sprintf("%s#%d", s.path, i)
		}
		records = append(records, Record{
			ID:          id,
			Title:       it.Title,
			Description: it.Description,
			Images:      it.Images,
			Categories:  []string{it.Category, it.Slug},
			CreatedAt:   created,
		})
	}
	return records, nil
}
