package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"MetalsMonitor/internal/domain"
	"MetalsMonitor/internal/ports"
)

var csvHeader = []string{
	"title", "source", "published_at", "summary", "url",
	"category", "tags", "identity", "query", "fetched_at",
}

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339
	tagSeparator    = "|"
)

// CSVStore keeps the article collection as a single flat-file snapshot,
// rewritten in full on every successful insert batch. Row order is
// insertion order.
type CSVStore struct {
	path   string
	cap    int
	logger *slog.Logger
}

var _ ports.ArticleStore = (*CSVStore)(nil)

// NewCSVStore wires a snapshot file path and retention cap.
func NewCSVStore(path string, retentionCap int, logger *slog.Logger) *CSVStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVStore{path: path, cap: retentionCap, logger: logger}
}

// LoadRecent returns up to limit articles ordered by recency. A corrupt or
// unreadable file yields an empty slice plus the error; a missing file is
// simply an empty store.
func (s *CSVStore) LoadRecent(_ context.Context, limit int) ([]domain.Article, error) {
	articles, err := s.load()
	if err != nil {
		return nil, err
	}

	ordered := byRecency(articles)
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return ordered, nil
}

// Identities returns the identity set of all stored articles.
func (s *CSVStore) Identities(_ context.Context) (map[string]struct{}, error) {
	articles, err := s.load()
	if err != nil {
		return nil, err
	}

	ids := make(map[string]struct{}, len(articles))
	for _, a := range articles {
		ids[a.Identity] = struct{}{}
	}
	return ids, nil
}

// InsertBatch appends non-colliding articles, evicts the oldest beyond the
// retention cap, and rewrites the snapshot.
func (s *CSVStore) InsertBatch(_ context.Context, batch []domain.Article) (domain.InsertResult, error) {
	existing, err := s.load()
	if err != nil {
		s.logger.Warn("store unreadable, starting fresh", "path", s.path, "error", err)
		existing = nil
	}

	known := make(map[string]struct{}, len(existing))
	for _, a := range existing {
		known[a.Identity] = struct{}{}
	}

	var result domain.InsertResult
	for _, article := range batch {
		if _, ok := known[article.Identity]; ok {
			result.Rejected++
			continue
		}
		known[article.Identity] = struct{}{}
		existing = append(existing, article)
		result.Accepted++
	}

	existing = evictOldest(existing, s.cap)

	if err := s.write(existing); err != nil {
		return result, fmt.Errorf("%w: %v", domain.ErrStoreWrite, err)
	}
	return result, nil
}

// Close is a no-op for the flat-file backing.
func (s *CSVStore) Close() error {
	return nil
}

func (s *CSVStore) load() ([]domain.Article, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrStoreRead, s.path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrStoreRead, s.path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	articles := make([]domain.Article, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != len(csvHeader) {
			return nil, fmt.Errorf("%w: %s: row has %d columns, want %d",
				domain.ErrStoreRead, s.path, len(row), len(csvHeader))
		}
		articles = append(articles, rowToArticle(row))
	}
	return articles, nil
}

func (s *CSVStore) write(articles []domain.Article) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".metals_news_*.csv")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	writer := csv.NewWriter(tmp)
	if err := writer.Write(csvHeader); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, article := range articles {
		if err := writer.Write(articleToRow(article)); err != nil {
			tmp.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func articleToRow(a domain.Article) []string {
	return []string{
		a.Title,
		a.Source,
		a.PublishedAt.Format(dateLayout),
		a.Summary,
		a.URL,
		string(a.Category),
		strings.Join(a.Tags, tagSeparator),
		a.Identity,
		a.Query,
		a.FetchedAt.Format(timestampLayout),
	}
}

func rowToArticle(row []string) domain.Article {
	published, _ := time.Parse(dateLayout, row[2])
	fetched, _ := time.Parse(timestampLayout, row[9])

	var tags []string
	if row[6] != "" {
		tags = strings.Split(row[6], tagSeparator)
	}

	return domain.Article{
		Title:       row[0],
		Source:      row[1],
		PublishedAt: published,
		Summary:     row[3],
		URL:         row[4],
		Category:    domain.Category(row[5]),
		Tags:        tags,
		Identity:    row[7],
		Query:       row[8],
		FetchedAt:   fetched,
	}
}
