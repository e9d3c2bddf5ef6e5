package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MetalsMonitor/internal/dedup"
	"MetalsMonitor/internal/domain"
)

func testStore(t *testing.T, cap int) *CSVStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "articles.csv")
	return NewCSVStore(path, cap, nil)
}

func storedArticle(title, source, date string) domain.Article {
	published, _ := time.Parse("2006-01-02", date)
	return domain.Article{
		Title:       title,
		Source:      source,
		PublishedAt: published,
		Summary:     "summary of " + title,
		URL:         "https://example.org/" + title,
		Category:    domain.CategoryPrices,
		Tags:        []string{"copper", "pricing"},
		Identity:    dedup.Identity(title, source),
		Query:       "copper prices",
		FetchedAt:   time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestInsertBatchDeduplicatesWithinBatch(t *testing.T) {
	t.Parallel()

	store := testStore(t, 500)
	ctx := context.Background()

	batch := []domain.Article{
		storedArticle("A", "X", "2026-01-01"),
		storedArticle("A", "X", "2026-01-01"),
	}

	result, err := store.InsertBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 1, result.Rejected)

	stored, err := store.LoadRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestInsertBatchSkipsExistingIdentity(t *testing.T) {
	t.Parallel()

	store := testStore(t, 500)
	ctx := context.Background()

	_, err := store.InsertBatch(ctx, []domain.Article{storedArticle("A", "X", "2026-01-01")})
	require.NoError(t, err)

	result, err := store.InsertBatch(ctx, []domain.Article{
		storedArticle("A", "X", "2026-02-02"), // same identity, different date
		storedArticle("B", "X", "2026-01-05"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 1, result.Rejected)
}

func TestRetentionCapEvictsOldest(t *testing.T) {
	t.Parallel()

	store := testStore(t, 2)
	ctx := context.Background()

	_, err := store.InsertBatch(ctx, []domain.Article{
		storedArticle("old", "X", "2024-01-01"),
		storedArticle("mid", "X", "2024-06-01"),
	})
	require.NoError(t, err)

	_, err = store.InsertBatch(ctx, []domain.Article{
		storedArticle("new", "X", "2025-01-01"),
	})
	require.NoError(t, err)

	stored, err := store.LoadRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "new", stored[0].Title)
	assert.Equal(t, "mid", stored[1].Title)
}

func TestLoadRecentOrdering(t *testing.T) {
	t.Parallel()

	store := testStore(t, 500)
	ctx := context.Background()

	_, err := store.InsertBatch(ctx, []domain.Article{
		storedArticle("first-same-day", "X", "2026-01-10"),
		storedArticle("older", "X", "2026-01-01"),
		storedArticle("second-same-day", "X", "2026-01-10"),
	})
	require.NoError(t, err)

	stored, err := store.LoadRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, stored, 3)

	// Newest date first; among equal dates the later insertion wins.
	assert.Equal(t, "second-same-day", stored[0].Title)
	assert.Equal(t, "first-same-day", stored[1].Title)
	assert.Equal(t, "older", stored[2].Title)
}

func TestLoadRecentLimit(t *testing.T) {
	t.Parallel()

	store := testStore(t, 500)
	ctx := context.Background()

	_, err := store.InsertBatch(ctx, []domain.Article{
		storedArticle("a", "X", "2026-01-01"),
		storedArticle("b", "X", "2026-01-02"),
		storedArticle("c", "X", "2026-01-03"),
	})
	require.NoError(t, err)

	stored, err := store.LoadRecent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.Equal(t, "c", stored[0].Title)
}

func TestLoadRecentMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	store := testStore(t, 500)

	stored, err := store.LoadRecent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestLoadRecentCorruptFileReportsError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "articles.csv")
	require.NoError(t, os.WriteFile(path, []byte("\"unterminated quote\nrow"), 0o644))
	store := NewCSVStore(path, 500, nil)

	stored, err := store.LoadRecent(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrStoreRead)
	assert.Empty(t, stored)
}

func TestInsertBatchRecoversFromCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "articles.csv")
	require.NoError(t, os.WriteFile(path, []byte("\"unterminated quote\nrow"), 0o644))
	store := NewCSVStore(path, 500, nil)
	ctx := context.Background()

	result, err := store.InsertBatch(ctx, []domain.Article{storedArticle("A", "X", "2026-01-01")})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Accepted)

	stored, err := store.LoadRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	store := testStore(t, 500)
	ctx := context.Background()

	original := storedArticle("Copper, \"quoted\" title", "Metal Wire", "2026-02-20")
	_, err := store.InsertBatch(ctx, []domain.Article{original})
	require.NoError(t, err)

	stored, err := store.LoadRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	got := stored[0]
	assert.Equal(t, original.Title, got.Title)
	assert.Equal(t, original.Source, got.Source)
	assert.True(t, original.PublishedAt.Equal(got.PublishedAt))
	assert.Equal(t, original.Summary, got.Summary)
	assert.Equal(t, original.URL, got.URL)
	assert.Equal(t, original.Category, got.Category)
	assert.Equal(t, original.Tags, got.Tags)
	assert.Equal(t, original.Identity, got.Identity)
	assert.Equal(t, original.Query, got.Query)
	assert.True(t, original.FetchedAt.Equal(got.FetchedAt))
}

func TestIdentities(t *testing.T) {
	t.Parallel()

	store := testStore(t, 500)
	ctx := context.Background()

	_, err := store.InsertBatch(ctx, []domain.Article{
		storedArticle("a", "X", "2026-01-01"),
		storedArticle("b", "Y", "2026-01-02"),
	})
	require.NoError(t, err)

	ids, err := store.Identities(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, dedup.Identity("a", "X"))
	assert.Contains(t, ids, dedup.Identity("b", "Y"))
}
