package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MetalsMonitor/internal/dedup"
	"MetalsMonitor/internal/domain"
	"MetalsMonitor/internal/normalize"
	"MetalsMonitor/internal/ports"
)

type fakeSource struct {
	results map[string][]domain.RawArticle
	errs    map[string]error
	calls   []string
}

func (f *fakeSource) Search(_ context.Context, query string, _ time.Duration) ([]domain.RawArticle, error) {
	f.calls = append(f.calls, query)
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	return f.results[query], nil
}

type fakeStore struct {
	articles  []domain.Article
	insertErr error
	readErr   error
	urls      map[string]bool
}

var _ ports.ArticleStore = (*fakeStore)(nil)

func (f *fakeStore) LoadRecent(_ context.Context, limit int) ([]domain.Article, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	if limit > 0 && len(f.articles) > limit {
		return f.articles[:limit], nil
	}
	return f.articles, nil
}

func (f *fakeStore) Identities(_ context.Context) (map[string]struct{}, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	ids := make(map[string]struct{}, len(f.articles))
	for _, a := range f.articles {
		ids[a.Identity] = struct{}{}
	}
	return ids, nil
}

func (f *fakeStore) InsertBatch(_ context.Context, batch []domain.Article) (domain.InsertResult, error) {
	if f.insertErr != nil {
		return domain.InsertResult{Rejected: len(batch)}, f.insertErr
	}
	f.articles = append(f.articles, batch...)
	return domain.InsertResult{Accepted: len(batch)}, nil
}

func (f *fakeStore) Close() error { return nil }

type fakeRemoteStore struct {
	fakeStore
}

var _ ports.RemoteStore = (*fakeRemoteStore)(nil)

func (f *fakeRemoteStore) ExistsByURL(_ context.Context, url string) (bool, error) {
	return f.urls[url], nil
}

type fakeFeed struct {
	published []domain.Article
	maxItems  int
	err       error
	calls     int
}

func (f *fakeFeed) Publish(articles []domain.Article, maxItems int) error {
	f.calls++
	f.published = articles
	f.maxItems = maxItems
	return f.err
}

func raw(title, source string) domain.RawArticle {
	return domain.RawArticle{Title: title, Source: source, Date: "2026-03-14"}
}

func newTestPipeline(source ports.ArticleSource, store ports.ArticleStore, feed ports.FeedWriter, queries []string) *Pipeline {
	return NewPipeline(PipelineDeps{
		Source:     source,
		Store:      store,
		Feed:       feed,
		Normalizer: normalize.New(func() time.Time { return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC) }),
		Queries:    queries,
		Lookback:   24 * time.Hour,
		FeedItems:  50,
	})
}

func TestRunHappyPath(t *testing.T) {
	t.Parallel()

	source := &fakeSource{results: map[string][]domain.RawArticle{
		"q1": {raw("A", "X"), raw("B", "Y")},
		"q2": {raw("C", "Z")},
	}}
	store := &fakeStore{}
	feed := &fakeFeed{}

	pipeline := newTestPipeline(source, store, feed, []string{"q1", "q2"})
	report, err := pipeline.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.StageDone, pipeline.Stage())
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 3, report.Admitted)
	assert.Equal(t, 0, report.Rejected)
	assert.Equal(t, 3, report.TotalStored)
	assert.Equal(t, 3, report.DistinctSources)
	assert.Equal(t, 1, feed.calls)
	assert.Equal(t, 50, feed.maxItems)
}

func TestRunFailingQueryDoesNotAbort(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		results: map[string][]domain.RawArticle{"good": {raw("A", "X")}},
		errs:    map[string]error{"bad": errors.New("transport down")},
	}
	store := &fakeStore{}

	pipeline := newTestPipeline(source, store, &fakeFeed{}, []string{"bad", "good"})
	report, err := pipeline.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"bad", "good"}, source.calls)
	assert.Equal(t, 1, report.FailedQueries)
	assert.Equal(t, 1, report.Fetched)
	assert.Equal(t, 1, report.Admitted)
}

func TestRunDeduplicatesAgainstStore(t *testing.T) {
	t.Parallel()

	known := domain.Article{Title: "A", Source: "X", Identity: dedup.Identity("A", "X")}
	source := &fakeSource{results: map[string][]domain.RawArticle{
		"q": {raw("A", "X"), raw("A", "X"), raw("B", "Y")},
	}}
	store := &fakeStore{articles: []domain.Article{known}}

	pipeline := newTestPipeline(source, store, &fakeFeed{}, []string{"q"})
	report, err := pipeline.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 1, report.Admitted, "only B is new")
	assert.Equal(t, 2, report.Rejected)
}

func TestRunRemoteStoreURLPreCheck(t *testing.T) {
	t.Parallel()

	source := &fakeSource{results: map[string][]domain.RawArticle{
		"q": {
			{Title: "A", Source: "X", URL: "https://example.org/known"},
			{Title: "B", Source: "Y", URL: "https://example.org/new"},
		},
	}}
	store := &fakeRemoteStore{}
	store.urls = map[string]bool{"https://example.org/known": true}

	pipeline := newTestPipeline(source, store, &fakeFeed{}, []string{"q"})
	report, err := pipeline.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Admitted)
	require.Len(t, store.articles, 1)
	assert.Equal(t, "B", store.articles[0].Title)
}

func TestRunStoreWriteFailureStillReports(t *testing.T) {
	t.Parallel()

	source := &fakeSource{results: map[string][]domain.RawArticle{"q": {raw("A", "X")}}}
	store := &fakeStore{insertErr: domain.ErrStoreWrite}

	pipeline := newTestPipeline(source, store, &fakeFeed{}, []string{"q"})
	report, err := pipeline.Run(context.Background())

	require.Error(t, err)
	var stageErr *domain.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, domain.StagePersisting, stageErr.Stage)
	assert.Equal(t, domain.StageFailed, pipeline.Stage())

	// Statistics are still produced for whatever the store holds.
	assert.Equal(t, 1, report.Fetched)
	assert.Equal(t, 0, report.TotalStored)
}

func TestRunPublishFailureDoesNotAffectStore(t *testing.T) {
	t.Parallel()

	source := &fakeSource{results: map[string][]domain.RawArticle{"q": {raw("A", "X")}}}
	store := &fakeStore{}
	feed := &fakeFeed{err: domain.ErrPublish}

	pipeline := newTestPipeline(source, store, feed, []string{"q"})
	report, err := pipeline.Run(context.Background())

	require.Error(t, err)
	var stageErr *domain.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, domain.StagePublishing, stageErr.Stage)

	assert.Len(t, store.articles, 1, "persistence happened before publishing")
	assert.Equal(t, 1, report.TotalStored)
}

func TestRunPublishesFromStoreNotBatch(t *testing.T) {
	t.Parallel()

	already := domain.Article{
		Title:    "old",
		Source:   "X",
		Identity: dedup.Identity("old", "X"),
	}
	source := &fakeSource{results: map[string][]domain.RawArticle{"q": {raw("new", "Y")}}}
	store := &fakeStore{articles: []domain.Article{already}}
	feed := &fakeFeed{}

	pipeline := newTestPipeline(source, store, feed, []string{"q"})
	_, err := pipeline.Run(context.Background())

	require.NoError(t, err)
	assert.Len(t, feed.published, 2, "feed reflects the whole store, not just the new batch")
}

func TestRunMissingDependenciesFails(t *testing.T) {
	t.Parallel()

	pipeline := NewPipeline(PipelineDeps{})
	_, err := pipeline.Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, domain.StageFailed, pipeline.Stage())
}

func TestRunCancelledContextStopsBetweenQueries(t *testing.T) {
	t.Parallel()

	source := &fakeSource{results: map[string][]domain.RawArticle{
		"q1": {raw("A", "X")},
		"q2": {raw("B", "Y")},
	}}
	store := &fakeStore{}

	pipeline := NewPipeline(PipelineDeps{
		Source:     source,
		Store:      store,
		Normalizer: normalize.New(nil),
		Queries:    []string{"q1", "q2"},
		QueryDelay: time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := pipeline.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"q1"}, source.calls, "run stops during the inter-query delay")
	assert.Equal(t, 1, report.Fetched)
}
