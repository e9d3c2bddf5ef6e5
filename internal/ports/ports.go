package ports

import (
	"context"
	"time"

	"MetalsMonitor/internal/domain"
)

// ArticleSource resolves one search query against the upstream news API.
type ArticleSource interface {
	Search(ctx context.Context, query string, lookback time.Duration) ([]domain.RawArticle, error)
}

// ArticleStore is an append-mostly collection of articles with a retention
// cap, queryable by recency.
type ArticleStore interface {
	// LoadRecent returns up to limit articles ordered by published date
	// descending, ties broken by most recent insertion first. Read or
	// parse failures yield an empty slice plus the error; callers treat
	// that as a fresh store.
	LoadRecent(ctx context.Context, limit int) ([]domain.Article, error)
	// Identities returns the set of identities currently in the store.
	Identities(ctx context.Context) (map[string]struct{}, error)
	// InsertBatch appends non-colliding articles and evicts the oldest
	// by published date once the retention cap is exceeded.
	InsertBatch(ctx context.Context, batch []domain.Article) (domain.InsertResult, error)
	Close() error
}

// RemoteStore extends ArticleStore with a cheap URL pre-check; identity
// uniqueness stays the ground truth.
type RemoteStore interface {
	ArticleStore
	ExistsByURL(ctx context.Context, url string) (bool, error)
}

// FeedWriter renders articles into a syndication document.
type FeedWriter interface {
	Publish(articles []domain.Article, maxItems int) error
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
