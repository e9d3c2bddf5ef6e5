package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"MetalsMonitor/internal/domain"
	"MetalsMonitor/internal/ports"
)

const articlesSchema = `
CREATE TABLE IF NOT EXISTS metal_articles (
    identity     TEXT PRIMARY KEY,
    title        TEXT NOT NULL,
    source       TEXT NOT NULL DEFAULT '',
    published_at DATE NOT NULL,
    summary      TEXT NOT NULL DEFAULT '',
    url          TEXT NOT NULL DEFAULT '',
    category     TEXT NOT NULL DEFAULT 'general',
    tags         TEXT[] NOT NULL DEFAULT '{}',
    query        TEXT NOT NULL DEFAULT '',
    fetched_at   TIMESTAMPTZ NOT NULL,
    seq          BIGSERIAL
)`

// PostgresStore persists articles in Postgres. The seq column records
// insertion order for recency tie-breaks.
type PostgresStore struct {
	db      *sql.DB
	cap     int
	builder sq.StatementBuilderType
}

var _ ports.RemoteStore = (*PostgresStore)(nil)

// NewPostgresStore opens the connection and ensures the schema exists.
func NewPostgresStore(dsn string, retentionCap int) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.Exec(articlesSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &PostgresStore{
		db:      db,
		cap:     retentionCap,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// LoadRecent returns up to limit articles by published date descending,
// most recently inserted first among equal dates.
func (s *PostgresStore) LoadRecent(ctx context.Context, limit int) ([]domain.Article, error) {
	query := s.builder.
		Select("title", "source", "published_at", "summary", "url",
			"category", "tags", "identity", "query", "fetched_at").
		From("metal_articles").
		OrderBy("published_at DESC", "seq DESC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	sqlText, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query articles: %v", domain.ErrStoreRead, err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		var a domain.Article
		var tags pq.StringArray
		err := rows.Scan(&a.Title, &a.Source, &a.PublishedAt, &a.Summary, &a.URL,
			&a.Category, &tags, &a.Identity, &a.Query, &a.FetchedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: scan article: %v", domain.ErrStoreRead, err)
		}
		a.Tags = tags
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows iteration: %v", domain.ErrStoreRead, err)
	}

	return articles, nil
}

// Identities returns the identity set of all stored articles.
func (s *PostgresStore) Identities(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT identity FROM metal_articles`)
	if err != nil {
		return nil, fmt.Errorf("%w: query identities: %v", domain.ErrStoreRead, err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan identity: %v", domain.ErrStoreRead, err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows iteration: %v", domain.ErrStoreRead, err)
	}
	return ids, nil
}

// ExistsByURL reports whether any stored article carries the given URL.
// It is a cheap pre-check only; identity uniqueness is enforced by the
// primary key regardless.
func (s *PostgresStore) ExistsByURL(ctx context.Context, url string) (bool, error) {
	if url == "" {
		return false, nil
	}

	sqlText, args, err := s.builder.
		Select("1").
		From("metal_articles").
		Where(sq.Eq{"url": url}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, sqlText, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: exists by url: %v", domain.ErrStoreRead, err)
	}
	return true, nil
}

// InsertBatch inserts non-colliding articles and trims the store back to
// the retention cap, oldest published dates first.
func (s *PostgresStore) InsertBatch(ctx context.Context, batch []domain.Article) (domain.InsertResult, error) {
	var result domain.InsertResult

	for _, article := range batch {
		sqlText, args, err := s.builder.
			Insert("metal_articles").
			Columns("identity", "title", "source", "published_at", "summary",
				"url", "category", "tags", "query", "fetched_at").
			Values(article.Identity, article.Title, article.Source, article.PublishedAt,
				article.Summary, article.URL, string(article.Category),
				pq.Array(article.Tags), article.Query, article.FetchedAt).
			Suffix("ON CONFLICT (identity) DO NOTHING").
			ToSql()
		if err != nil {
			return result, fmt.Errorf("build insert: %w", err)
		}

		res, err := s.db.ExecContext(ctx, sqlText, args...)
		if err != nil {
			return result, fmt.Errorf("%w: insert article: %v", domain.ErrStoreWrite, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return result, fmt.Errorf("%w: rows affected: %v", domain.ErrStoreWrite, err)
		}
		if affected > 0 {
			result.Accepted++
		} else {
			result.Rejected++
		}
	}

	if err := s.enforceCap(ctx); err != nil {
		return result, err
	}
	return result, nil
}

func (s *PostgresStore) enforceCap(ctx context.Context) error {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM metal_articles`).Scan(&total); err != nil {
		return fmt.Errorf("%w: count articles: %v", domain.ErrStoreWrite, err)
	}
	excess := total - s.cap
	if excess <= 0 {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM metal_articles WHERE identity IN (
			SELECT identity FROM metal_articles
			ORDER BY published_at ASC, seq ASC
			LIMIT $1
		)`, excess)
	if err != nil {
		return fmt.Errorf("%w: evict oldest: %v", domain.ErrStoreWrite, err)
	}
	return nil
}

// Close releases the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
