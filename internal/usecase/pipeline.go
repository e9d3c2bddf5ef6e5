package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"MetalsMonitor/internal/dedup"
	"MetalsMonitor/internal/domain"
	"MetalsMonitor/internal/normalize"
	"MetalsMonitor/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.ArticleSource
	Store      ports.ArticleStore
	Feed       ports.FeedWriter
	Normalizer *normalize.Normalizer
	Logger     *slog.Logger

	Queries    []string
	Lookback   time.Duration
	QueryDelay time.Duration
	FeedItems  int
}

// Pipeline implements the ingestion-dedup-classify-publish workflow:
// fetch each query, normalize, dedup against the store, persist, publish
// the feed and report statistics. Per-query and per-article failures are
// contained; only missing dependencies abort a run.
type Pipeline struct {
	source     ports.ArticleSource
	store      ports.ArticleStore
	feed       ports.FeedWriter
	normalizer *normalize.Normalizer
	logger     *slog.Logger

	queries    []string
	lookback   time.Duration
	queryDelay time.Duration
	feedItems  int

	stage domain.Stage
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	normalizer := deps.Normalizer
	if normalizer == nil {
		normalizer = normalize.New(nil)
	}

	return &Pipeline{
		source:     deps.Source,
		store:      deps.Store,
		feed:       deps.Feed,
		normalizer: normalizer,
		logger:     logger,
		queries:    deps.Queries,
		lookback:   deps.Lookback,
		queryDelay: deps.QueryDelay,
		feedItems:  deps.FeedItems,
		stage:      domain.StageIdle,
	}
}

// Stage returns the pipeline's current stage.
func (p *Pipeline) Stage() domain.Stage {
	return p.stage
}

// Run executes one full pipeline pass. The returned report is valid even
// when the persist or publish stage failed; the first surfaced error (if
// any) accompanies it.
func (p *Pipeline) Run(ctx context.Context) (domain.RunReport, error) {
	if p.source == nil || p.store == nil {
		p.stage = domain.StageFailed
		return domain.RunReport{}, domain.NewStageError(domain.StageIdle,
			errors.New("pipeline missing source or store"))
	}

	var report domain.RunReport

	raw, failedQueries := p.fetchAll(ctx)
	report.FailedQueries = failedQueries
	report.Fetched = len(raw)

	p.transition(domain.StageNormalizing)
	batch := make([]domain.Article, 0, len(raw))
	for _, entry := range raw {
		batch = append(batch, p.normalizer.Normalize(entry.article, entry.query))
	}

	p.transition(domain.StageDeduping)
	admitted := p.dedupBatch(ctx, batch)
	report.Rejected = len(batch) - len(admitted)

	p.transition(domain.StagePersisting)
	var runErr error
	result, err := p.store.InsertBatch(ctx, admitted)
	report.Admitted = result.Accepted
	report.Rejected += result.Rejected
	if err != nil {
		p.logger.Error("persist stage failed", "error", err)
		runErr = domain.NewStageError(domain.StagePersisting, err)
	}

	// Publishing reads back from the store so the feed only ever contains
	// durably persisted articles.
	p.transition(domain.StagePublishing)
	stored, err := p.store.LoadRecent(ctx, 0)
	if err != nil {
		p.logger.Warn("cannot read store for publishing", "error", err)
		stored = nil
	}
	if p.feed != nil && len(stored) > 0 {
		if err := p.feed.Publish(stored, p.feedItems); err != nil {
			p.logger.Error("publish stage failed", "error", err)
			if runErr == nil {
				runErr = domain.NewStageError(domain.StagePublishing, err)
			}
		}
	}

	p.transition(domain.StageReporting)
	stats := domain.BuildReport(stored, time.Now())
	report.TotalStored = stats.TotalStored
	report.ByCategory = stats.ByCategory
	report.DistinctSources = stats.DistinctSources
	report.Last24Hours = stats.Last24Hours

	if encoded, err := json.Marshal(report); err == nil {
		p.logger.Info("run completed", "report", string(encoded))
	}

	if runErr != nil {
		p.stage = domain.StageFailed
		return report, runErr
	}
	p.transition(domain.StageDone)
	return report, nil
}

type fetchedArticle struct {
	article domain.RawArticle
	query   string
}

// fetchAll resolves every configured query sequentially with the
// inter-query delay. A failed query is logged and contributes zero
// results; it never aborts the run.
func (p *Pipeline) fetchAll(ctx context.Context) ([]fetchedArticle, int) {
	p.transition(domain.StageFetching)

	var collected []fetchedArticle
	failed := 0
	for i, query := range p.queries {
		results, err := p.source.Search(ctx, query, p.lookback)
		if err != nil {
			p.logger.Warn("query failed, treating as empty", "query", query, "error", err)
			failed++
		} else {
			p.logger.Info("collected articles", "query", query, "count", len(results))
			if len(results) == 0 {
				p.logger.Warn("zero articles returned", "query", query)
			}
			for _, r := range results {
				collected = append(collected, fetchedArticle{article: r, query: query})
			}
		}

		if i < len(p.queries)-1 && p.queryDelay > 0 {
			if !p.wait(ctx) {
				break
			}
		}
	}

	return collected, failed
}

// dedupBatch filters the batch against the store's identity set. An
// unreadable store is treated as empty (fresh start). When the store also
// supports a URL pre-check, articles with already-stored URLs are dropped
// early; identity remains the ground truth either way.
func (p *Pipeline) dedupBatch(ctx context.Context, batch []domain.Article) []domain.Article {
	existing, err := p.store.Identities(ctx)
	if err != nil {
		p.logger.Warn("cannot load store identities, assuming empty store", "error", err)
		existing = map[string]struct{}{}
	}

	if remote, ok := p.store.(ports.RemoteStore); ok {
		filtered := make([]domain.Article, 0, len(batch))
		for _, article := range batch {
			exists, err := remote.ExistsByURL(ctx, article.URL)
			if err != nil {
				p.logger.Warn("url pre-check failed", "url", article.URL, "error", err)
			}
			if err == nil && exists {
				continue
			}
			filtered = append(filtered, article)
		}
		batch = filtered
	}

	return dedup.Filter(existing, batch)
}

func (p *Pipeline) wait(ctx context.Context) bool {
	timer := time.NewTimer(p.queryDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *Pipeline) transition(stage domain.Stage) {
	p.logger.Debug("stage transition", "from", p.stage, "to", stage)
	p.stage = stage
}
