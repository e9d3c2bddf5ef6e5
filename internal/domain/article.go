package domain

import "time"

// RawArticle is a loosely-typed record as returned by the search API.
// Every field is optional; no invariants are guaranteed.
type RawArticle struct {
	Title   string `json:"title"`
	Source  string `json:"source"`
	Date    string `json:"date"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
}

// Category is the single primary classification of an article.
type Category string

const (
	CategoryPrices      Category = "prices"
	CategoryProduction  Category = "production"
	CategoryTechnology  Category = "technology"
	CategorySupplyChain Category = "supply_chain"
	CategoryGeneral     Category = "general"
)

// Article is the canonical record flowing through the pipeline. Once
// admitted to a store it is immutable: only insertion and eviction happen.
type Article struct {
	Title       string
	Source      string
	PublishedAt time.Time
	Summary     string
	URL         string
	Category    Category
	Tags        []string
	Identity    string
	Query       string
	FetchedAt   time.Time
}

// InsertResult summarizes one store insert batch.
type InsertResult struct {
	Accepted int
	Rejected int
}

// RunReport is the end-of-run statistics summary logged after each run.
type RunReport struct {
	Fetched         int              `json:"fetched"`
	Admitted        int              `json:"admitted"`
	Rejected        int              `json:"rejected"`
	TotalStored     int              `json:"total_stored"`
	ByCategory      map[Category]int `json:"by_category"`
	DistinctSources int              `json:"distinct_sources"`
	Last24Hours     int              `json:"last_24_hours"`
	FailedQueries   int              `json:"failed_queries"`
}

// BuildReport computes store-wide statistics relative to now.
func BuildReport(stored []Article, now time.Time) RunReport {
	report := RunReport{
		TotalStored: len(stored),
		ByCategory:  make(map[Category]int),
	}

	sources := make(map[string]struct{})
	cutoff := now.Add(-24 * time.Hour)
	for _, a := range stored {
		report.ByCategory[a.Category]++
		if a.Source != "" {
			sources[a.Source] = struct{}{}
		}
		if a.PublishedAt.After(cutoff) {
			report.Last24Hours++
		}
	}
	report.DistinctSources = len(sources)

	return report
}
