package storage

import (
	"sort"

	"MetalsMonitor/internal/domain"
)

// byRecency orders articles by published date descending; among equal dates
// the most recently inserted comes first. Input order is insertion order.
func byRecency(articles []domain.Article) []domain.Article {
	indexed := make([]int, len(articles))
	for i := range indexed {
		indexed[i] = i
	}

	sort.Slice(indexed, func(a, b int) bool {
		ai, bi := indexed[a], indexed[b]
		if !articles[ai].PublishedAt.Equal(articles[bi].PublishedAt) {
			return articles[ai].PublishedAt.After(articles[bi].PublishedAt)
		}
		return ai > bi
	})

	ordered := make([]domain.Article, len(articles))
	for i, idx := range indexed {
		ordered[i] = articles[idx]
	}
	return ordered
}

// evictOldest drops articles beyond cap, oldest published date first and
// earliest-inserted first among equal dates. The survivors keep their
// insertion order.
func evictOldest(articles []domain.Article, cap int) []domain.Article {
	excess := len(articles) - cap
	if excess <= 0 {
		return articles
	}

	indexed := make([]int, len(articles))
	for i := range indexed {
		indexed[i] = i
	}
	sort.Slice(indexed, func(a, b int) bool {
		ai, bi := indexed[a], indexed[b]
		if !articles[ai].PublishedAt.Equal(articles[bi].PublishedAt) {
			return articles[ai].PublishedAt.Before(articles[bi].PublishedAt)
		}
		return ai < bi
	})

	evicted := make(map[int]struct{}, excess)
	for _, idx := range indexed[:excess] {
		evicted[idx] = struct{}{}
	}

	kept := make([]domain.Article, 0, cap)
	for i, article := range articles {
		if _, gone := evicted[i]; gone {
			continue
		}
		kept = append(kept, article)
	}
	return kept
}
