package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"MetalsMonitor/internal/classify"
	"MetalsMonitor/internal/dedup"
	"MetalsMonitor/internal/domain"
)

const (
	placeholderTitle = "Untitled"
	maxFieldLength   = 2000
)

// dateFormats is tried in order; the first format that parses wins.
var dateFormats = []string{
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006/01/02",
	"02/01/2006",
	"01/02/2006",
}

var yearExpr = regexp.MustCompile(`\b(\d{4})\b`)

// Normalizer coerces raw search results into canonical articles.
type Normalizer struct {
	now func() time.Time
}

// New builds a Normalizer; clock defaults to time.Now when nil.
func New(clock func() time.Time) *Normalizer {
	if clock == nil {
		clock = time.Now
	}
	return &Normalizer{now: clock}
}

// Normalize converts a raw record into a classified canonical Article.
// It never fails: missing fields are defaulted and unparseable dates fall
// back through the year-extraction chain.
func (n *Normalizer) Normalize(raw domain.RawArticle, query string) domain.Article {
	title := truncate(stripHTML(strings.TrimSpace(raw.Title)), maxFieldLength)
	if title == "" {
		title = placeholderTitle
	}

	summary := truncate(stripHTML(strings.TrimSpace(raw.Summary)), maxFieldLength)
	source := strings.TrimSpace(raw.Source)

	category, tags := classify.Classify(title, summary)

	return domain.Article{
		Title:       title,
		Source:      source,
		PublishedAt: n.parseDate(raw.Date),
		Summary:     summary,
		URL:         strings.TrimSpace(raw.URL),
		Category:    category,
		Tags:        tags,
		Identity:    dedup.Identity(title, source),
		Query:       query,
		FetchedAt:   n.now(),
	}
}

// parseDate resolves the raw date string through the ordered fallback
// chain: known formats, then January 1 of any 4-digit year found in the
// text, then the processing date.
func (n *Normalizer) parseDate(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return dateOnly(n.now())
	}

	for _, format := range dateFormats {
		if parsed, err := time.Parse(format, value); err == nil {
			return parsed
		}
	}

	if match := yearExpr.FindString(value); match != "" {
		if year, err := strconv.Atoi(match); err == nil {
			return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		}
	}

	return dateOnly(n.now())
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// stripHTML flattens any markup the search API leaks into plain text.
func stripHTML(value string) string {
	if !strings.ContainsAny(value, "<>") {
		return value
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(value))
	if err != nil {
		return value
	}
	return strings.TrimSpace(doc.Text())
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
