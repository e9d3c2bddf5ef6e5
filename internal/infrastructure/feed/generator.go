package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"MetalsMonitor/internal/config"
	"MetalsMonitor/internal/domain"
	"MetalsMonitor/internal/ports"
)

// Generator renders articles into an RSS 2.0 document at a fixed path.
type Generator struct {
	cfg config.FeedConfig
	now func() time.Time
}

var _ ports.FeedWriter = (*Generator)(nil)

// NewGenerator builds a Generator; clock defaults to time.Now when nil.
func NewGenerator(cfg config.FeedConfig, clock func() time.Time) *Generator {
	if clock == nil {
		clock = time.Now
	}
	return &Generator{cfg: cfg, now: clock}
}

// Publish writes the top maxItems articles as an RSS document. The input is
// expected in recency order already; identical input yields an identical
// document apart from lastBuildDate.
func (g *Generator) Publish(articles []domain.Article, maxItems int) error {
	if maxItems > 0 && len(articles) > maxItems {
		articles = articles[:maxItems]
	}

	document := g.Render(articles)

	if dir := filepath.Dir(g.cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create feed dir: %v", domain.ErrPublish, err)
		}
	}
	if err := os.WriteFile(g.cfg.Path, []byte(document), 0o644); err != nil {
		return fmt.Errorf("%w: write feed: %v", domain.ErrPublish, err)
	}
	return nil
}

// Render produces the RSS 2.0 document text.
func (g *Generator) Render(articles []domain.Article) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	writeElement(&buf, "title", g.cfg.Title, 4)
	writeElement(&buf, "link", g.cfg.Link, 4)
	writeElement(&buf, "description", g.cfg.Description, 4)
	writeElement(&buf, "lastBuildDate", g.now().Format(time.RFC1123Z), 4)
	writeElement(&buf, "generator", "MetalsMonitor/1.0", 4)

	for _, article := range articles {
		writeItem(&buf, article)
	}

	buf.WriteString("  </channel>\n</rss>\n")
	return buf.String()
}

func writeItem(buf *bytes.Buffer, article domain.Article) {
	buf.WriteString("    <item>\n")

	writeElement(buf, "title", article.Title, 6)
	writeElement(buf, "link", article.URL, 6)

	if article.Identity != "" {
		buf.WriteString(`      <guid isPermaLink="false">`)
		xml.EscapeText(buf, []byte(article.Identity))
		buf.WriteString("</guid>\n")
	}

	writeElement(buf, "description", itemDescription(article), 6)

	// Entries whose date fell through to zero omit pubDate entirely.
	if !article.PublishedAt.IsZero() {
		writeElement(buf, "pubDate", article.PublishedAt.Format(time.RFC1123Z), 6)
	}

	writeElement(buf, "category", string(article.Category), 6)

	buf.WriteString("    </item>\n")
}

func itemDescription(article domain.Article) string {
	description := article.Summary
	if description == "" {
		description = "No description available"
	}
	if len(article.Tags) > 0 {
		description = fmt.Sprintf("%s [Tags: %s]", description, strings.Join(article.Tags, ", "))
	}
	return description
}

func writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
