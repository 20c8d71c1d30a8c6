package internal

import (
	"encoding/json"
	"io"
	"time"

	"github.com/starford/blogit/internal/blog"
	"github.com/starford/blogit/internal/models"
)

// ArticleSummary is the listing representation of an article.
type ArticleSummary struct {
	Slug         string               `json:"slug"`
	Title        string               `json:"title"`
	Path         string               `json:"path"`
	Tags         []string             `json:"tags"`
	Previous     string               `json:"previous,omitempty"`
	Next         string               `json:"next,omitempty"`
	Related      []string             `json:"related"`
	HistoryURL   string               `json:"history_url"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
	PublishAt    *time.Time           `json:"publish_at,omitempty"`
	Published    bool                 `json:"published"`
	Contributors []models.Contributor `json:"contributors"`
}

// ArticleDetail is the full representation of one article.
type ArticleDetail struct {
	ArticleSummary
	Metadata map[string]any `json:"metadata"`
	Body     string         `json:"body"`
	HTML     string         `json:"html"`
}

// BuildSummary is printed after a build.
type BuildSummary struct {
	Articles  []ArticleSummary `json:"articles"`
	Published int              `json:"published"`
	Tags      []blog.TagCount  `json:"tags"`
}

func summarize(c *blog.Collection, a *models.Article, now time.Time) ArticleSummary {
	s := ArticleSummary{
		Slug:         a.Slug,
		Title:        a.Title,
		Path:         a.Path,
		Tags:         a.Tags,
		Related:      []string{},
		HistoryURL:   a.HistoryURL,
		CreatedAt:    a.CreatedAt(),
		UpdatedAt:    a.UpdatedAt(),
		PublishAt:    a.PublishAt,
		Published:    a.IsPublished(now),
		Contributors: a.Contributors(),
	}
	if p, ok := c.Previous(a); ok {
		s.Previous = p.Slug
	}
	if n, ok := c.Next(a); ok {
		s.Next = n.Slug
	}
	for _, r := range c.Related(a) {
		s.Related = append(s.Related, r.Slug)
	}
	return s
}

func newBuildSummary(c *blog.Collection, now time.Time) BuildSummary {
	out := BuildSummary{
		Articles:  make([]ArticleSummary, 0, c.Len()),
		Published: len(c.Published(now)),
		Tags:      c.Tags(),
	}
	for _, a := range c.All() {
		out.Articles = append(out.Articles, summarize(c, a, now))
	}
	return out
}

func newArticleDetail(c *blog.Collection, a *models.Article, now time.Time) ArticleDetail {
	return ArticleDetail{
		ArticleSummary: summarize(c, a, now),
		Metadata:       a.Metadata(),
		Body:           a.Body,
		HTML:           a.HTML,
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
