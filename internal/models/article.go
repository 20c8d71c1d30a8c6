package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/starford/blogit/internal/apperr"
)

// Front-matter keys with a dedicated meaning.
const (
	FieldTitle   = "title"
	FieldSlug    = "slug"
	FieldTags    = "tags"
	FieldPublish = "publish"
	FieldDate    = "date"
)

// ArticleOptions carries the repository coordinates used to build history URLs.
type ArticleOptions struct {
	WebURL      string // defaults to https://github.com
	User        string
	Repository  string
	Branch      string // defaults to master
	ArticlesDir string
}

// HistoryURL returns the commit history page for filename.
func (o ArticleOptions) HistoryURL(filename string) string {
	base := strings.TrimRight(o.WebURL, "/")
	if base == "" {
		base = "https://github.com"
	}
	branch := o.Branch
	if branch == "" {
		branch = "master"
	}
	parts := []string{base, o.User, o.Repository, "commits", branch}
	if dir := strings.Trim(o.ArticlesDir, "/"); dir != "" {
		parts = append(parts, dir)
	}
	return strings.Join(append(parts, filename), "/")
}

// Article is a Document interpreted as a blog post.
//
// Relationship fields hold positions inside the owning collection and are
// assigned once, after every article of a build exists.
type Article struct {
	*Document

	Title      string
	Slug       string
	Tags       []string
	HistoryURL string
	PublishAt  *time.Time
	Body       string
	HTML       string

	metadata map[string]any

	previous   int
	next       int
	related    []int
	hasPrev    bool
	hasNext    bool
	prevSet    bool
	nextSet    bool
	relatedSet bool
}

// NewArticle builds an Article from a document, its decoded front-matter and
// its body. A missing or empty title is fatal for the article.
func NewArticle(doc *Document, metadata map[string]any, body, html string, opts ArticleOptions) (*Article, error) {
	a := &Article{
		Document: doc,
		Body:     body,
		HTML:     html,
		metadata: metadata,
	}
	if err := a.setTitle(); err != nil {
		return nil, fmt.Errorf("models: %s: %w", doc.Path, err)
	}
	a.setSlug()
	a.setTags()
	a.setPublishAt()
	a.HistoryURL = opts.HistoryURL(doc.Filename)
	return a, nil
}

func (a *Article) setTitle() error {
	title := stringValue(a.metadata[FieldTitle])
	if title == "" {
		return apperr.ErrMissingTitle
	}
	a.Title = title
	return nil
}

func (a *Article) setSlug() {
	if s := Slugify(stringValue(a.metadata[FieldSlug])); s != "" {
		a.Slug = s
		return
	}
	a.Slug = Slugify(a.Title)
}

// setTags copies a tags sequence as given. Non-string items are formatted
// and nulls skipped. A scalar is read as a comma-separated list.
func (a *Article) setTags() {
	a.Tags = []string{}
	switch v := a.metadata[FieldTags].(type) {
	case []any:
		for _, item := range v {
			switch t := item.(type) {
			case nil:
			case string:
				a.Tags = append(a.Tags, t)
			default:
				a.Tags = append(a.Tags, fmt.Sprint(t))
			}
		}
	case []string:
		a.Tags = append(a.Tags, v...)
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				a.Tags = append(a.Tags, s)
			}
		}
	}
}

var publishLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func (a *Article) setPublishAt() {
	raw, ok := a.metadata[FieldPublish]
	if !ok {
		raw, ok = a.metadata[FieldDate]
	}
	if !ok {
		return
	}
	switch v := raw.(type) {
	case time.Time:
		a.PublishAt = &v
	case string:
		for _, layout := range publishLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				a.PublishAt = &t
				return
			}
		}
	}
}

// IsPublished reports whether the article is visible at now. Articles without
// a publish timestamp are always visible.
func (a *Article) IsPublished(now time.Time) bool {
	return a.PublishAt == nil || !a.PublishAt.After(now)
}

// HasTag reports whether tag is one of the article's tags.
func (a *Article) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SharesTag reports whether the two articles have at least one tag in common.
func (a *Article) SharesTag(other *Article) bool {
	for _, t := range other.Tags {
		if a.HasTag(t) {
			return true
		}
	}
	return false
}

// Metadata returns a copy of the decoded front-matter.
func (a *Article) Metadata() map[string]any {
	out := make(map[string]any, len(a.metadata))
	for k, v := range a.metadata {
		out[k] = v
	}
	return out
}

// MetadataField returns a front-matter value formatted as a string.
func (a *Article) MetadataField(name string) (string, error) {
	v, ok := a.metadata[name]
	if !ok || v == nil {
		return "", fmt.Errorf("models: %s: %q: %w", a.Path, name, apperr.ErrFieldNotFound)
	}
	switch t := v.(type) {
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, stringValue(item))
		}
		return strings.Join(parts, ", "), nil
	case time.Time:
		return t.Format(time.RFC3339), nil
	}
	return stringValue(v), nil
}

// MetadataKeys lists the front-matter keys in sorted order.
func (a *Article) MetadataKeys() []string {
	keys := make([]string, 0, len(a.metadata))
	for k := range a.metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetPrevious records the position of the preceding article. Only the first call has effect.
func (a *Article) SetPrevious(i int) {
	if a.prevSet {
		return
	}
	a.prevSet = true
	a.previous, a.hasPrev = i, true
}

// ClearPrevious marks the article as having no predecessor. Only effective before SetPrevious.
func (a *Article) ClearPrevious() { a.prevSet = true }

// SetNext records the position of the following article. Only the first call has effect.
func (a *Article) SetNext(i int) {
	if a.nextSet {
		return
	}
	a.nextSet = true
	a.next, a.hasNext = i, true
}

// ClearNext marks the article as having no successor. Only effective before SetNext.
func (a *Article) ClearNext() { a.nextSet = true }

// SetRelated records the positions of tag-related articles. Only the first call has effect.
func (a *Article) SetRelated(indices []int) {
	if a.relatedSet {
		return
	}
	a.relatedSet = true
	a.related = append([]int{}, indices...)
}

// PreviousIndex returns the position of the preceding article, if any.
func (a *Article) PreviousIndex() (int, bool) { return a.previous, a.hasPrev }

// NextIndex returns the position of the following article, if any.
func (a *Article) NextIndex() (int, bool) { return a.next, a.hasNext }

// RelatedIndices returns the positions of tag-related articles, nil before assignment.
func (a *Article) RelatedIndices() []int { return a.related }

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
