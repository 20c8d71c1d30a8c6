package blog

import (
	"sort"
	"time"

	"github.com/starford/blogit/internal/models"
)

// Collection owns the articles of one build in listing order. Relationship
// fields on each article are positions in this collection.
type Collection struct {
	articles []*models.Article
	tags     []TagCount
}

// NewCollection links articles by adjacency and shared tags and returns the
// resulting collection. The slice is owned by the collection afterwards.
func NewCollection(articles []*models.Article) *Collection {
	c := &Collection{articles: articles}
	c.link()
	c.tags = NewTagIndex(articles).Counts()
	return c
}

func (c *Collection) link() {
	last := len(c.articles) - 1
	for i, a := range c.articles {
		if i > 0 {
			a.SetPrevious(i - 1)
		} else {
			a.ClearPrevious()
		}
		if i < last {
			a.SetNext(i + 1)
		} else {
			a.ClearNext()
		}
	}

	for i, a := range c.articles {
		related := []int{}
		for j, other := range c.articles {
			if i == j || other.SHA == a.SHA {
				continue
			}
			if a.SharesTag(other) {
				related = append(related, j)
			}
		}
		a.SetRelated(related)
	}
}

// All returns every article, including unpublished ones, in listing order.
func (c *Collection) All() []*models.Article {
	return append([]*models.Article(nil), c.articles...)
}

// Len returns the number of articles.
func (c *Collection) Len() int { return len(c.articles) }

// At returns the article at position i, or nil when out of range.
func (c *Collection) At(i int) *models.Article {
	if i < 0 || i >= len(c.articles) {
		return nil
	}
	return c.articles[i]
}

// Published returns the articles visible at now.
func (c *Collection) Published(now time.Time) []*models.Article {
	return c.filter(func(a *models.Article) bool { return a.IsPublished(now) })
}

// BySlug returns the first article with the given slug.
func (c *Collection) BySlug(slug string) (*models.Article, bool) {
	for _, a := range c.articles {
		if a.Slug == slug {
			return a, true
		}
	}
	return nil, false
}

// ByTag returns the articles tagged with tag.
func (c *Collection) ByTag(tag string) []*models.Article {
	return c.filter(func(a *models.Article) bool { return a.HasTag(tag) })
}

// ByTags returns the articles carrying any of tags.
func (c *Collection) ByTags(tags ...string) []*models.Article {
	return c.filter(func(a *models.Article) bool {
		for _, t := range tags {
			if a.HasTag(t) {
				return true
			}
		}
		return false
	})
}

// Previous returns the article listed before a.
func (c *Collection) Previous(a *models.Article) (*models.Article, bool) {
	i, ok := a.PreviousIndex()
	if !ok {
		return nil, false
	}
	return c.At(i), true
}

// Next returns the article listed after a.
func (c *Collection) Next(a *models.Article) (*models.Article, bool) {
	i, ok := a.NextIndex()
	if !ok {
		return nil, false
	}
	return c.At(i), true
}

// Related returns the articles sharing at least one tag with a.
func (c *Collection) Related(a *models.Article) []*models.Article {
	idx := a.RelatedIndices()
	out := make([]*models.Article, 0, len(idx))
	for _, i := range idx {
		if r := c.At(i); r != nil {
			out = append(out, r)
		}
	}
	return out
}

// Tags returns the tag index of the collection.
func (c *Collection) Tags() []TagCount {
	return append([]TagCount(nil), c.tags...)
}

// NewArticles returns every article, most recently created first.
func (c *Collection) NewArticles() []*models.Article {
	out := c.All()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt().After(out[j].CreatedAt())
	})
	return out
}

// UpdatedArticles returns the articles edited after creation, most recently
// updated first.
func (c *Collection) UpdatedArticles() []*models.Article {
	out := c.filter(func(a *models.Article) bool { return a.WasUpdated() })
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt().After(out[j].UpdatedAt())
	})
	return out
}

func (c *Collection) filter(keep func(*models.Article) bool) []*models.Article {
	out := []*models.Article{}
	for _, a := range c.articles {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}
