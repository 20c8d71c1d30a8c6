package blog

import "github.com/starford/blogit/internal/models"

// TagCount is one entry of the tag index.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// TagIndex counts articles per tag, keeping tags in the order they are first seen.
type TagIndex struct {
	order  []string
	counts map[string]int
}

// NewTagIndex indexes articles in order. A tag repeated on one article counts once.
func NewTagIndex(articles []*models.Article) *TagIndex {
	idx := &TagIndex{counts: make(map[string]int)}
	for _, a := range articles {
		seen := make(map[string]struct{}, len(a.Tags))
		for _, t := range a.Tags {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			if _, ok := idx.counts[t]; !ok {
				idx.order = append(idx.order, t)
			}
			idx.counts[t]++
		}
	}
	return idx
}

// Count returns the number of articles carrying tag.
func (idx *TagIndex) Count(tag string) int { return idx.counts[tag] }

// Counts returns every tag with its count, in first-seen order.
func (idx *TagIndex) Counts() []TagCount {
	out := make([]TagCount, len(idx.order))
	for i, t := range idx.order {
		out[i] = TagCount{Tag: t, Count: idx.counts[t]}
	}
	return out
}
