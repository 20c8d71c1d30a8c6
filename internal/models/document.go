package models

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/starford/blogit/internal/apperr"
)

// DefaultDateLayout is used by FormatCreatedAt and FormatUpdatedAt when no layout is given.
const DefaultDateLayout = "2006-01-02 15:04:05"

// Document is one remote file plus its revision history.
type Document struct {
	Filename    string
	Path        string
	SHA         string
	URL         string
	HTMLURL     string
	GitURL      string
	DownloadURL string

	content      []byte
	commits      []Commit
	createdAt    time.Time
	updatedAt    time.Time
	contributors []Contributor
	contribIndex map[string]int
}

// NewDocument decodes the file content and derives timestamps and
// contributors from commits. At least one commit is required.
func NewDocument(file RemoteFile, commits []Commit) (*Document, error) {
	if len(commits) == 0 {
		return nil, fmt.Errorf("models: %s: %w", file.Path, apperr.ErrEmptyCommitHistory)
	}

	content, err := decodeContent(file.Content, file.Encoding)
	if err != nil {
		return nil, fmt.Errorf("models: %s: decode content: %v: %w", file.Path, err, apperr.ErrMalformedDocument)
	}

	d := &Document{
		Filename:    file.Name,
		Path:        file.Path,
		SHA:         file.SHA,
		URL:         file.URL,
		HTMLURL:     file.HTMLURL,
		GitURL:      file.GitURL,
		DownloadURL: file.DownloadURL,
		content:     content,
		commits:     append([]Commit(nil), commits...),
	}
	d.computeDates()
	d.computeContributors()
	return d, nil
}

// decodeContent accepts the line-wrapped base64 that the GitHub contents API
// returns. Any encoding other than base64 is taken as raw text.
func decodeContent(content, encoding string) ([]byte, error) {
	if encoding != "" && encoding != "base64" {
		return []byte(content), nil
	}
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, content)
	return base64.StdEncoding.DecodeString(cleaned)
}

func (d *Document) computeDates() {
	d.createdAt = d.commits[0].Date
	d.updatedAt = d.commits[0].Date
	for _, c := range d.commits[1:] {
		if c.Date.Before(d.createdAt) {
			d.createdAt = c.Date
		}
		if c.Date.After(d.updatedAt) {
			d.updatedAt = c.Date
		}
	}
}

func (d *Document) computeContributors() {
	d.contribIndex = make(map[string]int)
	for _, c := range d.commits {
		login := c.Author.Login
		if _, ok := d.contribIndex[login]; ok {
			continue
		}
		d.contribIndex[login] = len(d.contributors)
		d.contributors = append(d.contributors, Contributor{
			Name:      login,
			AvatarURL: c.Author.AvatarURL,
			HTMLURL:   c.Author.HTMLURL,
		})
	}
}

// Content returns the decoded file content.
func (d *Document) Content() []byte { return d.content }

// Commits returns the revision history in source order.
func (d *Document) Commits() []Commit { return d.commits }

// CreatedAt is the timestamp of the earliest commit.
func (d *Document) CreatedAt() time.Time { return d.createdAt }

// UpdatedAt is the timestamp of the most recent commit.
func (d *Document) UpdatedAt() time.Time { return d.updatedAt }

// FormatCreatedAt formats CreatedAt with layout, or DefaultDateLayout when empty.
func (d *Document) FormatCreatedAt(layout string) string {
	return formatTime(d.createdAt, layout)
}

// FormatUpdatedAt formats UpdatedAt with layout, or DefaultDateLayout when empty.
func (d *Document) FormatUpdatedAt(layout string) string {
	return formatTime(d.updatedAt, layout)
}

// WasUpdated reports whether the document changed after its first commit.
func (d *Document) WasUpdated() bool {
	return !d.createdAt.Equal(d.updatedAt)
}

// Contributors returns commit authors deduplicated by login, first seen first.
func (d *Document) Contributors() []Contributor {
	return append([]Contributor(nil), d.contributors...)
}

// Contributor looks up a contributor by login.
func (d *Document) Contributor(login string) (Contributor, bool) {
	i, ok := d.contribIndex[login]
	if !ok {
		return Contributor{}, false
	}
	return d.contributors[i], true
}

func formatTime(t time.Time, layout string) string {
	if layout == "" {
		layout = DefaultDateLayout
	}
	return t.Format(layout)
}
