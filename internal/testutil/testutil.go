// Package testutil provides shared test helpers: an in-memory document
// source and temporary cache databases.
package testutil

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/blogit/internal/apperr"
	"github.com/starford/blogit/internal/cache"
	"github.com/starford/blogit/internal/checksum"
	"github.com/starford/blogit/internal/models"
)

// TestSQLiteCache creates a temporary SQLite-backed cache that is automatically cleaned up.
func TestSQLiteCache(t *testing.T) *cache.Cache {
	t.Helper()
	dbFile, err := os.CreateTemp("", "blogit-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	store, err := cache.OpenSQLite(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	c := cache.New(store, nil)
	t.Cleanup(func() { c.Close() })
	return c
}

// TestMemoryCache creates an in-process cache.
func TestMemoryCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.NewMemory(nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// Doc is a document served by FakeSource.
type Doc struct {
	Content string
	Commits []models.Commit
}

// FakeSource is an in-memory source.Source. The zero value is not usable; call NewFakeSource.
type FakeSource struct {
	Dir string

	mu    sync.RWMutex
	order []string
	docs  map[string]Doc
	fail  map[string]error

	ListCalls    atomic.Int32
	FileCalls    atomic.Int32
	CommitsCalls atomic.Int32
}

// NewFakeSource returns an empty source serving directory dir.
func NewFakeSource(dir string) *FakeSource {
	return &FakeSource{Dir: dir, docs: make(map[string]Doc), fail: make(map[string]error)}
}

// Put adds or replaces a file named name. Files are listed in insertion order.
func (f *FakeSource) Put(name string, doc Doc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := path.Join(f.Dir, name)
	if _, ok := f.docs[p]; !ok {
		f.order = append(f.order, p)
	}
	f.docs[p] = doc
}

// Fail makes every call touching name return err. An empty name fails the listing.
func (f *FakeSource) Fail(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name == "" {
		f.fail[""] = err
		return
	}
	f.fail[path.Join(f.Dir, name)] = err
}

// ListDirectory implements source.Source.
func (f *FakeSource) ListDirectory(_ context.Context, dir string) ([]models.Entry, error) {
	f.ListCalls.Add(1)
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := f.fail[""]; err != nil {
		return nil, apperr.NewRemoteSourceError("list directory", dir, err)
	}
	if dir != f.Dir {
		return nil, apperr.NewRemoteSourceError("list directory", dir, apperr.ErrNotFound)
	}
	out := make([]models.Entry, 0, len(f.order))
	for _, p := range f.order {
		out = append(out, models.Entry{
			Name: path.Base(p),
			Path: p,
			SHA:  checksum.GitBlob([]byte(f.docs[p].Content)),
			Type: models.EntryTypeFile,
		})
	}
	return out, nil
}

// GetFile implements source.Source.
func (f *FakeSource) GetFile(_ context.Context, p string) (*models.RemoteFile, error) {
	f.FileCalls.Add(1)
	doc, err := f.lookup("get file", p)
	if err != nil {
		return nil, err
	}
	return &models.RemoteFile{
		Name:     path.Base(p),
		Path:     p,
		SHA:      checksum.GitBlob([]byte(doc.Content)),
		HTMLURL:  "https://github.com/test/blog/blob/master/" + p,
		Content:  base64.StdEncoding.EncodeToString([]byte(doc.Content)),
		Encoding: "base64",
	}, nil
}

// GetCommits implements source.Source.
func (f *FakeSource) GetCommits(_ context.Context, p string) ([]models.Commit, error) {
	f.CommitsCalls.Add(1)
	doc, err := f.lookup("get commits", p)
	if err != nil {
		return nil, err
	}
	return append([]models.Commit(nil), doc.Commits...), nil
}

func (f *FakeSource) lookup(op, p string) (Doc, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := f.fail[p]; err != nil {
		return Doc{}, apperr.NewRemoteSourceError(op, p, err)
	}
	doc, ok := f.docs[p]
	if !ok {
		return Doc{}, apperr.NewRemoteSourceError(op, p, apperr.ErrNotFound)
	}
	return doc, nil
}

// Commits builds a newest-first history with one commit per day. logins[0]
// authors the oldest commit, dated base, which comes last in the result.
func Commits(base time.Time, logins ...string) []models.Commit {
	out := make([]models.Commit, len(logins))
	for i, login := range logins {
		out[len(logins)-1-i] = models.Commit{
			SHA:    fmt.Sprintf("c%d", i),
			Author: models.CommitAuthor{Login: login},
			Date:   base.AddDate(0, 0, i),
		}
	}
	return out
}

// Article formats a document with the given front-matter lines and body.
func Article(frontMatter string, body string) string {
	return frontMatter + "\n---\n" + body + "\n"
}

// Slugs returns the slugs of articles in order.
func Slugs(articles []*models.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.Slug
	}
	return out
}

// ErrBoom is a generic injected failure.
var ErrBoom = errors.New("boom")
