package blog

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/starford/blogit/internal/apperr"
	"github.com/starford/blogit/internal/models"
	"github.com/starford/blogit/internal/source"
	"github.com/starford/blogit/internal/testutil"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func put(src *testutil.FakeSource, name, frontMatter string, logins ...string) {
	if len(logins) == 0 {
		logins = []string{"alice"}
	}
	src.Put(name, testutil.Doc{
		Content: testutil.Article(frontMatter, "Body of "+name),
		Commits: testutil.Commits(base, logins...),
	})
}

func testBuilder(src source.Source, opts BuilderOptions) *Builder {
	if opts.Dir == "" {
		opts.Dir = "articles"
	}
	factory := NewFactory(nil, models.ArticleOptions{User: "jrean", Repository: "blog", ArticlesDir: opts.Dir})
	return NewBuilder(src, factory, opts, nil)
}

func threeArticles() *testutil.FakeSource {
	src := testutil.NewFakeSource("articles")
	put(src, "a.md", "title: A\ntags: [x, y]")
	put(src, "b.md", "title: B\ntags: [y, z]")
	put(src, "c.md", "title: C\ntags: [w]")
	return src
}

func mustBuild(t *testing.T, b *Builder) *Collection {
	t.Helper()
	c, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return c
}

func TestBuild_Adjacency(t *testing.T) {
	c := mustBuild(t, testBuilder(threeArticles(), BuilderOptions{}))
	if got := testutil.Slugs(c.All()); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("slugs = %v", got)
	}
	a, b, cc := c.At(0), c.At(1), c.At(2)

	if _, ok := c.Previous(a); ok {
		t.Error("first article has a previous")
	}
	if n, _ := c.Next(a); n != b {
		t.Errorf("A.next = %v", n)
	}
	if p, _ := c.Previous(b); p != a {
		t.Errorf("B.previous = %v", p)
	}
	if n, _ := c.Next(b); n != cc {
		t.Errorf("B.next = %v", n)
	}
	if _, ok := c.Next(cc); ok {
		t.Error("last article has a next")
	}
}

func TestBuild_Related(t *testing.T) {
	c := mustBuild(t, testBuilder(threeArticles(), BuilderOptions{}))
	a, _ := c.BySlug("a")
	b, _ := c.BySlug("b")
	cc, _ := c.BySlug("c")

	if got := testutil.Slugs(c.Related(a)); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("related(A) = %v", got)
	}
	if got := testutil.Slugs(c.Related(b)); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("related(B) = %v", got)
	}
	if got := c.Related(cc); len(got) != 0 {
		t.Errorf("related(C) = %v", testutil.Slugs(got))
	}
}

func TestBuild_RelatedExcludesSameContent(t *testing.T) {
	src := testutil.NewFakeSource("articles")
	put(src, "a.md", "title: Same\ntags: [x]")
	src.Put("copy.md", testutil.Doc{
		Content: testutil.Article("title: Same\ntags: [x]", "Body of a.md"),
		Commits: testutil.Commits(base, "bob"),
	})
	c := mustBuild(t, testBuilder(src, BuilderOptions{}))
	if c.Len() != 2 {
		t.Fatalf("len = %d", c.Len())
	}
	if got := c.Related(c.At(0)); len(got) != 0 {
		t.Errorf("identical documents should not be related, got %v", testutil.Slugs(got))
	}
}

func TestBuild_MalformedSkipped(t *testing.T) {
	src := threeArticles()
	src.Put("broken.md", testutil.Doc{Content: "no separator here", Commits: testutil.Commits(base, "alice")})
	put(src, "untitled.md", "tags: [x]")
	src.Put("empty.md", testutil.Doc{Content: testutil.Article("title: E", "e")})

	c := mustBuild(t, testBuilder(src, BuilderOptions{}))
	if got := testutil.Slugs(c.All()); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("slugs = %v", got)
	}
}

func TestBuild_AbortPolicy(t *testing.T) {
	src := threeArticles()
	src.Put("broken.md", testutil.Doc{Content: "no separator here", Commits: testutil.Commits(base, "alice")})

	_, err := testBuilder(src, BuilderOptions{OnError: PolicyAbort}).Build(context.Background())
	if !errors.Is(err, apperr.ErrMalformedDocument) {
		t.Fatalf("err = %v, want ErrMalformedDocument", err)
	}
	var docErr *apperr.DocumentError
	if !errors.As(err, &docErr) || docErr.Path != "articles/broken.md" {
		t.Errorf("document error = %+v", docErr)
	}
}

func TestBuild_RemoteErrorsAreFatal(t *testing.T) {
	src := threeArticles()
	src.Fail("b.md", testutil.ErrBoom)

	_, err := testBuilder(src, BuilderOptions{}).Build(context.Background())
	if !errors.Is(err, apperr.ErrRemoteSource) || !errors.Is(err, testutil.ErrBoom) {
		t.Fatalf("err = %v", err)
	}

	src = threeArticles()
	src.Fail("", testutil.ErrBoom)
	_, err = testBuilder(src, BuilderOptions{}).Build(context.Background())
	var rse *apperr.RemoteSourceError
	if !errors.As(err, &rse) || rse.Op != source.OpList {
		t.Fatalf("err = %v, want listing failure", err)
	}
}

func TestBuild_ExtensionFilter(t *testing.T) {
	src := threeArticles()
	put(src, "notes.txt", "title: Notes")

	c := mustBuild(t, testBuilder(src, BuilderOptions{}))
	if c.Len() != 3 {
		t.Errorf("len = %d, want 3", c.Len())
	}
	if n := src.FileCalls.Load(); n != 3 {
		t.Errorf("file calls = %d, filtered entries must not be fetched", n)
	}

	c = mustBuild(t, testBuilder(src, BuilderOptions{Extension: ".txt"}))
	if got := testutil.Slugs(c.All()); !reflect.DeepEqual(got, []string{"notes"}) {
		t.Errorf("slugs = %v", got)
	}
}

func TestBuild_PreservesOrderWithManyWorkers(t *testing.T) {
	src := testutil.NewFakeSource("articles")
	var want []string
	for i := 0; i < 40; i++ {
		slug := fmt.Sprintf("post-%02d", i)
		put(src, slug+".md", "title: "+slug)
		want = append(want, slug)
	}

	c := mustBuild(t, testBuilder(src, BuilderOptions{Workers: 8, RequestsPerSecond: 1000}))
	if got := testutil.Slugs(c.All()); !reflect.DeepEqual(got, want) {
		t.Errorf("slugs = %v", got)
	}
}

func TestBuild_TimeoutCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testBuilder(threeArticles(), BuilderOptions{RequestsPerSecond: 1}).Build(ctx)
	if err == nil {
		t.Fatal("expected error on cancelled context")
	}
}

func TestBuild_PublishedView(t *testing.T) {
	src := threeArticles()
	put(src, "future.md", "title: Future\npublish: 2999-01-01")
	put(src, "past.md", "title: Past\npublish: 2001-01-01 10:00:00")

	c := mustBuild(t, testBuilder(src, BuilderOptions{}))
	published := testutil.Slugs(c.Published(time.Now()))
	if !reflect.DeepEqual(published, []string{"a", "b", "c", "past"}) {
		t.Errorf("published = %v", published)
	}
	if _, ok := c.BySlug("future"); !ok {
		t.Error("future article missing from unfiltered lookup")
	}
	if c.Len() != 5 {
		t.Errorf("len = %d", c.Len())
	}
}

func TestBuild_IdempotentWithWarmCache(t *testing.T) {
	src := threeArticles()
	cached := source.NewCached(src, testutil.TestSQLiteCache(t), time.Hour, nil)
	b := testBuilder(cached, BuilderOptions{})

	first := mustBuild(t, b)
	calls := src.FileCalls.Load() + src.CommitsCalls.Load() + src.ListCalls.Load()
	second := mustBuild(t, b)

	if got := src.FileCalls.Load() + src.CommitsCalls.Load() + src.ListCalls.Load(); got != calls {
		t.Errorf("warm build hit the source: %d calls, want %d", got, calls)
	}
	if !reflect.DeepEqual(shape(first), shape(second)) {
		t.Errorf("builds differ:\n%v\n%v", shape(first), shape(second))
	}
}

// shape captures slugs, tags and relationships of a collection.
func shape(c *Collection) []string {
	var out []string
	for _, a := range c.All() {
		prev, _ := c.Previous(a)
		next, _ := c.Next(a)
		out = append(out, fmt.Sprintf("%s %v prev=%s next=%s related=%v",
			a.Slug, a.Tags, slugOf(prev), slugOf(next), testutil.Slugs(c.Related(a))))
	}
	return out
}

func slugOf(a *models.Article) string {
	if a == nil {
		return "-"
	}
	return a.Slug
}

func TestBuild_DuplicateSlugs(t *testing.T) {
	src := testutil.NewFakeSource("articles")
	put(src, "one.md", "title: Hello\ntags: [first]")
	put(src, "two.md", "title: Other\nslug: hello")

	c := mustBuild(t, testBuilder(src, BuilderOptions{}))
	a, ok := c.BySlug("hello")
	if !ok || a.Path != "articles/one.md" {
		t.Errorf("BySlug should return the first match, got %+v", a)
	}

	_, err := testBuilder(src, BuilderOptions{UniqueSlugs: true}).Build(context.Background())
	if !errors.Is(err, apperr.ErrDuplicateSlug) {
		t.Errorf("err = %v, want ErrDuplicateSlug", err)
	}
}

func TestCollection_TagQueries(t *testing.T) {
	c := mustBuild(t, testBuilder(threeArticles(), BuilderOptions{}))

	if got := testutil.Slugs(c.ByTag("y")); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("ByTag(y) = %v", got)
	}
	if got := testutil.Slugs(c.ByTags("x", "w")); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("ByTags(x, w) = %v", got)
	}
	if got := c.ByTag("missing"); got == nil || len(got) != 0 {
		t.Errorf("ByTag(missing) = %v, want empty", got)
	}
	if _, ok := c.BySlug("missing"); ok {
		t.Error("BySlug(missing) found something")
	}

	want := []TagCount{{"x", 1}, {"y", 2}, {"z", 1}, {"w", 1}}
	if got := c.Tags(); !reflect.DeepEqual(got, want) {
		t.Errorf("Tags() = %v", got)
	}
}

func TestTagIndex_FirstSeenOrder(t *testing.T) {
	src := testutil.NewFakeSource("articles")
	put(src, "one.md", "title: One\ntags: [a]")
	put(src, "two.md", "title: Two\ntags: [a, a]")
	put(src, "three.md", "title: Three\ntags: [b]")

	c := mustBuild(t, testBuilder(src, BuilderOptions{}))
	idx := NewTagIndex(c.All())
	if idx.Count("a") != 2 || idx.Count("b") != 1 {
		t.Errorf("counts a=%d b=%d", idx.Count("a"), idx.Count("b"))
	}
	if got := idx.Counts(); !reflect.DeepEqual(got, []TagCount{{"a", 2}, {"b", 1}}) {
		t.Errorf("Counts() = %v", got)
	}
}

func TestCollection_NewAndUpdated(t *testing.T) {
	src := testutil.NewFakeSource("articles")
	src.Put("old.md", testutil.Doc{
		Content: testutil.Article("title: Old", "old"),
		Commits: testutil.Commits(base, "alice", "bob", "carol"),
	})
	src.Put("fresh.md", testutil.Doc{
		Content: testutil.Article("title: Fresh", "fresh"),
		Commits: testutil.Commits(base.AddDate(0, 1, 0), "alice"),
	})
	src.Put("edited.md", testutil.Doc{
		Content: testutil.Article("title: Edited", "edited"),
		Commits: testutil.Commits(base.AddDate(0, 0, 5), "bob", "alice"),
	})

	c := mustBuild(t, testBuilder(src, BuilderOptions{}))
	if got := testutil.Slugs(c.NewArticles()); !reflect.DeepEqual(got, []string{"fresh", "edited", "old"}) {
		t.Errorf("NewArticles = %v", got)
	}
	if got := testutil.Slugs(c.UpdatedArticles()); !reflect.DeepEqual(got, []string{"edited", "old"}) {
		t.Errorf("UpdatedArticles = %v", got)
	}

	old, _ := c.BySlug("old")
	if got := len(old.Contributors()); got != 3 {
		t.Errorf("contributors = %d", got)
	}
	if old.HistoryURL != "https://github.com/jrean/blog/commits/master/articles/old.md" {
		t.Errorf("history url = %q", old.HistoryURL)
	}
}

func TestFactory_WrapsDocumentErrors(t *testing.T) {
	f := NewFactory(nil, models.ArticleOptions{})
	_, err := f.Make(models.RemoteFile{Path: "articles/x.md", Content: "!!!", Encoding: "base64"}, testutil.Commits(base, "alice"))
	var docErr *apperr.DocumentError
	if !errors.As(err, &docErr) || docErr.Path != "articles/x.md" {
		t.Fatalf("err = %v", err)
	}
	if !apperr.IsDocumentFault(err) {
		t.Error("decode failure should be a document fault")
	}
}

func TestBuild_IdenticalContentThroughCache(t *testing.T) {
	src := testutil.NewFakeSource("articles")
	doc := testutil.Article("title: Twin", "Same body.")
	src.Put("a.md", testutil.Doc{Content: doc, Commits: testutil.Commits(base, "alice")})
	src.Put("copy.md", testutil.Doc{Content: doc, Commits: testutil.Commits(base, "bob")})
	cached := source.NewCached(src, testutil.TestMemoryCache(t), time.Hour, nil)

	_, err := testBuilder(cached, BuilderOptions{UniqueSlugs: true}).Build(context.Background())
	if !errors.Is(err, apperr.ErrDuplicateSlug) {
		t.Fatalf("err = %v, want ErrDuplicateSlug", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "articles/a.md") || !strings.Contains(msg, "articles/copy.md") {
		t.Errorf("err = %q, want both paths", msg)
	}

	c := mustBuild(t, testBuilder(cached, BuilderOptions{}))
	paths := map[string]string{}
	for _, a := range c.All() {
		if cs := a.Contributors(); len(cs) > 0 {
			paths[a.Path] = cs[0].Name
		}
	}
	if len(paths) == 0 {
		t.Fatal("no articles built")
	}
	for p, who := range paths {
		if (p == "articles/copy.md") != (who == "bob") {
			t.Errorf("%s credited to %s", p, who)
		}
	}
}
