package enrichment

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenticos/internal/types"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>Search results</title>
  <link>https://news.example.com</link>
  <description>results</description>
  <item>
    <title>Fusion milestone reached</title>
    <link>https://www.science.example.org/fusion</link>
    <description>&lt;p&gt;Researchers report &lt;b&gt;net gain&lt;/b&gt; again.&lt;/p&gt;</description>
    <pubDate>Mon, 02 Jun 2025 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Second story</title>
    <link>https://other.example.net/two</link>
    <dc:creator>Jane Reporter</dc:creator>
    <description>Plain text</description>
  </item>
  <item>
    <title>Third story</title>
    <link>https://other.example.net/three</link>
  </item>
</channel>
</rss>`

const emptyRSS = `<?xml version="1.0"?><rss version="2.0"><channel><title>none</title></channel></rss>`

func feedServer(t *testing.T, body string, status int, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFeedEnricher_ParsesItems(t *testing.T) {
	srv := feedServer(t, rssFixture, http.StatusOK, nil)
	e := NewFeedEnricher(FeedConfig{SearchURL: srv.URL + "/rss?q=%s", Limit: 2})

	out := e.Enrich(context.Background(), "fusion power")
	require.NoError(t, out.Err)
	require.False(t, out.Failed())
	require.Len(t, out.Result.Items, 2)
	assert.Equal(t, 2, out.Result.TotalResults)
	assert.Equal(t, "fusion power", out.Result.Query)

	first := out.Result.Items[0]
	assert.Equal(t, "Fusion milestone reached", first.Title)
	assert.Equal(t, "Researchers report net gain again.", first.Description)
	assert.Equal(t, "science.example.org", first.Source)
	assert.Equal(t, 2025, first.PublishedAt.Year())

	assert.Equal(t, "Jane Reporter", out.Result.Items[1].Source)
}

func TestFeedEnricher_EscapesQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		fmt.Fprint(w, rssFixture)
	}))
	defer srv.Close()

	e := NewFeedEnricher(FeedConfig{SearchURL: srv.URL + "/?q=%s"})
	out := e.Enrich(context.Background(), "a&b c")
	require.NoError(t, out.Err)
	assert.Equal(t, "a&b c", gotQuery)
}

func TestFeedEnricher_CachesSuccess(t *testing.T) {
	var hits atomic.Int32
	srv := feedServer(t, rssFixture, http.StatusOK, &hits)
	e := NewFeedEnricher(FeedConfig{SearchURL: srv.URL + "/?q=%s"})

	require.False(t, e.Enrich(context.Background(), "Fusion  Power").Failed())
	require.False(t, e.Enrich(context.Background(), "fusion power").Failed())
	assert.Equal(t, int32(1), hits.Load(), "normalized query should hit the cache")

	e.Purge()
	require.False(t, e.Enrich(context.Background(), "fusion power").Failed())
	assert.Equal(t, int32(2), hits.Load())
}

func TestFeedEnricher_FailuresNotCached(t *testing.T) {
	var hits atomic.Int32
	srv := feedServer(t, "oops", http.StatusInternalServerError, &hits)
	e := NewFeedEnricher(FeedConfig{SearchURL: srv.URL + "/?q=%s"})

	out := e.Enrich(context.Background(), "q")
	assert.Error(t, out.Err)
	assert.True(t, out.Failed())

	e.Enrich(context.Background(), "q")
	assert.Equal(t, int32(2), hits.Load())
}

func TestFeedEnricher_EmptyFeed(t *testing.T) {
	srv := feedServer(t, emptyRSS, http.StatusOK, nil)
	e := NewFeedEnricher(FeedConfig{SearchURL: srv.URL + "/?q=%s"})

	out := e.Enrich(context.Background(), "nothing")
	assert.ErrorIs(t, out.Err, ErrNoResults)
	assert.True(t, out.Failed())
}

func TestFeedEnricher_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	e := NewFeedEnricher(FeedConfig{SearchURL: srv.URL + "/?q=%s", Timeout: 50 * time.Millisecond})
	out := e.Enrich(context.Background(), "slow")
	assert.Error(t, out.Err)
	assert.True(t, out.Failed())
}

func TestFeedEnricher_EmptyQuery(t *testing.T) {
	e := NewFeedEnricher(FeedConfig{SearchURL: "http://127.0.0.1:1/?q=%s"})
	out := e.Enrich(context.Background(), "   ")
	assert.Error(t, out.Err)
}

func TestKnowledgeBase(t *testing.T) {
	fixed := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	k := NewKnowledgeBase()
	k.now = func() time.Time { return fixed }

	out := k.Enrich(context.Background(), "quantum computing")
	require.NoError(t, out.Err)
	require.Len(t, out.Result.Items, 3)
	assert.Equal(t, "Understanding quantum computing: A Comprehensive Overview", out.Result.Items[0].Title)
	assert.Equal(t, "Latest Developments in quantum computing", out.Result.Items[1].Title)
	assert.Equal(t, "quantum computing: Practical Applications and Use Cases", out.Result.Items[2].Title)
	assert.Equal(t, "https://example.com/latest/quantum+computing", out.Result.Items[1].URL)
	assert.Equal(t, fixed.Add(-2*time.Hour), out.Result.Items[2].PublishedAt)
}

func TestKnowledgeBase_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := NewKnowledgeBase().Enrich(ctx, "x")
	assert.ErrorIs(t, out.Err, context.Canceled)
}

func TestDisabled(t *testing.T) {
	out := Disabled{}.Enrich(context.Background(), "x")
	assert.ErrorIs(t, out.Err, ErrDisabled)
	assert.True(t, out.Failed())
}

func TestOutcome_FailedOnEmptyResult(t *testing.T) {
	assert.True(t, Outcome{}.Failed())
	assert.False(t, Outcome{Result: types.SearchResult{Items: []types.SearchItem{{Title: "a"}}}}.Failed())
}

func TestSafe_RecoversPanic(t *testing.T) {
	e := Safe(Func(func(context.Context, string) Outcome { panic("boom") }))
	out := e.Enrich(context.Background(), "q")
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "boom")
}

func TestHTMLText(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain   text\n here", "plain text here"},
		{"<p>a <b>b</b></p><script>x()</script>", "a b"},
		{"Tom &amp; Jerry", "Tom & Jerry"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, htmlText(tt.in))
	}
}
