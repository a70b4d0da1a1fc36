package enrichment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"agenticos/internal/logging"
	"agenticos/internal/types"
)

// maxDescription bounds a single item's description in runes.
const maxDescription = 300

// FeedConfig configures a FeedEnricher.
type FeedConfig struct {
	// SearchURL contains one %s, replaced by the escaped query.
	SearchURL string
	Limit     int
	CacheSize int
	CacheTTL  time.Duration
	Timeout   time.Duration
	UserAgent string
	// HTTPClient overrides the client gofeed uses.
	HTTPClient *http.Client
}

// FeedEnricher searches an RSS or Atom endpoint for the query.
// Successful outcomes are cached per normalized query; failures never are.
type FeedEnricher struct {
	cfg   FeedConfig
	cache *expirable.LRU[string, types.SearchResult]
	now   func() time.Time
}

// NewFeedEnricher creates a feed-backed enricher.
func NewFeedEnricher(cfg FeedConfig) *FeedEnricher {
	if cfg.Limit <= 0 {
		cfg.Limit = 5
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 128
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &FeedEnricher{
		cfg:   cfg,
		cache: expirable.NewLRU[string, types.SearchResult](cfg.CacheSize, nil, cfg.CacheTTL),
		now:   time.Now,
	}
}

// Enrich implements Enricher. One fetch, no retries.
func (f *FeedEnricher) Enrich(ctx context.Context, query string) Outcome {
	key := normalizeQuery(query)
	empty := types.SearchResult{Query: query, SearchedAt: f.now()}
	if key == "" {
		return Outcome{Result: empty, Err: errors.New("empty query")}
	}

	if cached, ok := f.cache.Get(key); ok {
		logging.EnrichmentDebug("cache hit for %q (%d items)", key, len(cached.Items))
		cached.Query = query
		return Outcome{Result: cached}
	}

	timer := logging.StartTimer(logging.CategoryEnrichment, "feed search")
	defer timer.StopWithThreshold(2 * time.Second)

	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	feedURL := strings.Replace(f.cfg.SearchURL, "%s", url.QueryEscape(query), 1)
	parser := gofeed.NewParser()
	parser.UserAgent = f.cfg.UserAgent
	if f.cfg.HTTPClient != nil {
		parser.Client = f.cfg.HTTPClient
	}

	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		logging.EnrichmentWarn("feed search failed for %q: %v", query, err)
		return Outcome{Result: empty, Err: fmt.Errorf("feed search: %w", err)}
	}

	result := types.SearchResult{Query: query, SearchedAt: f.now()}
	for _, item := range feed.Items {
		if len(result.Items) >= f.cfg.Limit {
			break
		}
		if item == nil || strings.TrimSpace(item.Title) == "" {
			continue
		}
		result.Items = append(result.Items, toSearchItem(item))
	}
	result.TotalResults = len(result.Items)

	if len(result.Items) == 0 {
		logging.EnrichmentWarn("feed search for %q returned no items", query)
		return Outcome{Result: result, Err: ErrNoResults}
	}

	f.cache.Add(key, result)
	logging.Enrichment("feed search for %q returned %d items", query, len(result.Items))
	return Outcome{Result: result}
}

// Purge drops every cached outcome.
func (f *FeedEnricher) Purge() {
	f.cache.Purge()
}

func toSearchItem(item *gofeed.Item) types.SearchItem {
	desc := item.Description
	if strings.TrimSpace(desc) == "" {
		desc = item.Content
	}
	return types.SearchItem{
		Title:       strings.TrimSpace(item.Title),
		Description: truncate(htmlText(desc), maxDescription),
		Source:      itemSource(item),
		PublishedAt: itemTime(item),
		URL:         strings.TrimSpace(item.Link),
	}
}

func itemSource(item *gofeed.Item) string {
	for _, a := range item.Authors {
		if a != nil && strings.TrimSpace(a.Name) != "" {
			return strings.TrimSpace(a.Name)
		}
	}
	if u, err := url.Parse(item.Link); err == nil && u.Host != "" {
		return strings.TrimPrefix(u.Hostname(), "www.")
	}
	return "Unknown"
}

func itemTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

// htmlText returns the visible text of an html fragment with whitespace collapsed.
func htmlText(fragment string) string {
	if !strings.Contains(fragment, "<") && !strings.Contains(fragment, "&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(strings.Fields(b.String()), " ")
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:max])) + "..."
}
