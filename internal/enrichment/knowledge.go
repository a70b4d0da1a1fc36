package enrichment

import (
	"context"
	"net/url"
	"time"

	"agenticos/internal/types"
)

// KnowledgeBaseEnricher is an offline source. It produces three templated
// entries about the query and never touches the network.
type KnowledgeBaseEnricher struct {
	now func() time.Time
}

// NewKnowledgeBase creates the offline enricher.
func NewKnowledgeBase() *KnowledgeBaseEnricher {
	return &KnowledgeBaseEnricher{now: time.Now}
}

// Enrich implements Enricher.
func (k *KnowledgeBaseEnricher) Enrich(ctx context.Context, query string) Outcome {
	now := k.now()
	result := types.SearchResult{Query: query, SearchedAt: now}
	if err := ctx.Err(); err != nil {
		return Outcome{Result: result, Err: err}
	}

	escaped := url.QueryEscape(query)
	result.Items = []types.SearchItem{
		{
			Title:       "Understanding " + query + ": A Comprehensive Overview",
			Description: "Learn about " + query + " with this detailed analysis covering key concepts, recent developments, and expert insights.",
			Source:      "Knowledge Base",
			PublishedAt: now,
			URL:         "https://example.com/search/" + escaped,
		},
		{
			Title:       "Latest Developments in " + query,
			Description: "Recent updates and breakthrough discoveries related to " + query + " from leading researchers and industry experts.",
			Source:      "Research Today",
			PublishedAt: now.Add(-time.Hour),
			URL:         "https://example.com/latest/" + escaped,
		},
		{
			Title:       query + ": Practical Applications and Use Cases",
			Description: "Explore real-world applications of " + query + " and how it's being implemented across various industries.",
			Source:      "Industry Insights",
			PublishedAt: now.Add(-2 * time.Hour),
			URL:         "https://example.com/applications/" + escaped,
		},
	}
	result.TotalResults = len(result.Items)
	return Outcome{Result: result}
}
