package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Params configures a search query. UserID is mandatory; a query without a
// user scope would leak other users' highlights.
type Params struct {
	UserID string
	Query  string
	Types  []string // Document types to include (empty = all)
	Tags   []string // Filter by exact tag slugs

	Limit  int
	Offset int
}

// DefaultParams returns sensible defaults.
func DefaultParams(userID, q string) Params {
	return Params{
		UserID: userID,
		Query:  q,
		Limit:  20,
	}
}

// Result represents the search results.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"took_ms"`
	Hits   []Hit  `json:"hits"`
}

// Hit represents a single search result.
type Hit struct {
	ID         string            `json:"id"`
	Type       DocType           `json:"type"`
	Score      float64           `json:"score"`
	Content    string            `json:"content,omitempty"`
	Title      string            `json:"title,omitempty"`
	Author     string            `json:"author,omitempty"`
	SourceID   string            `json:"source_id,omitempty"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// Search executes a user-scoped search query.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	if params.UserID == "" {
		return nil, fmt.Errorf("search requires a user scope")
	}
	if params.Limit <= 0 {
		params.Limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	searchQuery := buildSearchQuery(params)
	searchRequest := bleve.NewSearchRequestOptions(searchQuery, params.Limit, params.Offset, false)
	searchRequest.SortBy([]string{"-_score"})

	searchRequest.Highlight = bleve.NewHighlight()
	searchRequest.Highlight.AddField("content")
	searchRequest.Highlight.AddField("title")
	searchRequest.Highlight.AddField("author")

	searchRequest.Fields = []string{
		"id", "type", "content", "title", "author", "source_id",
	}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		h := Hit{
			ID:    hit.ID,
			Score: hit.Score,
		}

		if t, ok := hit.Fields["type"].(string); ok {
			h.Type = DocType(t)
		}
		if c, ok := hit.Fields["content"].(string); ok {
			h.Content = c
		}
		if ti, ok := hit.Fields["title"].(string); ok {
			h.Title = ti
		}
		if a, ok := hit.Fields["author"].(string); ok {
			h.Author = a
		}
		if sid, ok := hit.Fields["source_id"].(string); ok {
			h.SourceID = sid
		}

		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, h)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params. The user scope is
// a mandatory conjunct; everything else narrows within it.
func buildSearchQuery(params Params) query.Query {
	userQuery := bleve.NewTermQuery(params.UserID)
	userQuery.SetField("user_id")

	queries := []query.Query{userQuery}

	if params.Query != "" {
		textQueries := []query.Query{}

		// Highlight content carries the highest boost: users mostly hunt
		// for a phrase they remember saving.
		contentMatch := bleve.NewMatchQuery(params.Query)
		contentMatch.SetField("content")
		contentMatch.SetBoost(3.0)
		textQueries = append(textQueries, contentMatch)

		titleMatch := bleve.NewMatchQuery(params.Query)
		titleMatch.SetField("title")
		titleMatch.SetBoost(2.0)
		textQueries = append(textQueries, titleMatch)

		authorMatch := bleve.NewMatchQuery(params.Query)
		authorMatch.SetField("author")
		authorMatch.SetBoost(1.5)
		textQueries = append(textQueries, authorMatch)

		// Fuzzy matching for typo tolerance on titles.
		fuzzyQuery := bleve.NewFuzzyQuery(params.Query)
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("title")
		fuzzyQuery.SetBoost(0.8)
		textQueries = append(textQueries, fuzzyQuery)

		// Prefix query for incremental typing (minimum 2 chars).
		if len(params.Query) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(params.Query))
			prefixQuery.SetField("title")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if len(params.Types) > 0 {
		typeQueries := make([]query.Query, len(params.Types))
		for i, t := range params.Types {
			tq := bleve.NewTermQuery(t)
			tq.SetField("type")
			typeQueries[i] = tq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(typeQueries...))
	}

	if len(params.Tags) > 0 {
		tagQueries := make([]query.Query, len(params.Tags))
		for i, slug := range params.Tags {
			tq := bleve.NewTermQuery(slug)
			tq.SetField("tags")
			tagQueries[i] = tq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(tagQueries...))
	}

	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}
