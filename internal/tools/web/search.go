package web

import (
	"context"
	"strings"
	"time"

	"advisor/internal/adapters/tavily"
	"advisor/internal/tools/shared"
	"advisor/pkg/errors"
)

const (
	SearchName        = "search_tool"
	SearchDescription = "Search the web for current market information. " +
		"Returns ranked results with title, url, a content snippet and, when available, the publication date."

	defaultMaxResults = 5
)

// SearchArgs is the search tool's input
type SearchArgs struct {
	Query string `json:"query" jsonschema:"the search query"`
	Topic string `json:"topic,omitempty" jsonschema:"optional search category: general, news or finance"`
}

// NewSearchTool returns a tool backed by the Tavily search endpoint
func NewSearchTool(deps shared.Deps) *shared.FunctionTool[SearchArgs] {
	maxResults := deps.SearchMaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	fn := func(ctx context.Context, args SearchArgs) (map[string]any, error) {
		if !deps.HasWeb() {
			return nil, errors.Wrap(errors.ErrUnavailable, "search_tool: web client not configured")
		}

		query := strings.TrimSpace(args.Query)
		if query == "" {
			return nil, errors.NewValidationError("query", "must not be empty", args.Query)
		}

		topic := strings.ToLower(strings.TrimSpace(args.Topic))
		switch topic {
		case "", "general", "news", "finance":
		default:
			return nil, errors.NewValidationError("topic", "must be general, news or finance", args.Topic)
		}

		resp, err := deps.Web.Search(ctx, tavily.SearchRequest{
			Query:      query,
			MaxResults: maxResults,
			Topic:      topic,
		})
		if err != nil {
			return nil, errors.Wrap(err, "search_tool")
		}

		results := make([]map[string]any, 0, len(resp.Results))
		for _, r := range resp.Results {
			item := map[string]any{
				"title":   r.Title,
				"url":     r.URL,
				"content": r.Content,
				"score":   r.Score,
			}
			if r.PublishedDate != "" {
				item["published_date"] = r.PublishedDate
			}
			results = append(results, item)
		}

		out := map[string]any{
			"query":   query,
			"results": results,
		}
		if resp.Answer != "" {
			out["answer"] = resp.Answer
		}
		return out, nil
	}

	return shared.NewToolBuilder(SearchName, SearchDescription, fn, deps).
		WithRetry(2, time.Second).
		WithTimeout(45 * time.Second).
		WithStats().
		Build()
}
