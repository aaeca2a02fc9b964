package shared

import (
	"context"

	"advisor/internal/adapters/tavily"
	"advisor/pkg/logger"
)

// WebClient is the search and extraction backend used by the web tools
type WebClient interface {
	Search(ctx context.Context, req tavily.SearchRequest) (*tavily.SearchResponse, error)
	Extract(ctx context.Context, urls []string) (*tavily.ExtractResponse, error)
}

// Deps bundles dependencies required by concrete tool implementations
type Deps struct {
	Web              WebClient
	SearchMaxResults int
	Log              *logger.Logger
}

// HasWeb reports whether a web client is wired
func (d Deps) HasWeb() bool {
	return d.Web != nil
}
