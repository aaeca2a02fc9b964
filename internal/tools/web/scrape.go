package web

import (
	"context"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"advisor/internal/tools/shared"
	"advisor/pkg/errors"
)

const (
	ScrapeName        = "scrape_tool"
	ScrapeDescription = "Extract the content of web pages. " +
		"Input is a list of absolute http(s) URLs; returns the raw text of each page."

	maxURLs = 10
	// pages are cut to keep tool output inside the model's context budget
	maxContentBytes = 20000
)

// ScrapeArgs is the scrape tool's input
type ScrapeArgs struct {
	URLs []string `json:"urls" jsonschema:"absolute http or https URLs of the pages to extract"`
}

// NewScrapeTool returns a tool backed by the Tavily extract endpoint
func NewScrapeTool(deps shared.Deps) *shared.FunctionTool[ScrapeArgs] {
	fn := func(ctx context.Context, args ScrapeArgs) (map[string]any, error) {
		if !deps.HasWeb() {
			return nil, errors.Wrap(errors.ErrUnavailable, "scrape_tool: web client not configured")
		}

		urls, err := normalizeURLs(args.URLs)
		if err != nil {
			return nil, err
		}

		resp, err := deps.Web.Extract(ctx, urls)
		if err != nil {
			return nil, errors.Wrap(err, "scrape_tool")
		}

		pages := make([]map[string]any, 0, len(resp.Results))
		for _, r := range resp.Results {
			content, truncated := truncate(r.RawContent, maxContentBytes)
			pages = append(pages, map[string]any{
				"url":       r.URL,
				"content":   content,
				"size":      humanize.Bytes(uint64(len(r.RawContent))),
				"truncated": truncated,
			})
		}

		failed := make([]map[string]any, 0, len(resp.FailedResults))
		for _, f := range resp.FailedResults {
			failed = append(failed, map[string]any{"url": f.URL, "error": f.Error})
		}

		return map[string]any{
			"results": pages,
			"failed":  failed,
		}, nil
	}

	return shared.NewToolBuilder(ScrapeName, ScrapeDescription, fn, deps).
		WithRetry(2, time.Second).
		WithTimeout(60 * time.Second).
		WithStats().
		Build()
}

func normalizeURLs(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, errors.NewValidationError("urls", "at least one url is required", raw)
	}
	if len(raw) > maxURLs {
		return nil, errors.NewValidationError("urls", "too many urls", len(raw))
	}

	seen := make(map[string]struct{}, len(raw))
	urls := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		u, err := url.Parse(s)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, errors.NewValidationError("urls", "not an absolute http(s) url", s)
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		urls = append(urls, s)
	}
	return urls, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) (string, bool) {
	if len(s) <= n {
		return s, false
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}
