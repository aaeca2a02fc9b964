package tavily

// SearchRequest is the body of POST /search
type SearchRequest struct {
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results,omitempty"`
	SearchDepth   string `json:"search_depth,omitempty"` // basic|advanced
	Topic         string `json:"topic,omitempty"`        // general|news|finance
	IncludeAnswer bool   `json:"include_answer,omitempty"`
}

// SearchResult is a single ranked hit
type SearchResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date,omitempty"`
}

// SearchResponse is the body returned by POST /search
type SearchResponse struct {
	Query        string         `json:"query"`
	Answer       string         `json:"answer,omitempty"`
	Results      []SearchResult `json:"results"`
	ResponseTime float64        `json:"response_time"`
}

// ExtractRequest is the body of POST /extract
type ExtractRequest struct {
	URLs         []string `json:"urls"`
	ExtractDepth string   `json:"extract_depth,omitempty"`
}

// ExtractResult holds the raw content of one page
type ExtractResult struct {
	URL        string `json:"url"`
	RawContent string `json:"raw_content"`
}

// FailedResult reports a URL that could not be extracted
type FailedResult struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// ExtractResponse is the body returned by POST /extract
type ExtractResponse struct {
	Results       []ExtractResult `json:"results"`
	FailedResults []FailedResult  `json:"failed_results"`
	ResponseTime  float64         `json:"response_time"`
}

type errorResponse struct {
	Detail struct {
		Error string `json:"error"`
	} `json:"detail"`
}
