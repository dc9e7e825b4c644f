package models

import "time"

// Contributing mode labels on a result.
const (
	ContribText   = "text"
	ContribVisual = "visual"
	ContribBoth   = "text+visual"
)

// SearchResult is one ranked hit, carrying everything a consumer needs to render it.
type SearchResult struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	WindowTitle string    `json:"window_title"`
	TextSnippet string    `json:"text_snippet"`
	Thumbnail   string    `json:"thumbnail_ref"`
	Score       float64   `json:"score"`
	Mode        string    `json:"mode"`
	TextScore   float64   `json:"text_score"`
	VisualScore float64   `json:"visual_score"`
	Rank        int       `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	Query     string          `json:"query"`
	Mode      SearchMode      `json:"mode"`
	QueryTime int64           `json:"query_time_ms"`
}
