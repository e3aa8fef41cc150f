package types

// Batch operation names accepted by the bulk-operations endpoint.
const (
	OpDelete     = "delete"
	OpRetag      = "retag"
	OpArchive    = "archive"
	OpUnarchive  = "unarchive"
	OpFavorite   = "favorite"
	OpUnfavorite = "unfavorite"
	OpResnapshot = "resnapshot"
)

// BatchParams carries the operation-specific knobs for a bulk request.
type BatchParams struct {
	Tags      []string        `json:"tags,omitempty"`
	MergeTags bool            `json:"merge_tags,omitempty"`
	Format    Format          `json:"format,omitempty"`
	Styling   *StylingOptions `json:"styling,omitempty"`
}

// BatchResult summarizes a bulk run. Every per-item failure is enumerated in
// Errors; the counts always satisfy Successful+Failed == total submitted.
type BatchResult struct {
	Operation  string   `json:"operation"`
	Total      int      `json:"total_articles"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors"`
}

// ImportResult summarizes a feed import run.
type ImportResult struct {
	FeedURL  string   `json:"feed_url"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"` // duplicates of already-saved articles
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors"`
}
