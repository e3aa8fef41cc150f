package types

import (
	"time"

	"github.com/google/uuid"
)

// Article is the persistent saved-article record. ID and URL are fixed at
// creation; every other mutation bumps UpdatedAt.
type Article struct {
	ID                 string            `json:"id"`
	UserID             string            `json:"user_id"`
	URL                string            `json:"url"`
	Title              string            `json:"title"`
	Author             string            `json:"author,omitempty"`
	Content            string            `json:"content"`
	Excerpt            string            `json:"excerpt,omitempty"`
	ImageURL           string            `json:"image_url,omitempty"`
	Tags               []string          `json:"tags"`
	IsFavorite         bool              `json:"is_favorite"`
	IsArchived         bool              `json:"is_archived"`
	ReadProgress       int               `json:"read_progress"`
	WordCount          int               `json:"word_count"`
	ReadingTimeMinutes int               `json:"reading_time_minutes"`
	SnapshotLinks      map[string]string `json:"snapshot_links,omitempty"`
	StorageProvider    string            `json:"storage_provider,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// HasTag reports tag membership; order is display-only.
func (a *Article) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Touch bumps UpdatedAt, keeping it strictly monotonic even when the clock
// has not advanced between mutations.
func (a *Article) Touch() {
	now := time.Now().UTC()
	if !now.After(a.UpdatedAt) {
		now = a.UpdatedAt.Add(time.Millisecond)
	}
	a.UpdatedAt = now
}

// NewArticleID returns a fresh article identifier.
func NewArticleID() string {
	return uuid.NewString()
}

// ExtractedContent is the transient result of running content extraction on a
// URL. It is consumed immediately to populate an Article and never persisted.
type ExtractedContent struct {
	Title              string     `json:"title"`
	Author             string     `json:"author,omitempty"`
	Content            string     `json:"content"`
	Excerpt            string     `json:"excerpt,omitempty"`
	PublishedDate      *time.Time `json:"published_date,omitempty"`
	SiteName           string     `json:"site_name,omitempty"`
	ImageURL           string     `json:"image_url,omitempty"`
	WordCount          int        `json:"word_count"`
	ReadingTimeMinutes int        `json:"reading_time_minutes"`
	ExtractionMethod   string     `json:"extraction_method"`
	ExtractionError    string     `json:"extraction_error,omitempty"`
}

// Extraction method values.
const (
	MethodReadability = "readability"
	MethodBasicHTML   = "basic-html"
	MethodFallback    = "fallback"
)

// StorageConnection is a per-user cloud-storage link. Token material lives
// encrypted under its own key and is only decrypted at upload time.
type StorageConnection struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Provider   string    `json:"provider"`
	Active     bool      `json:"active"`
	QuotaUsed  int64     `json:"quota_used"`
	QuotaTotal int64     `json:"quota_total"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FolderStructure is the user's folder-organization preference for cloud
// uploads.
type FolderStructure struct {
	Strategy       string `json:"strategy"` // flat | date | domain | tags | custom
	DateFormat     string `json:"date_format,omitempty"`
	SeparateByTag  bool   `json:"separate_by_tag,omitempty"`
	CustomTemplate string `json:"custom_template,omitempty"`
}

// UserSettings holds the per-user preferences the pipeline reads.
type UserSettings struct {
	AutoSnapshot    bool             `json:"auto_snapshot"`
	SnapshotFormat  string           `json:"snapshot_format,omitempty"`
	UploadToCloud   bool             `json:"upload_to_cloud"`
	FolderStructure *FolderStructure `json:"folder_structure,omitempty"`
}
