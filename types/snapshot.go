package types

import (
	"fmt"
	"strings"
	"time"
)

// Format identifies a snapshot output format.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatHTML     Format = "html"
	FormatEPUB     Format = "epub"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ParseFormat validates a user-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPDF, FormatHTML, FormatEPUB, FormatMarkdown, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("unknown snapshot format %q", s)
	}
}

// Extension returns the filename extension for the format.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatText:
		return "txt"
	default:
		return string(f)
	}
}

// MimeType returns the content type attached to the generated snapshot.
func (f Format) MimeType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatHTML:
		return "text/html"
	case FormatEPUB:
		return "application/epub+zip"
	case FormatMarkdown:
		return "text/markdown"
	default:
		return "text/plain"
	}
}

// NeedsRenderer reports whether generating the format requires a headless
// browser session.
func (f Format) NeedsRenderer() bool {
	return f == FormatPDF || f == FormatHTML
}

// SnapshotResult is the transient output of rendering one article into one
// format. Durability comes from the uploaded copy, not from this value.
type SnapshotResult struct {
	Content  []byte `json:"-"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// StylingOptions tune the injected reader stylesheet for PDF/HTML capture.
type StylingOptions struct {
	FontFamily string `json:"font_family,omitempty"`
	FontSize   string `json:"font_size,omitempty"`
	Theme      string `json:"theme,omitempty"` // light | dark | sepia
	HideImages bool   `json:"hide_images,omitempty"`
}

// IntegrityCheck is the audit record written after post-upload verification.
// It is never read back for correctness of later operations.
type IntegrityCheck struct {
	ArticleID    string    `json:"article_id"`
	SnapshotURL  string    `json:"snapshot_url"`
	OriginalSize int64     `json:"original_size"`
	VerifiedSize int64     `json:"verified_size"`
	Checksum     string    `json:"checksum"`
	IsValid      bool      `json:"is_valid"`
	CheckedAt    time.Time `json:"checked_at"`
}

// SnapshotJob is the queued unit of work for fire-and-forget snapshot
// generation after article creation.
type SnapshotJob struct {
	ArticleID     string          `json:"article_id"`
	UserID        string          `json:"user_id"`
	Format        Format          `json:"format"`
	Styling       *StylingOptions `json:"styling,omitempty"`
	UploadToCloud bool            `json:"upload_to_cloud"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
}
