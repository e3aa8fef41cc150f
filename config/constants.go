package config

import "time"

// Extraction Constants
const (
	// ExtractTimeout bounds a single extraction attempt (primary or fallback)
	ExtractTimeout = 30 * time.Second

	// FetchUserAgent identifies the service on fallback HTML fetches
	FetchUserAgent = "Mozilla/5.0 (compatible; StashpadBot/1.0; +https://stashpad.app/bot)"

	// MinParagraphLength drops boilerplate paragraphs below this many characters
	MinParagraphLength = 20

	// WordsPerMinute is the reading-speed assumption for reading-time estimates
	WordsPerMinute = 225
)

// Snapshot Constants
const (
	// RenderTimeout bounds a single page navigation + capture
	RenderTimeout = 45 * time.Second

	// ImageInlineTimeout bounds fetching one image during HTML inlining
	ImageInlineTimeout = 10 * time.Second

	// MaxInlineImageBytes skips inlining images larger than this
	MaxInlineImageBytes = 5 * 1024 * 1024

	// MaxFilenameLength caps the sanitized filename stem
	MaxFilenameLength = 100

	// PreviewTTL is how long an on-demand snapshot preview stays fetchable
	PreviewTTL = time.Hour
)

// Upload Constants
const (
	// UploadTimeout bounds one provider upload request
	UploadTimeout = 60 * time.Second

	// VerifyTimeout bounds the post-upload integrity re-fetch
	VerifyTimeout = 30 * time.Second

	// SizeTolerance is the allowed relative Content-Length drift for the
	// HEAD-based size check (absorbs provider-side re-encoding)
	SizeTolerance = 0.01
)

// Batch Constants
const (
	// MaxBatchSize rejects bulk requests above this many article ids
	MaxBatchSize = 50

	// MaxFolderSegment caps one sanitized folder-name fragment
	MaxFolderSegment = 50

	// DefaultRootFolder is the top-level cloud folder for all strategies
	DefaultRootFolder = "Articles"
)

// Import Constants
const (
	// MaxFeedImport caps articles taken from one feed import request
	MaxFeedImport = 25
)
