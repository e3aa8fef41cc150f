package snapshots

import (
	"regexp"
	"strings"

	"stashpad/config"
	"stashpad/types"
)

var nonFilenameChars = regexp.MustCompile(`[^a-z0-9]+`)

// SanitizeFilename reduces an article title to a safe filename stem:
// lowercase alphanumerics joined by single hyphens, capped in length. Every
// format uses the same stem so a given article's snapshots sort together.
func SanitizeFilename(title string) string {
	stem := strings.ToLower(strings.TrimSpace(title))
	stem = nonFilenameChars.ReplaceAllString(stem, "-")
	stem = strings.Trim(stem, "-")

	if len(stem) > config.MaxFilenameLength {
		stem = strings.Trim(stem[:config.MaxFilenameLength], "-")
	}
	if stem == "" {
		stem = "article"
	}
	return stem
}

// Filename builds the full snapshot filename for a format.
func Filename(title string, format types.Format) string {
	return SanitizeFilename(title) + "." + format.Extension()
}
