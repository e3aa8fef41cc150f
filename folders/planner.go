package folders

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"stashpad/config"
	"stashpad/types"
)

// PathMeta is the article metadata folder planning reads. Planning is pure:
// same inputs always produce the same path and no I/O happens.
type PathMeta struct {
	Title   string
	URL     string
	Tags    []string
	SavedAt time.Time
}

// Organization strategies.
const (
	StrategyFlat   = "flat"
	StrategyDate   = "date"
	StrategyDomain = "domain"
	StrategyTags   = "tags"
	StrategyCustom = "custom"
)

// Plan computes the cloud-storage destination folder for an article under
// the given organization strategy. A nil structure means flat.
func Plan(meta PathMeta, structure *types.FolderStructure) string {
	root := config.DefaultRootFolder
	if structure == nil {
		return root
	}

	switch structure.Strategy {
	case StrategyDate:
		return root + "/" + datePath(meta.SavedAt, structure.DateFormat)
	case StrategyDomain:
		return root + "/" + SanitizeSegment(registrableDomain(meta.URL))
	case StrategyTags:
		return root + "/" + tagPath(meta.Tags, structure.SeparateByTag)
	case StrategyCustom:
		return root + "/" + customPath(meta, structure.CustomTemplate)
	default:
		return root
	}
}

// datePath renders the date segment. Supported formats mirror the user
// preference: "year-month" (default), "year/month", "year-month-day".
func datePath(t time.Time, format string) string {
	switch format {
	case "year/month":
		return t.Format("2006/01")
	case "year-month-day":
		return t.Format("2006-01-02")
	default:
		return t.Format("2006-01")
	}
}

// registrableDomain reduces a URL's host to its last two labels, dropping a
// leading www.
func registrableDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")

	labels := strings.Split(host, ".")
	if len(labels) > 2 {
		labels = labels[len(labels)-2:]
	}
	return strings.Join(labels, ".")
}

func tagPath(tags []string, separate bool) string {
	if len(tags) == 0 {
		return "untagged"
	}

	segments := []string{SanitizeSegment(tags[0])}
	if separate {
		for _, tag := range tags[1:] {
			if s := SanitizeSegment(tag); s != "" {
				segments = append(segments, s)
			}
		}
	}
	return strings.Join(segments, "/")
}

var placeholderRe = regexp.MustCompile(`\{(year|month|day|domain|title|tag)\}`)

func customPath(meta PathMeta, template string) string {
	if strings.TrimSpace(template) == "" {
		return "saved"
	}

	tag := "untagged"
	if len(meta.Tags) > 0 {
		tag = meta.Tags[0]
	}

	expanded := placeholderRe.ReplaceAllStringFunc(template, func(ph string) string {
		switch ph {
		case "{year}":
			return meta.SavedAt.Format("2006")
		case "{month}":
			return meta.SavedAt.Format("01")
		case "{day}":
			return meta.SavedAt.Format("02")
		case "{domain}":
			return registrableDomain(meta.URL)
		case "{title}":
			return meta.Title
		default:
			return tag
		}
	})

	// Sanitize each template segment independently so user slashes keep
	// working as folder separators.
	var segments []string
	for _, part := range strings.Split(expanded, "/") {
		if s := SanitizeSegment(part); s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 {
		return "saved"
	}
	return strings.Join(segments, "/")
}

var illegalPathChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// SanitizeSegment makes one folder-name fragment filesystem-safe: illegal
// characters stripped, whitespace collapsed to hyphens, trailing dots
// removed, length capped, lowercased.
func SanitizeSegment(segment string) string {
	segment = illegalPathChars.ReplaceAllString(segment, "")
	segment = strings.Join(strings.Fields(segment), "-")
	segment = strings.TrimRight(segment, ".")
	if len(segment) > config.MaxFolderSegment {
		segment = segment[:config.MaxFolderSegment]
		segment = strings.TrimRight(segment, "-.")
	}
	return strings.ToLower(segment)
}
