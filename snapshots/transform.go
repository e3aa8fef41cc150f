package snapshots

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"stashpad/types"
)

// The non-browser formats are pure transforms over already-extracted
// content: no network, no rendering session.

var (
	headingRe    = regexp.MustCompile(`(?is)<h([1-6])[^>]*>(.*?)</h[1-6]>`)
	boldRe       = regexp.MustCompile(`(?is)<(?:b|strong)[^>]*>(.*?)</(?:b|strong)>`)
	italicRe     = regexp.MustCompile(`(?is)<(?:i|em)[^>]*>(.*?)</(?:i|em)>`)
	linkRe       = regexp.MustCompile(`(?is)<a[^>]+href=["']([^"']*)["'][^>]*>(.*?)</a>`)
	imgMdRe      = regexp.MustCompile(`(?is)<img[^>]+src=["']([^"']*)["'][^>]*>`)
	brRe         = regexp.MustCompile(`(?i)<br\s*/?>`)
	blockCloseRe = regexp.MustCompile(`(?i)</(?:p|div|section|article|blockquote|li)>`)
	anyTagRe     = regexp.MustCompile(`(?s)<[^>]*>`)
	blankRunRe   = regexp.MustCompile(`\n{3,}`)
)

// GenerateMarkdown renders the article as Markdown with a frontmatter block
// followed by a minimal HTML-to-Markdown conversion of the body.
func GenerateMarkdown(article *types.Article) types.SnapshotResult {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "title: %q\n", article.Title)
	if article.Author != "" {
		fmt.Fprintf(&b, "author: %q\n", article.Author)
	}
	fmt.Fprintf(&b, "source: %s\n", article.URL)
	fmt.Fprintf(&b, "saved: %s\n", article.CreatedAt.UTC().Format(time.RFC3339))
	if len(article.Tags) > 0 {
		fmt.Fprintf(&b, "tags: [%s]\n", strings.Join(article.Tags, ", "))
	}
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n\n", article.Title)
	b.WriteString(htmlToMarkdown(article.Content))
	b.WriteString("\n")

	content := []byte(b.String())
	return types.SnapshotResult{
		Content:  content,
		MimeType: types.FormatMarkdown.MimeType(),
		Filename: Filename(article.Title, types.FormatMarkdown),
		Size:     int64(len(content)),
	}
}

func htmlToMarkdown(htmlContent string) string {
	out := htmlContent
	out = headingRe.ReplaceAllStringFunc(out, func(m string) string {
		parts := headingRe.FindStringSubmatch(m)
		level := int(parts[1][0] - '0')
		return "\n" + strings.Repeat("#", level) + " " + strings.TrimSpace(parts[2]) + "\n"
	})
	out = boldRe.ReplaceAllString(out, "**$1**")
	out = italicRe.ReplaceAllString(out, "*$1*")
	out = linkRe.ReplaceAllString(out, "[$2]($1)")
	out = imgMdRe.ReplaceAllString(out, "![]($1)")
	out = brRe.ReplaceAllString(out, "\n")
	out = blockCloseRe.ReplaceAllString(out, "\n\n")
	out = anyTagRe.ReplaceAllString(out, "")
	out = html.UnescapeString(out)
	out = blankRunRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// GenerateText renders the article as plain text: markup stripped, entities
// decoded.
func GenerateText(article *types.Article) types.SnapshotResult {
	var b strings.Builder
	b.WriteString(article.Title + "\n")
	if article.Author != "" {
		b.WriteString("By " + article.Author + "\n")
	}
	b.WriteString(article.URL + "\n\n")
	b.WriteString(StripHTML(article.Content))
	b.WriteString("\n")

	content := []byte(b.String())
	return types.SnapshotResult{
		Content:  content,
		MimeType: types.FormatText.MimeType(),
		Filename: Filename(article.Title, types.FormatText),
		Size:     int64(len(content)),
	}
}

// StripHTML removes all markup and decodes entities, preserving block
// boundaries as blank lines.
func StripHTML(htmlContent string) string {
	out := brRe.ReplaceAllString(htmlContent, "\n")
	out = blockCloseRe.ReplaceAllString(out, "\n\n")
	out = anyTagRe.ReplaceAllString(out, "")
	out = html.UnescapeString(out)
	out = blankRunRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// GenerateEPUB renders the article as a single XHTML document carrying the
// EPUB content type. This is deliberately not a zip-packaged OPF/NCX
// container: downstream consumers rely on the current single-document shape.
func GenerateEPUB(article *types.Article) types.SnapshotResult {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml">` + "\n")
	fmt.Fprintf(&b, "<head><title>%s</title></head>\n", html.EscapeString(article.Title))
	b.WriteString("<body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(article.Title))
	if article.Author != "" {
		fmt.Fprintf(&b, "<p class=\"byline\">%s</p>\n", html.EscapeString(article.Author))
	}
	fmt.Fprintf(&b, "<div class=\"content\">%s</div>\n", article.Content)
	b.WriteString("</body>\n</html>\n")

	content := []byte(b.String())
	return types.SnapshotResult{
		Content:  content,
		MimeType: types.FormatEPUB.MimeType(),
		Filename: Filename(article.Title, types.FormatEPUB),
		Size:     int64(len(content)),
	}
}
