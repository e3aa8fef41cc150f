package extraction

import (
	"context"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"stashpad/config"
	"stashpad/types"
)

// Options control a single extraction attempt.
type Options struct {
	// Timeout bounds each fetch; zero uses config.ExtractTimeout.
	Timeout time.Duration
	// UsePrimary enables the readability pass before the basic-HTML fallback.
	UsePrimary bool
}

// Extractor converts a URL into normalized article content. Extract never
// returns an error: every failure mode degrades to a populated
// ExtractedContent with ExtractionError set.
type Extractor struct {
	client *http.Client
}

// NewExtractor creates an extractor with its own HTTP client.
func NewExtractor() *Extractor {
	return &Extractor{
		client: &http.Client{Timeout: config.ExtractTimeout},
	}
}

// Extract runs the three-tier strategy: readability, then regex HTML
// parsing, then a zero-value result named after the URL's hostname.
func (e *Extractor) Extract(ctx context.Context, rawURL string, opts Options) types.ExtractedContent {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = config.ExtractTimeout
	}

	var firstErr error

	if opts.UsePrimary {
		content, err := e.extractReadability(rawURL, timeout)
		if err == nil {
			return content
		}
		firstErr = err
		log.Printf("readability extraction failed for %s, falling back: %v", rawURL, err)
	}

	content, err := e.extractBasicHTML(ctx, rawURL, timeout)
	if err == nil {
		if firstErr != nil {
			content.ExtractionError = firstErr.Error()
		}
		return content
	}
	log.Printf("basic HTML extraction failed for %s: %v", rawURL, err)

	return zeroValueContent(rawURL, err)
}

// extractReadability is the rich primary path.
func (e *Extractor) extractReadability(rawURL string, timeout time.Duration) (types.ExtractedContent, error) {
	article, err := readability.FromURL(rawURL, timeout)
	if err != nil {
		return types.ExtractedContent{}, fmt.Errorf("readability extraction failed: %w", err)
	}
	if strings.TrimSpace(article.TextContent) == "" {
		return types.ExtractedContent{}, fmt.Errorf("readability extracted no content from %s", rawURL)
	}

	content := types.ExtractedContent{
		Title:            article.Title,
		Author:           article.Byline,
		Content:          article.Content,
		Excerpt:          article.Excerpt,
		SiteName:         article.SiteName,
		ImageURL:         article.Image,
		PublishedDate:    article.PublishedTime,
		ExtractionMethod: types.MethodReadability,
	}
	content.WordCount, content.ReadingTimeMinutes = Analyze(article.TextContent)
	return content, nil
}

var (
	titleRe     = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	paragraphRe = regexp.MustCompile(`(?is)<p[^>]*>(.*?)</p>`)
	tagRe       = regexp.MustCompile(`(?s)<[^>]*>`)
)

// ogContent builds a matcher for one Open Graph / article meta property,
// tolerating either attribute order.
func ogContent(page, property string) string {
	for _, re := range []*regexp.Regexp{
		regexp.MustCompile(`(?is)<meta[^>]+property=["']` + regexp.QuoteMeta(property) + `["'][^>]+content=["']([^"']*)["']`),
		regexp.MustCompile(`(?is)<meta[^>]+content=["']([^"']*)["'][^>]+property=["']` + regexp.QuoteMeta(property) + `["']`),
	} {
		if m := re.FindStringSubmatch(page); m != nil {
			return html.UnescapeString(strings.TrimSpace(m[1]))
		}
	}
	return ""
}

// extractBasicHTML fetches the raw page and regex-extracts title, Open Graph
// metadata and paragraph text.
func (e *Extractor) extractBasicHTML(ctx context.Context, rawURL string, timeout time.Duration) (types.ExtractedContent, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return types.ExtractedContent{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", config.FetchUserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return types.ExtractedContent{}, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.ExtractedContent{}, fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.ExtractedContent{}, fmt.Errorf("failed to read page body: %w", err)
	}
	page := string(body)

	content := types.ExtractedContent{
		Title:            ogContent(page, "og:title"),
		Excerpt:          ogContent(page, "og:description"),
		ImageURL:         ogContent(page, "og:image"),
		SiteName:         ogContent(page, "og:site_name"),
		ExtractionMethod: types.MethodBasicHTML,
	}

	if content.Title == "" {
		if m := titleRe.FindStringSubmatch(page); m != nil {
			content.Title = html.UnescapeString(strings.TrimSpace(m[1]))
		}
	}
	if content.Title == "" {
		content.Title = hostnameOf(rawURL)
	}

	if published := ogContent(page, "article:published_time"); published != "" {
		if t, err := time.Parse(time.RFC3339, published); err == nil {
			content.PublishedDate = &t
		}
	}

	// Paragraphs under the minimum length are navigation chrome or
	// boilerplate, not article text.
	var paragraphs []string
	for _, m := range paragraphRe.FindAllStringSubmatch(page, -1) {
		text := html.UnescapeString(strings.TrimSpace(tagRe.ReplaceAllString(m[1], "")))
		if len(text) < config.MinParagraphLength {
			continue
		}
		paragraphs = append(paragraphs, text)
	}
	content.Content = strings.Join(paragraphs, "\n\n")

	content.WordCount, content.ReadingTimeMinutes = Analyze(content.Content)
	return content, nil
}

// zeroValueContent is the last-resort result when both paths fail.
func zeroValueContent(rawURL string, cause error) types.ExtractedContent {
	content := types.ExtractedContent{
		Title:            hostnameOf(rawURL),
		ExtractionMethod: types.MethodFallback,
	}
	if cause != nil {
		content.ExtractionError = cause.Error()
	}
	return content
}

func hostnameOf(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return rawURL
}
