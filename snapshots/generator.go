package snapshots

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"stashpad/config"
	"stashpad/types"
)

// Generator renders articles into snapshot formats. PDF and HTML require a
// caller-supplied RenderSession; the remaining formats are pure transforms.
type Generator struct {
	client *http.Client
}

// NewGenerator creates a generator with its own HTTP client for best-effort
// image inlining.
func NewGenerator() *Generator {
	return &Generator{
		client: &http.Client{Timeout: config.ImageInlineTimeout},
	}
}

// Generate produces one snapshot. Render failures surface as SNAPSHOT_ERROR;
// the caller keeps ownership of the session and must release it on every
// exit path.
func (g *Generator) Generate(ctx context.Context, format types.Format, article *types.Article, session RenderSession, styling *types.StylingOptions) (types.SnapshotResult, error) {
	switch format {
	case types.FormatPDF:
		return g.generatePDF(ctx, article, session, styling)
	case types.FormatHTML:
		return g.generateHTML(ctx, article, session, styling)
	case types.FormatEPUB:
		return GenerateEPUB(article), nil
	case types.FormatMarkdown:
		return GenerateMarkdown(article), nil
	case types.FormatText:
		return GenerateText(article), nil
	default:
		return types.SnapshotResult{}, types.NewError(types.CodeInvalidInput, fmt.Sprintf("unknown snapshot format %q", format))
	}
}

func (g *Generator) generatePDF(ctx context.Context, article *types.Article, session RenderSession, styling *types.StylingOptions) (types.SnapshotResult, error) {
	if session == nil {
		return types.SnapshotResult{}, types.NewError(types.CodeSnapshotError, "PDF capture requires a rendering session")
	}

	if err := preparePage(ctx, session, article.URL, styling); err != nil {
		return types.SnapshotResult{}, err
	}

	header := fmt.Sprintf(`<div style="font-size:8px;width:100%%;text-align:center;">%s</div>`, htmlEscape(article.Title))
	footer := `<div style="font-size:8px;width:100%;text-align:center;"><span class="pageNumber"></span> / <span class="totalPages"></span></div>`

	pdf, err := session.CapturePDF(ctx, header, footer)
	if err != nil {
		return types.SnapshotResult{}, types.WrapError(types.CodeSnapshotError, "PDF capture failed", err)
	}

	return types.SnapshotResult{
		Content:  pdf,
		MimeType: types.FormatPDF.MimeType(),
		Filename: Filename(article.Title, types.FormatPDF),
		Size:     int64(len(pdf)),
	}, nil
}

func (g *Generator) generateHTML(ctx context.Context, article *types.Article, session RenderSession, styling *types.StylingOptions) (types.SnapshotResult, error) {
	if session == nil {
		return types.SnapshotResult{}, types.NewError(types.CodeSnapshotError, "HTML capture requires a rendering session")
	}

	if err := preparePage(ctx, session, article.URL, styling); err != nil {
		return types.SnapshotResult{}, err
	}

	dom, err := session.CaptureHTML(ctx)
	if err != nil {
		return types.SnapshotResult{}, types.WrapError(types.CodeSnapshotError, "DOM capture failed", err)
	}

	dom = g.inlineImages(ctx, dom)
	dom = appendProvenance(dom, article.URL)

	content := []byte(dom)
	return types.SnapshotResult{
		Content:  content,
		MimeType: types.FormatHTML.MimeType(),
		Filename: Filename(article.Title, types.FormatHTML),
		Size:     int64(len(content)),
	}, nil
}

func preparePage(ctx context.Context, session RenderSession, url string, styling *types.StylingOptions) error {
	if err := session.Navigate(ctx, url); err != nil {
		return types.WrapError(types.CodeSnapshotError, "navigation failed", err)
	}
	if err := session.InjectCSS(ctx, ReaderCSS(styling)); err != nil {
		return types.WrapError(types.CodeSnapshotError, "failed to apply reader styles", err)
	}
	return nil
}

// ReaderCSS builds the injected stylesheet: hide navigation chrome, apply
// the user's font and theme preferences.
func ReaderCSS(styling *types.StylingOptions) string {
	var b strings.Builder
	b.WriteString(`nav, header nav, footer, aside, iframe,
[class*="sidebar"], [class*="advert"], [class*="banner"], [id*="comments"],
[class*="cookie"], [class*="popup"], [class*="newsletter"] { display: none !important; }
body { margin: 0 auto; max-width: 48rem; padding: 1rem; }`)

	if styling == nil {
		return b.String()
	}
	if styling.FontFamily != "" {
		fmt.Fprintf(&b, "\nbody { font-family: %s !important; }", styling.FontFamily)
	}
	if styling.FontSize != "" {
		fmt.Fprintf(&b, "\nbody { font-size: %s !important; }", styling.FontSize)
	}
	switch styling.Theme {
	case "dark":
		b.WriteString("\nbody { background: #121212 !important; color: #e4e4e4 !important; }")
	case "sepia":
		b.WriteString("\nbody { background: #f4ecd8 !important; color: #5b4636 !important; }")
	}
	if styling.HideImages {
		b.WriteString("\nimg, picture, video { display: none !important; }")
	}
	return b.String()
}

var imgSrcRe = regexp.MustCompile(`(?i)(<img[^>]+src=["'])(https?://[^"']+)(["'])`)

// inlineImages embeds every remote <img> as a base64 data URI. Strictly
// best-effort: an image that cannot be fetched is dropped from the
// document, never failed on.
func (g *Generator) inlineImages(ctx context.Context, dom string) string {
	return imgSrcRe.ReplaceAllStringFunc(dom, func(m string) string {
		parts := imgSrcRe.FindStringSubmatch(m)
		dataURI, err := g.fetchAsDataURI(ctx, parts[2])
		if err != nil {
			log.Printf("dropping image %s from snapshot: %v", parts[2], err)
			return parts[1] + parts[3]
		}
		return parts[1] + dataURI + parts[3]
	})
}

func (g *Generator) fetchAsDataURI(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, config.ImageInlineTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, config.MaxInlineImageBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(body)) > config.MaxInlineImageBytes {
		return "", fmt.Errorf("image exceeds %d byte inline limit", config.MaxInlineImageBytes)
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = http.DetectContentType(body)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(body), nil
}

func appendProvenance(dom, sourceURL string) string {
	footer := fmt.Sprintf(
		"\n<!-- saved by stashpad -->\n<footer class=\"stashpad-provenance\"><hr/><p>Source: <a href=\"%s\">%s</a> &middot; captured %s by stashpad</p></footer>\n",
		sourceURL, sourceURL, time.Now().UTC().Format(time.RFC3339))

	if idx := strings.LastIndex(dom, "</body>"); idx >= 0 {
		return dom[:idx] + footer + dom[idx:]
	}
	return dom + footer
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
