package rssimport

import (
	"context"
	"fmt"
	"log"

	"github.com/mmcdole/gofeed"

	"stashpad/config"
	"stashpad/pipeline"
	"stashpad/types"
)

// Importer saves every entry of an RSS/Atom feed as an article, running each
// one through the regular creation pipeline so extraction and duplicate
// detection apply.
type Importer struct {
	runner *pipeline.Runner
	parser *gofeed.Parser
}

func NewImporter(runner *pipeline.Runner) *Importer {
	return &Importer{runner: runner, parser: gofeed.NewParser()}
}

// ImportFeed fetches the feed and creates one article per entry, up to the
// import cap. Duplicates count as skipped; other failures do not stop the run.
func (i *Importer) ImportFeed(ctx context.Context, userID, feedURL string, tags []string) (types.ImportResult, error) {
	result := types.ImportResult{FeedURL: feedURL}

	if feedURL == "" {
		return result, types.NewError(types.CodeInvalidInput, "feed url is required")
	}

	feed, err := i.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return result, types.NewError(types.CodeInvalidInput, fmt.Sprintf("failed to fetch feed: %v", err))
	}

	count := len(feed.Items)
	if count > config.MaxFeedImport {
		count = config.MaxFeedImport
	}

	for idx := 0; idx < count; idx++ {
		item := feed.Items[idx]
		if item.Link == "" {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("entry %q has no link", item.Title))
			continue
		}

		entryTags := mergeTags(tags, item.Categories)
		_, err := i.runner.CreateArticle(ctx, userID, item.Link, entryTags)
		switch {
		case err == nil:
			result.Imported++
		case types.IsCode(err, types.CodeDuplicateArticle):
			result.Skipped++
		default:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", item.Link, err))
			log.Printf("feed import failed for %s: %v", item.Link, err)
		}
	}

	log.Printf("imported feed %s: %d saved, %d skipped, %d failed",
		feedURL, result.Imported, result.Skipped, result.Failed)
	return result, nil
}

// mergeTags combines the caller's tags with the entry's categories,
// dropping duplicates and preserving order.
func mergeTags(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	merged := make([]string, 0, len(base)+len(extra))
	for _, t := range base {
		if t != "" && !seen[t] {
			seen[t] = true
			merged = append(merged, t)
		}
	}
	for _, t := range extra {
		if t != "" && !seen[t] {
			seen[t] = true
			merged = append(merged, t)
		}
	}
	return merged
}
