package deduplication

import (
	"context"
	"fmt"

	"stashpad/types"
)

// ArticleLister is the slice of the article store the detector needs.
type ArticleLister interface {
	ListArticles(ctx context.Context, userID string) ([]*types.Article, error)
}

// Detector gates article creation on a per-user duplicate scan.
type Detector struct {
	store ArticleLister
}

// NewDetector creates a detector backed by the given store.
func NewDetector(store ArticleLister) *Detector {
	return &Detector{store: store}
}

// FindDuplicate returns the user's existing article whose URL duplicates
// rawURL, or nil when the URL is new. The scan is O(n) over the user's
// saved articles; fine at personal-library scale, a candidate for a
// normalized-URL index if libraries grow large.
func (d *Detector) FindDuplicate(ctx context.Context, userID, rawURL string) (*types.Article, error) {
	articles, err := d.store.ListArticles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles for duplicate check: %w", err)
	}

	for _, article := range articles {
		if AreDuplicates(article.URL, rawURL) {
			return article, nil
		}
	}
	return nil, nil
}
