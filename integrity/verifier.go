package integrity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"time"

	"stashpad/config"
	"stashpad/types"
)

// Verifier re-fetches uploaded snapshots and compares them against the
// original bytes. Verify never fails: any fetch or hash problem yields an
// invalid check record instead of an error, because verification is an
// audit step and must not break the pipeline that follows it.
type Verifier struct {
	client *http.Client
}

// NewVerifier creates a verifier with its own HTTP client.
func NewVerifier() *Verifier {
	return &Verifier{client: &http.Client{Timeout: config.VerifyTimeout}}
}

// Checksum computes the hex SHA-256 of a byte slice.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Verify downloads the uploaded copy and requires exact checksum equality
// and exact byte-length equality for validity.
func (v *Verifier) Verify(ctx context.Context, articleID, snapshotURL string, original []byte, originalSize int64) types.IntegrityCheck {
	check := types.IntegrityCheck{
		ArticleID:    articleID,
		SnapshotURL:  snapshotURL,
		OriginalSize: originalSize,
		CheckedAt:    time.Now().UTC(),
	}

	fetched, err := v.fetch(ctx, snapshotURL)
	if err != nil {
		log.Printf("integrity fetch failed for article %s: %v", articleID, err)
		return check
	}

	check.VerifiedSize = int64(len(fetched))
	if check.VerifiedSize != originalSize {
		return check
	}

	check.Checksum = Checksum(fetched)
	check.IsValid = check.Checksum == Checksum(original)
	return check
}

// VerifySize is the lightweight variant: a HEAD request comparing
// Content-Length against the expected size within a small tolerance, for
// providers that re-encode on storage. Used when re-downloading the full
// artifact is too costly.
func (v *Verifier) VerifySize(ctx context.Context, articleID, snapshotURL string, expectedSize int64) types.IntegrityCheck {
	check := types.IntegrityCheck{
		ArticleID:    articleID,
		SnapshotURL:  snapshotURL,
		OriginalSize: expectedSize,
		CheckedAt:    time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, config.VerifyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, snapshotURL, nil)
	if err != nil {
		return check
	}

	resp, err := v.client.Do(req)
	if err != nil {
		log.Printf("integrity HEAD failed for article %s: %v", articleID, err)
		return check
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK || resp.ContentLength < 0 {
		return check
	}

	check.VerifiedSize = resp.ContentLength
	if expectedSize == 0 {
		check.IsValid = resp.ContentLength == 0
		return check
	}

	drift := math.Abs(float64(resp.ContentLength-expectedSize)) / float64(expectedSize)
	check.IsValid = drift <= config.SizeTolerance
	return check
}

func (v *Verifier) fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, config.VerifyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot fetch returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
