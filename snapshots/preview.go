package snapshots

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"stashpad/config"
	"stashpad/types"
)

// ObjectStore is the blob backend previews are parked in.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// PreviewRef is the short-lived handle returned by preview creation.
type PreviewRef struct {
	ID        string       `json:"preview_id"`
	ArticleID string       `json:"article_id"`
	Format    types.Format `json:"format"`
	Filename  string       `json:"filename"`
	MimeType  string       `json:"mime_type"`
	Size      int64        `json:"size"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// PreviewStore parks snapshot bytes for short-lived preview fetches: the
// blob goes to the object store, the reference to Redis with a TTL. Expiry
// is enforced by the Redis key; an orphaned blob is harmless and cheap.
type PreviewStore struct {
	rdb     *redis.Client
	objects ObjectStore
	ttl     time.Duration
}

// NewPreviewStore wires a preview store with the standard TTL.
func NewPreviewStore(rdb *redis.Client, objects ObjectStore) *PreviewStore {
	return &PreviewStore{rdb: rdb, objects: objects, ttl: config.PreviewTTL}
}

func previewKey(id string) string { return "preview:" + id }

// Put stores a generated snapshot for preview and returns its reference.
func (p *PreviewStore) Put(ctx context.Context, articleID string, result types.SnapshotResult, format types.Format) (PreviewRef, error) {
	ref := PreviewRef{
		ID:        uuid.NewString(),
		ArticleID: articleID,
		Format:    format,
		Filename:  result.Filename,
		MimeType:  result.MimeType,
		Size:      result.Size,
		ExpiresAt: time.Now().UTC().Add(p.ttl),
	}

	if err := p.objects.Put(ctx, "previews/"+ref.ID, bytes.NewReader(result.Content), result.MimeType); err != nil {
		return PreviewRef{}, fmt.Errorf("failed to store preview blob: %w", err)
	}

	meta, err := json.Marshal(ref)
	if err != nil {
		return PreviewRef{}, fmt.Errorf("failed to encode preview reference: %w", err)
	}
	if err := p.rdb.Set(ctx, previewKey(ref.ID), meta, p.ttl).Err(); err != nil {
		return PreviewRef{}, fmt.Errorf("failed to index preview: %w", err)
	}

	return ref, nil
}

// Get fetches a live preview's reference and raw bytes. An expired or
// unknown id resolves to NOT_FOUND.
func (p *PreviewStore) Get(ctx context.Context, id string) (PreviewRef, []byte, error) {
	meta, err := p.rdb.Get(ctx, previewKey(id)).Bytes()
	if err == redis.Nil {
		return PreviewRef{}, nil, types.NewError(types.CodeNotFound, "preview expired or not found")
	}
	if err != nil {
		return PreviewRef{}, nil, fmt.Errorf("failed to look up preview: %w", err)
	}

	var ref PreviewRef
	if err := json.Unmarshal(meta, &ref); err != nil {
		return PreviewRef{}, nil, fmt.Errorf("failed to decode preview reference: %w", err)
	}

	blob, err := p.objects.Get(ctx, "previews/"+id)
	if err != nil {
		return PreviewRef{}, nil, fmt.Errorf("failed to fetch preview blob: %w", err)
	}
	defer blob.Close()

	content, err := io.ReadAll(blob)
	if err != nil {
		return PreviewRef{}, nil, fmt.Errorf("failed to read preview blob: %w", err)
	}
	return ref, content, nil
}

// SniffContentType infers a preview's serving content type from its bytes:
// a PDF magic number means application/pdf, anything else serves as HTML.
func SniffContentType(content []byte) string {
	if bytes.HasPrefix(content, []byte("%PDF")) {
		return "application/pdf"
	}
	return "text/html"
}
