package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"stashpad/batch"
	"stashpad/cloudstore"
	"stashpad/extraction"
	"stashpad/pipeline"
	"stashpad/queue"
	"stashpad/snapshots"
	"stashpad/storage"
	"stashpad/types"
)

type memStore struct {
	articles map[string]*types.Article
	userIDs  map[string][]string
}

func newMemStore() *memStore {
	return &memStore{
		articles: make(map[string]*types.Article),
		userIDs:  make(map[string][]string),
	}
}

func (m *memStore) add(article *types.Article) {
	m.articles[article.ID] = article
	m.userIDs[article.UserID] = append(m.userIDs[article.UserID], article.ID)
}

func (m *memStore) GetArticle(ctx context.Context, id string) (*types.Article, error) {
	return m.articles[id], nil
}

func (m *memStore) SaveArticle(ctx context.Context, article *types.Article) error {
	m.articles[article.ID] = article
	return nil
}

func (m *memStore) DeleteArticle(ctx context.Context, userID, id string) error {
	delete(m.articles, id)
	return nil
}

func (m *memStore) AddArticleToUser(ctx context.Context, userID, articleID string) error {
	m.userIDs[userID] = append(m.userIDs[userID], articleID)
	return nil
}

func (m *memStore) ListArticles(ctx context.Context, userID string) ([]*types.Article, error) {
	var out []*types.Article
	for _, id := range m.userIDs[userID] {
		if a, ok := m.articles[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) GetSettings(ctx context.Context, userID string) (*types.UserSettings, error) {
	return &types.UserSettings{}, nil
}

func (m *memStore) ActiveConnection(ctx context.Context, userID string) (*types.StorageConnection, error) {
	return nil, nil
}

func (m *memStore) GetTokens(ctx context.Context, connectionID string) (*storage.TokenSet, error) {
	return nil, nil
}

func (m *memStore) SaveTokens(ctx context.Context, connectionID string, tokens *storage.TokenSet) error {
	return nil
}

func (m *memStore) AppendIntegrityCheck(ctx context.Context, check types.IntegrityCheck) error {
	return nil
}

// stubExtractor avoids network fetches in handler tests.
type stubExtractor struct{}

func (stubExtractor) Extract(ctx context.Context, url string, opts extraction.Options) types.ExtractedContent {
	return types.ExtractedContent{Title: "Stub", ExtractionMethod: types.MethodFallback}
}

type noResolver struct{}

func (noResolver) ForProvider(id string) (cloudstore.Provider, error) {
	return nil, types.NewError(types.CodeUploadError, fmt.Sprintf("unsupported storage provider %q", id))
}

type noVerifier struct{}

func (noVerifier) Verify(ctx context.Context, articleID, snapshotURL string, original []byte, originalSize int64) types.IntegrityCheck {
	return types.IntegrityCheck{}
}

type noSessions struct{}

func (noSessions) New(ctx context.Context) (snapshots.RenderSession, error) {
	return nil, fmt.Errorf("no browser in tests")
}

func newTestRouter(store *memStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	runner := pipeline.NewRunner(store, stubExtractor{}, snapshots.NewGenerator(), noResolver{}, noVerifier{})
	coordinator := batch.NewCoordinator(runner, noSessions{})
	jobs := queue.NewMemoryQueue(1, func(ctx context.Context, job *types.SnapshotJob) error { return nil })
	server := NewServer(runner, coordinator, nil, noSessions{}, nil, jobs)
	return server.NewRouter()
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid response JSON: %v\n%s", err, w.Body.String())
	}
	return out
}

func TestCreateArticleReturns201(t *testing.T) {
	router := newTestRouter(newMemStore())

	w := doJSON(t, router, http.MethodPost, "/articles", gin.H{"url": "https://example.com/a"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d, want 201\n%s", w.Code, w.Body.String())
	}
	out := decodeEnvelope(t, w)
	if out["success"] != true {
		t.Errorf("expected success envelope, got %v", out)
	}
}

func TestCreateArticleDuplicateReturns409(t *testing.T) {
	store := newMemStore()
	store.add(&types.Article{ID: "a1", UserID: "u1", URL: "https://example.com/a"})
	router := newTestRouter(store)

	w := doJSON(t, router, http.MethodPost, "/articles", gin.H{"url": "https://example.com/a?utm_source=x"})
	if w.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409\n%s", w.Code, w.Body.String())
	}

	out := decodeEnvelope(t, w)
	errObj, ok := out["error"].(map[string]interface{})
	if !ok || errObj["code"] != types.CodeDuplicateArticle {
		t.Fatalf("expected DUPLICATE_ARTICLE error, got %v", out)
	}
	data, ok := out["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected existing article in data, got %v", out)
	}
	existing, ok := data["existing_article"].(map[string]interface{})
	if !ok || existing["id"] != "a1" {
		t.Fatalf("expected existing article a1, got %v", data)
	}
}

func TestCreateArticleMissingURLReturns400(t *testing.T) {
	router := newTestRouter(newMemStore())

	w := doJSON(t, router, http.MethodPost, "/articles", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400\n%s", w.Code, w.Body.String())
	}
	out := decodeEnvelope(t, w)
	errObj, ok := out["error"].(map[string]interface{})
	if !ok || errObj["code"] != types.CodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %v", out)
	}
}

func TestMissingUserHeaderReturns400(t *testing.T) {
	router := newTestRouter(newMemStore())

	req := httptest.NewRequest(http.MethodGet, "/articles", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
}

func TestGetArticleOwnership(t *testing.T) {
	store := newMemStore()
	store.add(&types.Article{ID: "mine", UserID: "u1", URL: "https://example.com/mine"})
	store.add(&types.Article{ID: "theirs", UserID: "u2", URL: "https://example.com/theirs"})
	router := newTestRouter(store)

	if w := doJSON(t, router, http.MethodGet, "/articles/mine", nil); w.Code != http.StatusOK {
		t.Errorf("own article: status %d, want 200", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/articles/theirs", nil); w.Code != http.StatusForbidden {
		t.Errorf("foreign article: status %d, want 403", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/articles/ghost", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing article: status %d, want 404", w.Code)
	}
}

func TestCheckDuplicateEndpoint(t *testing.T) {
	store := newMemStore()
	store.add(&types.Article{ID: "a1", UserID: "u1", URL: "https://example.com/a"})
	router := newTestRouter(store)

	w := doJSON(t, router, http.MethodPost, "/articles/check-duplicate", gin.H{"url": "https://example.com/a#frag"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d\n%s", w.Code, w.Body.String())
	}
	out := decodeEnvelope(t, w)
	data := out["data"].(map[string]interface{})
	if data["is_duplicate"] != true {
		t.Fatalf("expected duplicate, got %v", data)
	}

	w = doJSON(t, router, http.MethodPost, "/articles/check-duplicate", gin.H{"url": "https://example.com/new"})
	out = decodeEnvelope(t, w)
	data = out["data"].(map[string]interface{})
	if data["is_duplicate"] != false {
		t.Fatalf("expected non-duplicate, got %v", data)
	}
}

func TestBatchOperationsEndpoint(t *testing.T) {
	store := newMemStore()
	store.add(&types.Article{ID: "a1", UserID: "u1", URL: "https://example.com/1"})
	store.add(&types.Article{ID: "a3", UserID: "u1", URL: "https://example.com/3"})
	router := newTestRouter(store)

	w := doJSON(t, router, http.MethodPost, "/articles/batch/operations", gin.H{
		"articleIds": []string{"a1", "a2", "a3"},
		"operation":  "delete",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d\n%s", w.Code, w.Body.String())
	}

	out := decodeEnvelope(t, w)
	data := out["data"].(map[string]interface{})
	if data["successful"] != float64(2) || data["failed"] != float64(1) {
		t.Fatalf("unexpected accounting %v", data)
	}
	errs := data["errors"].([]interface{})
	if len(errs) != 1 || errs[0] != "Article a2 not found" {
		t.Fatalf("unexpected errors %v", errs)
	}
}
