package batch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"stashpad/cloudstore"
	"stashpad/extraction"
	"stashpad/pipeline"
	"stashpad/snapshots"
	"stashpad/storage"
	"stashpad/types"
)

type fakeStore struct {
	articles map[string]*types.Article
	userIDs  map[string][]string
	settings map[string]*types.UserSettings
	conn     *types.StorageConnection
	tokens   *storage.TokenSet
	checks   []types.IntegrityCheck
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		articles: make(map[string]*types.Article),
		userIDs:  make(map[string][]string),
		settings: make(map[string]*types.UserSettings),
	}
}

func (f *fakeStore) add(article *types.Article) {
	f.articles[article.ID] = article
	f.userIDs[article.UserID] = append(f.userIDs[article.UserID], article.ID)
}

func (f *fakeStore) GetArticle(ctx context.Context, id string) (*types.Article, error) {
	return f.articles[id], nil
}

func (f *fakeStore) SaveArticle(ctx context.Context, article *types.Article) error {
	f.articles[article.ID] = article
	return nil
}

func (f *fakeStore) DeleteArticle(ctx context.Context, userID, id string) error {
	delete(f.articles, id)
	ids := f.userIDs[userID]
	for i, existing := range ids {
		if existing == id {
			f.userIDs[userID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeStore) AddArticleToUser(ctx context.Context, userID, articleID string) error {
	f.userIDs[userID] = append(f.userIDs[userID], articleID)
	return nil
}

func (f *fakeStore) ListArticles(ctx context.Context, userID string) ([]*types.Article, error) {
	var out []*types.Article
	for _, id := range f.userIDs[userID] {
		if a, ok := f.articles[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) GetSettings(ctx context.Context, userID string) (*types.UserSettings, error) {
	return f.settings[userID], nil
}

func (f *fakeStore) ActiveConnection(ctx context.Context, userID string) (*types.StorageConnection, error) {
	return f.conn, nil
}

func (f *fakeStore) GetTokens(ctx context.Context, connectionID string) (*storage.TokenSet, error) {
	return f.tokens, nil
}

func (f *fakeStore) SaveTokens(ctx context.Context, connectionID string, tokens *storage.TokenSet) error {
	f.tokens = tokens
	return nil
}

func (f *fakeStore) AppendIntegrityCheck(ctx context.Context, check types.IntegrityCheck) error {
	f.checks = append(f.checks, check)
	return nil
}

type fakeProvider struct {
	uploads []string
}

func (f *fakeProvider) Upload(ctx context.Context, accessToken, filename, mimeType string, content []byte, folderPath string) (cloudstore.UploadResult, error) {
	f.uploads = append(f.uploads, folderPath+"/"+filename)
	return cloudstore.UploadResult{FileID: "f1", ViewLink: "https://cloud.example.com/f1"}, nil
}

func (f *fakeProvider) GetQuota(ctx context.Context, accessToken string) (cloudstore.Quota, error) {
	return cloudstore.Quota{}, nil
}

func (f *fakeProvider) GetUserInfo(ctx context.Context, accessToken string) (cloudstore.UserInfo, error) {
	return cloudstore.UserInfo{}, nil
}

func (f *fakeProvider) RefreshToken(ctx context.Context, refreshToken string) (string, time.Time, error) {
	return "refreshed-token", time.Now().Add(time.Hour), nil
}

type fakeResolver struct {
	provider *fakeProvider
}

func (f fakeResolver) ForProvider(id string) (cloudstore.Provider, error) {
	if f.provider == nil {
		return nil, types.NewError(types.CodeUploadError, fmt.Sprintf("unsupported storage provider %q", id))
	}
	return f.provider, nil
}

type fakeVerifier struct{}

func (fakeVerifier) Verify(ctx context.Context, articleID, snapshotURL string, original []byte, originalSize int64) types.IntegrityCheck {
	return types.IntegrityCheck{ArticleID: articleID, IsValid: true}
}

type fakeSessionFactory struct{}

func (fakeSessionFactory) New(ctx context.Context) (snapshots.RenderSession, error) {
	return nil, fmt.Errorf("no browser in tests")
}

func newTestCoordinator(store *fakeStore) *Coordinator {
	return newTestCoordinatorWith(store, fakeResolver{})
}

func newTestCoordinatorWith(store *fakeStore, resolver fakeResolver) *Coordinator {
	runner := pipeline.NewRunner(store, extraction.NewExtractor(), snapshots.NewGenerator(), resolver, fakeVerifier{})
	return NewCoordinator(runner, fakeSessionFactory{})
}

func TestRunBulkDeletePartialFailure(t *testing.T) {
	store := newFakeStore()
	store.add(&types.Article{ID: "a1", UserID: "u1", URL: "https://example.com/1"})
	store.add(&types.Article{ID: "a3", UserID: "u1", URL: "https://example.com/3"})

	result, err := newTestCoordinator(store).Run(context.Background(), "u1",
		[]string{"a1", "a2", "a3"}, types.OpDelete, types.BatchParams{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Successful != 2 || result.Failed != 1 {
		t.Fatalf("expected 2 successful / 1 failed, got %d / %d", result.Successful, result.Failed)
	}
	if len(result.Errors) != 1 || result.Errors[0] != "Article a2 not found" {
		t.Fatalf("unexpected errors %v", result.Errors)
	}
	if _, ok := store.articles["a1"]; ok {
		t.Error("a1 should have been deleted")
	}
	if _, ok := store.articles["a3"]; ok {
		t.Error("a3 should have been deleted")
	}
}

func TestRunAccountsInvalidItems(t *testing.T) {
	store := newFakeStore()
	var ids []string
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("owned-%d", i)
		store.add(&types.Article{ID: id, UserID: "u1", URL: "https://example.com/" + id})
		ids = append(ids, id)
	}
	// Two foreign, one missing.
	store.add(&types.Article{ID: "other-1", UserID: "u2", URL: "https://example.com/o1"})
	store.add(&types.Article{ID: "other-2", UserID: "u2", URL: "https://example.com/o2"})
	ids = append(ids, "other-1", "other-2", "ghost")

	result, err := newTestCoordinator(store).Run(context.Background(), "u1", ids, types.OpArchive, types.BatchParams{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Total != 9 || result.Successful != 6 || result.Failed != 3 {
		t.Fatalf("expected 9 total / 6 successful / 3 failed, got %d / %d / %d",
			result.Total, result.Successful, result.Failed)
	}
	if len(result.Errors) != 3 {
		t.Fatalf("expected 3 error entries, got %v", result.Errors)
	}
	for i := 0; i < 6; i++ {
		if !store.articles[fmt.Sprintf("owned-%d", i)].IsArchived {
			t.Errorf("owned-%d should be archived", i)
		}
	}
}

func TestRunRetagMergeAndReplace(t *testing.T) {
	store := newFakeStore()
	store.add(&types.Article{ID: "a1", UserID: "u1", Tags: []string{"old"}})
	coord := newTestCoordinator(store)

	_, err := coord.Run(context.Background(), "u1", []string{"a1"}, types.OpRetag,
		types.BatchParams{Tags: []string{"new", "old"}, MergeTags: true})
	if err != nil {
		t.Fatalf("merge retag failed: %v", err)
	}
	got := store.articles["a1"].Tags
	if len(got) != 2 || got[0] != "old" || got[1] != "new" {
		t.Fatalf("merge produced %v", got)
	}

	_, err = coord.Run(context.Background(), "u1", []string{"a1"}, types.OpRetag,
		types.BatchParams{Tags: []string{"fresh"}})
	if err != nil {
		t.Fatalf("replace retag failed: %v", err)
	}
	got = store.articles["a1"].Tags
	if len(got) != 1 || got[0] != "fresh" {
		t.Fatalf("replace produced %v", got)
	}
}

func TestRunFavoriteAndArchiveToggles(t *testing.T) {
	store := newFakeStore()
	store.add(&types.Article{ID: "a1", UserID: "u1"})
	coord := newTestCoordinator(store)
	ctx := context.Background()

	steps := []struct {
		op    string
		check func(*types.Article) bool
	}{
		{types.OpFavorite, func(a *types.Article) bool { return a.IsFavorite }},
		{types.OpUnfavorite, func(a *types.Article) bool { return !a.IsFavorite }},
		{types.OpArchive, func(a *types.Article) bool { return a.IsArchived }},
		{types.OpUnarchive, func(a *types.Article) bool { return !a.IsArchived }},
	}
	for _, step := range steps {
		if _, err := coord.Run(ctx, "u1", []string{"a1"}, step.op, types.BatchParams{}); err != nil {
			t.Fatalf("%s failed: %v", step.op, err)
		}
		if !step.check(store.articles["a1"]) {
			t.Errorf("%s did not apply", step.op)
		}
	}
}

func TestRunRejectsBadRequests(t *testing.T) {
	coord := newTestCoordinator(newFakeStore())
	ctx := context.Background()

	if _, err := coord.Run(ctx, "u1", nil, types.OpDelete, types.BatchParams{}); !types.IsCode(err, types.CodeInvalidInput) {
		t.Errorf("empty ids: expected INVALID_INPUT, got %v", err)
	}

	big := make([]string, 51)
	for i := range big {
		big[i] = fmt.Sprintf("a%d", i)
	}
	if _, err := coord.Run(ctx, "u1", big, types.OpDelete, types.BatchParams{}); !types.IsCode(err, types.CodeInvalidInput) {
		t.Errorf("oversized batch: expected INVALID_INPUT, got %v", err)
	}

	if _, err := coord.Run(ctx, "u1", []string{"a1"}, "explode", types.BatchParams{}); !types.IsCode(err, types.CodeInvalidInput) {
		t.Errorf("unknown op: expected INVALID_INPUT, got %v", err)
	}
}

func TestRunSnapshotsWithoutRenderer(t *testing.T) {
	store := newFakeStore()
	store.add(&types.Article{ID: "a1", UserID: "u1", Title: "One", Content: "<p>body</p>", URL: "https://example.com/1"})
	store.add(&types.Article{ID: "a2", UserID: "u2", Title: "Two", URL: "https://example.com/2"})
	store.conn = &types.StorageConnection{ID: "c1", UserID: "u1", Provider: "dropbox", Active: true}
	store.tokens = &storage.TokenSet{AccessToken: "tok", Expiry: time.Now().Add(time.Hour)}
	provider := &fakeProvider{}

	// Markdown needs no rendering session, so the failing session factory
	// must never be touched.
	result, err := newTestCoordinatorWith(store, fakeResolver{provider: provider}).RunSnapshots(
		context.Background(), "u1", []string{"a1", "a2"}, types.FormatMarkdown, nil)
	if err != nil {
		t.Fatalf("RunSnapshots failed: %v", err)
	}

	if result.Successful != 1 || result.Failed != 1 {
		t.Fatalf("expected 1 successful / 1 failed, got %d / %d", result.Successful, result.Failed)
	}
	if len(provider.uploads) != 1 || provider.uploads[0] != "Articles/one.md" {
		t.Fatalf("unexpected uploads %v", provider.uploads)
	}

	uploaded := store.articles["a1"]
	if uploaded.SnapshotLinks["markdown"] != "https://cloud.example.com/f1" {
		t.Errorf("snapshot link not recorded: %v", uploaded.SnapshotLinks)
	}
	if len(store.checks) != 1 || !store.checks[0].IsValid {
		t.Errorf("integrity check not recorded: %v", store.checks)
	}
}
