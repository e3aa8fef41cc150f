package pipeline

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"stashpad/cloudstore"
	"stashpad/config"
	"stashpad/deduplication"
	"stashpad/extraction"
	"stashpad/folders"
	"stashpad/snapshots"
	"stashpad/storage"
	"stashpad/types"
)

// Store is the slice of the persistence layer the pipeline drives.
type Store interface {
	GetArticle(ctx context.Context, id string) (*types.Article, error)
	SaveArticle(ctx context.Context, article *types.Article) error
	DeleteArticle(ctx context.Context, userID, id string) error
	AddArticleToUser(ctx context.Context, userID, articleID string) error
	ListArticles(ctx context.Context, userID string) ([]*types.Article, error)
	GetSettings(ctx context.Context, userID string) (*types.UserSettings, error)
	ActiveConnection(ctx context.Context, userID string) (*types.StorageConnection, error)
	GetTokens(ctx context.Context, connectionID string) (*storage.TokenSet, error)
	SaveTokens(ctx context.Context, connectionID string, tokens *storage.TokenSet) error
	AppendIntegrityCheck(ctx context.Context, check types.IntegrityCheck) error
}

// Extractor converts a URL into article content.
type Extractor interface {
	Extract(ctx context.Context, url string, opts extraction.Options) types.ExtractedContent
}

// ProviderResolver selects the cloud-storage implementation for a provider id.
type ProviderResolver interface {
	ForProvider(id string) (cloudstore.Provider, error)
}

// IntegrityChecker verifies an uploaded snapshot against the original bytes.
type IntegrityChecker interface {
	Verify(ctx context.Context, articleID, snapshotURL string, original []byte, originalSize int64) types.IntegrityCheck
}

// Runner executes the article pipeline: create (duplicate gate, extraction,
// persistence) and snapshot (render, destination planning, upload,
// verification).
type Runner struct {
	store     Store
	extractor Extractor
	detector  *deduplication.Detector
	generator *snapshots.Generator
	uploads   ProviderResolver
	verifier  IntegrityChecker
}

// NewRunner wires a pipeline runner from its collaborators.
func NewRunner(store Store, extractor Extractor, generator *snapshots.Generator, uploads ProviderResolver, verifier IntegrityChecker) *Runner {
	return &Runner{
		store:     store,
		extractor: extractor,
		detector:  deduplication.NewDetector(store),
		generator: generator,
		uploads:   uploads,
		verifier:  verifier,
	}
}

// CreateArticle saves a URL for a user. A duplicate URL returns the existing
// article and a DUPLICATE_ARTICLE error; extraction failures never fail the
// create, they degrade to fallback content.
func (r *Runner) CreateArticle(ctx context.Context, userID, rawURL string, tags []string) (*types.Article, error) {
	if rawURL == "" {
		return nil, types.NewError(types.CodeInvalidInput, "url is required")
	}
	if u, err := url.Parse(rawURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, types.NewError(types.CodeInvalidInput, fmt.Sprintf("invalid url %q", rawURL))
	}

	existing, err := r.detector.FindDuplicate(ctx, userID, rawURL)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		e := types.NewError(types.CodeDuplicateArticle, "article already saved")
		e.Details = existing.ID
		return existing, e
	}

	content := r.extractor.Extract(ctx, rawURL, extraction.Options{UsePrimary: true})
	if content.ExtractionError != "" {
		log.Printf("extraction degraded for %s (%s): %s", rawURL, content.ExtractionMethod, content.ExtractionError)
	}

	if tags == nil {
		tags = []string{}
	}
	now := time.Now().UTC()
	article := &types.Article{
		ID:                 types.NewArticleID(),
		UserID:             userID,
		URL:                rawURL,
		Title:              content.Title,
		Author:             content.Author,
		Content:            content.Content,
		Excerpt:            content.Excerpt,
		ImageURL:           content.ImageURL,
		Tags:               tags,
		WordCount:          content.WordCount,
		ReadingTimeMinutes: content.ReadingTimeMinutes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := r.store.SaveArticle(ctx, article); err != nil {
		return nil, err
	}
	if err := r.store.AddArticleToUser(ctx, userID, article.ID); err != nil {
		return nil, err
	}
	return article, nil
}

// CheckDuplicate reports whether the user already saved this URL, returning
// the existing article when so.
func (r *Runner) CheckDuplicate(ctx context.Context, userID, rawURL string) (*types.Article, error) {
	if rawURL == "" {
		return nil, types.NewError(types.CodeInvalidInput, "url is required")
	}
	return r.detector.FindDuplicate(ctx, userID, rawURL)
}

// SnapshotOutcome is the combined result of one render-and-upload run.
type SnapshotOutcome struct {
	Result   types.SnapshotResult
	CloudURL string
	Uploaded bool
	Check    *types.IntegrityCheck
}

// SnapshotArticle renders one format and optionally uploads it to the user's
// active cloud connection. The caller owns the session and must release it
// on every exit path.
func (r *Runner) SnapshotArticle(ctx context.Context, article *types.Article, format types.Format, styling *types.StylingOptions, session snapshots.RenderSession, uploadToCloud bool) (SnapshotOutcome, error) {
	result, err := r.generator.Generate(ctx, format, article, session, styling)
	if err != nil {
		return SnapshotOutcome{}, err
	}

	outcome := SnapshotOutcome{Result: result}
	if !uploadToCloud {
		return outcome, nil
	}

	conn, err := r.store.ActiveConnection(ctx, article.UserID)
	if err != nil {
		return outcome, err
	}
	if conn == nil {
		return outcome, types.NewError(types.CodeUploadError, "no active storage connection")
	}

	provider, err := r.uploads.ForProvider(conn.Provider)
	if err != nil {
		return outcome, err
	}

	accessToken, err := r.resolveToken(ctx, conn, provider)
	if err != nil {
		return outcome, err
	}

	settings, err := r.store.GetSettings(ctx, article.UserID)
	if err != nil {
		return outcome, err
	}
	var structure *types.FolderStructure
	if settings != nil {
		structure = settings.FolderStructure
	}

	folderPath := folders.Plan(folders.PathMeta{
		Title:   article.Title,
		URL:     article.URL,
		Tags:    article.Tags,
		SavedAt: article.CreatedAt,
	}, structure)

	uploadCtx, cancel := context.WithTimeout(ctx, config.UploadTimeout)
	uploaded, err := provider.Upload(uploadCtx, accessToken, result.Filename, result.MimeType, result.Content, folderPath)
	cancel()
	if err != nil {
		return outcome, err
	}

	outcome.Uploaded = true
	outcome.CloudURL = uploaded.ViewLink

	if article.SnapshotLinks == nil {
		article.SnapshotLinks = make(map[string]string)
	}
	article.SnapshotLinks[string(format)] = uploaded.ViewLink
	article.StorageProvider = conn.Provider
	article.Touch()
	if err := r.store.SaveArticle(ctx, article); err != nil {
		return outcome, err
	}

	// Integrity verification is an audit step: a mismatch is recorded, not
	// rolled back, and a failed check never fails the snapshot request.
	if uploaded.ViewLink != "" {
		check := r.verifier.Verify(ctx, article.ID, uploaded.ViewLink, result.Content, result.Size)
		outcome.Check = &check
		if !check.IsValid {
			log.Printf("integrity mismatch for article %s snapshot %s (original %d bytes, verified %d)",
				article.ID, format, check.OriginalSize, check.VerifiedSize)
		}
		if err := r.store.AppendIntegrityCheck(ctx, check); err != nil {
			log.Printf("failed to record integrity check for article %s: %v", article.ID, err)
		}
	}

	return outcome, nil
}

// resolveToken returns the connection's current access token, refreshing
// through the provider when expired. The decrypted token is scoped to this
// one operation and never cached.
func (r *Runner) resolveToken(ctx context.Context, conn *types.StorageConnection, provider cloudstore.Provider) (string, error) {
	tokens, err := r.store.GetTokens(ctx, conn.ID)
	if err != nil {
		return "", err
	}
	if tokens == nil {
		return "", types.NewError(types.CodeUploadError, "storage connection has no stored tokens")
	}

	if !tokens.Expired() {
		return tokens.AccessToken, nil
	}
	if tokens.RefreshToken == "" {
		return "", types.NewError(types.CodeUploadError, "access token expired and no refresh token stored")
	}

	accessToken, expiry, err := provider.RefreshToken(ctx, tokens.RefreshToken)
	if err != nil {
		return "", err
	}

	tokens.AccessToken = accessToken
	tokens.Expiry = expiry
	if err := r.store.SaveTokens(ctx, conn.ID, tokens); err != nil {
		log.Printf("failed to persist refreshed tokens for connection %s: %v", conn.ID, err)
	}
	return accessToken, nil
}

// Authorize loads an article and checks ownership: unknown ids are
// NOT_FOUND, foreign ids are FORBIDDEN.
func (r *Runner) Authorize(ctx context.Context, userID, articleID string) (*types.Article, error) {
	article, err := r.store.GetArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, types.NewError(types.CodeNotFound, fmt.Sprintf("Article %s not found", articleID))
	}
	if article.UserID != userID {
		return nil, types.NewError(types.CodeForbidden, fmt.Sprintf("Article %s not owned by requester", articleID))
	}
	return article, nil
}

// Store exposes the underlying store for collaborators wired off the runner.
func (r *Runner) Store() Store { return r.store }

// NewSnapshotJobHandler builds the queue worker callback for fire-and-forget
// snapshot jobs. Each job gets its own deadline and, for browser formats, its
// own rendering session released before the job finishes.
func NewSnapshotJobHandler(runner *Runner, sessions snapshots.SessionFactory) func(ctx context.Context, job *types.SnapshotJob) error {
	return func(ctx context.Context, job *types.SnapshotJob) error {
		ctx, cancel := context.WithTimeout(ctx, config.RenderTimeout+config.UploadTimeout)
		defer cancel()

		article, err := runner.Authorize(ctx, job.UserID, job.ArticleID)
		if err != nil {
			return err
		}

		var session snapshots.RenderSession
		if job.Format.NeedsRenderer() {
			session, err = sessions.New(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := session.Close(); err != nil {
					log.Printf("failed to close rendering session: %v", err)
				}
			}()
		}

		_, err = runner.SnapshotArticle(ctx, article, job.Format, job.Styling, session, job.UploadToCloud)
		return err
	}
}
