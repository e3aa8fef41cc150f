package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stashpad/types"
)

// RegisterArticleRoutes registers the article CRUD and duplicate-check routes.
func (s *Server) RegisterArticleRoutes(r *gin.Engine) {
	r.POST("/articles", s.handleCreateArticle)
	r.GET("/articles", s.handleListArticles)
	r.GET("/articles/:id", s.handleGetArticle)
	r.PATCH("/articles/:id", s.handleUpdateArticle)
	r.DELETE("/articles/:id", s.handleDeleteArticle)
	r.POST("/articles/check-duplicate", s.handleCheckDuplicate)
}

type createArticleRequest struct {
	URL  string   `json:"url"`
	Tags []string `json:"tags"`
}

// handleCreateArticle saves a URL. A duplicate comes back 409 with the
// existing article attached so the caller can redirect instead of recreate.
// When the user's settings ask for automatic snapshots, a job is queued after
// the response; the request never waits on it.
func (s *Server) handleCreateArticle(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req createArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, types.NewError(types.CodeInvalidInput, "invalid request body"))
		return
	}

	article, err := s.runner.CreateArticle(c.Request.Context(), userID, req.URL, req.Tags)
	if err != nil {
		if types.IsCode(err, types.CodeDuplicateArticle) {
			c.JSON(http.StatusConflict, envelope{
				Data: gin.H{"existing_article": article},
				Error: &errBody{
					Code:    types.CodeDuplicateArticle,
					Message: "article already saved",
					Details: article.ID,
				},
			})
			return
		}
		respondError(c, err)
		return
	}

	s.maybeEnqueueSnapshot(userID, article)
	respondData(c, http.StatusCreated, article)
}

// maybeEnqueueSnapshot schedules the automatic snapshot for a fresh article
// when the user opted in. Failures are logged, never surfaced.
func (s *Server) maybeEnqueueSnapshot(userID string, article *types.Article) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	settings, err := s.runner.Store().GetSettings(ctx, userID)
	if err != nil {
		log.Printf("could not load settings for auto snapshot of %s: %v", article.ID, err)
		return
	}
	if settings == nil || !settings.AutoSnapshot {
		return
	}

	format, err := types.ParseFormat(settings.SnapshotFormat)
	if err != nil {
		format = types.FormatPDF
	}

	job := types.SnapshotJob{
		ArticleID:     article.ID,
		UserID:        userID,
		Format:        format,
		UploadToCloud: settings.UploadToCloud,
	}
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		log.Printf("could not enqueue auto snapshot for %s: %v", article.ID, err)
	}
}

func (s *Server) handleListArticles(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	articles, err := s.runner.Store().ListArticles(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, articles)
}

func (s *Server) handleGetArticle(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	article, err := s.runner.Authorize(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, article)
}

type updateArticleRequest struct {
	IsFavorite   *bool     `json:"is_favorite"`
	IsArchived   *bool     `json:"is_archived"`
	Tags         *[]string `json:"tags"`
	ReadProgress *int      `json:"read_progress"`
}

// handleUpdateArticle applies a partial update. Absent fields are untouched.
func (s *Server) handleUpdateArticle(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req updateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, types.NewError(types.CodeInvalidInput, "invalid request body"))
		return
	}
	if req.ReadProgress != nil && (*req.ReadProgress < 0 || *req.ReadProgress > 100) {
		respondError(c, types.NewError(types.CodeInvalidInput, "read_progress must be between 0 and 100"))
		return
	}

	article, err := s.runner.Authorize(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if req.IsFavorite != nil {
		article.IsFavorite = *req.IsFavorite
	}
	if req.IsArchived != nil {
		article.IsArchived = *req.IsArchived
	}
	if req.Tags != nil {
		article.Tags = *req.Tags
	}
	if req.ReadProgress != nil {
		article.ReadProgress = *req.ReadProgress
	}
	article.Touch()

	if err := s.runner.Store().SaveArticle(c.Request.Context(), article); err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, article)
}

func (s *Server) handleDeleteArticle(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if _, err := s.runner.Authorize(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	if err := s.runner.Store().DeleteArticle(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"deleted": c.Param("id")})
}

type checkDuplicateRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleCheckDuplicate(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req checkDuplicateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, types.NewError(types.CodeInvalidInput, "invalid request body"))
		return
	}

	existing, err := s.runner.CheckDuplicate(c.Request.Context(), userID, req.URL)
	if err != nil {
		respondError(c, err)
		return
	}

	if existing == nil {
		respondData(c, http.StatusOK, gin.H{"is_duplicate": false})
		return
	}
	respondData(c, http.StatusOK, gin.H{
		"is_duplicate":     true,
		"existing_article": existing,
	})
}
