package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stashpad/snapshots"
	"stashpad/types"
)

// RegisterSnapshotRoutes registers snapshot, preview and batch routes.
func (s *Server) RegisterSnapshotRoutes(r *gin.Engine) {
	r.POST("/articles/:id/snapshot", s.handleSnapshot)
	r.POST("/articles/:id/snapshot/preview", s.handleSnapshotPreview)
	r.GET("/articles/preview/:previewId", s.handleGetPreview)
	r.POST("/articles/batch/snapshot", s.handleBatchSnapshot)
	r.POST("/articles/batch/operations", s.handleBatchOperations)
}

type snapshotRequest struct {
	Format        string                `json:"format"`
	Styling       *types.StylingOptions `json:"styling"`
	UploadToCloud bool                  `json:"uploadToCloud"`
}

// handleSnapshot renders one format synchronously, optionally uploading to
// the user's active cloud connection. The render session, when one is needed,
// lives exactly as long as this request.
func (s *Server) handleSnapshot(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req snapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, types.NewError(types.CodeInvalidInput, "invalid request body"))
		return
	}
	format, err := types.ParseFormat(req.Format)
	if err != nil {
		respondError(c, types.NewError(types.CodeInvalidInput, err.Error()))
		return
	}

	ctx := c.Request.Context()
	article, err := s.runner.Authorize(ctx, userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	session, release, err := s.acquireSession(ctx, format)
	if err != nil {
		respondError(c, err)
		return
	}
	defer release()

	outcome, err := s.runner.SnapshotArticle(ctx, article, format, req.Styling, session, req.UploadToCloud)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{
		"format":          format,
		"filename":        outcome.Result.Filename,
		"size":            outcome.Result.Size,
		"mime_type":       outcome.Result.MimeType,
		"cloud_url":       outcome.CloudURL,
		"uploaded_to_cloud": outcome.Uploaded,
	})
}

type previewRequest struct {
	Format  string                `json:"format"`
	Styling *types.StylingOptions `json:"styling"`
}

// handleSnapshotPreview renders a format and parks the bytes for one hour
// under a preview id instead of uploading anywhere.
func (s *Server) handleSnapshotPreview(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, types.NewError(types.CodeInvalidInput, "invalid request body"))
		return
	}
	format, err := types.ParseFormat(req.Format)
	if err != nil {
		respondError(c, types.NewError(types.CodeInvalidInput, err.Error()))
		return
	}

	ctx := c.Request.Context()
	article, err := s.runner.Authorize(ctx, userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	session, release, err := s.acquireSession(ctx, format)
	if err != nil {
		respondError(c, err)
		return
	}
	defer release()

	outcome, err := s.runner.SnapshotArticle(ctx, article, format, req.Styling, session, false)
	if err != nil {
		respondError(c, err)
		return
	}

	ref, err := s.previews.Put(ctx, article.ID, outcome.Result, format)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, ref)
}

// handleGetPreview streams a parked preview's raw bytes. Content type comes
// from a magic-number sniff of the stored blob, not from the request.
func (s *Server) handleGetPreview(c *gin.Context) {
	ref, content, err := s.previews.Get(c.Request.Context(), c.Param("previewId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="`+ref.Filename+`"`)
	c.Data(http.StatusOK, snapshots.SniffContentType(content), content)
}

type batchSnapshotRequest struct {
	ArticleIDs []string              `json:"articleIds"`
	Format     string                `json:"format"`
	Styling    *types.StylingOptions `json:"styling"`
}

// handleBatchSnapshot acknowledges immediately and processes the batch in the
// background; per-item failures are logged, not surfaced.
func (s *Server) handleBatchSnapshot(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req batchSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, types.NewError(types.CodeInvalidInput, "invalid request body"))
		return
	}
	format, err := types.ParseFormat(req.Format)
	if err != nil {
		respondError(c, types.NewError(types.CodeInvalidInput, err.Error()))
		return
	}
	if err := validateBatchSize(req.ArticleIDs); err != nil {
		respondError(c, err)
		return
	}

	go s.runBatchSnapshots(userID, req.ArticleIDs, format, req.Styling)

	respondData(c, http.StatusOK, gin.H{
		"accepted": len(req.ArticleIDs),
		"format":   format,
	})
}

type batchOperationsRequest struct {
	ArticleIDs []string          `json:"articleIds"`
	Operation  string            `json:"operation"`
	Params     types.BatchParams `json:"params"`
}

// handleBatchOperations runs a bulk operation synchronously and returns the
// per-item accounting.
func (s *Server) handleBatchOperations(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req batchOperationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, types.NewError(types.CodeInvalidInput, "invalid request body"))
		return
	}

	result, err := s.batches.Run(c.Request.Context(), userID, req.ArticleIDs, req.Operation, req.Params)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, result)
}
