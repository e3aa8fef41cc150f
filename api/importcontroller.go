package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stashpad/types"
)

// RegisterImportRoutes registers the feed-import route.
func (s *Server) RegisterImportRoutes(r *gin.Engine) {
	r.POST("/articles/import/feed", s.handleImportFeed)
}

type importFeedRequest struct {
	FeedURL string   `json:"feedUrl"`
	Tags    []string `json:"tags"`
}

// handleImportFeed saves every entry of an RSS/Atom feed as an article.
func (s *Server) handleImportFeed(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req importFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, types.NewError(types.CodeInvalidInput, "invalid request body"))
		return
	}

	result, err := s.importer.ImportFeed(c.Request.Context(), userID, req.FeedURL, req.Tags)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, result)
}
