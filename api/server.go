package api

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"stashpad/batch"
	"stashpad/config"
	"stashpad/pipeline"
	"stashpad/queue"
	"stashpad/rssimport"
	"stashpad/snapshots"
	"stashpad/types"
)

// Server holds the collaborators the HTTP handlers dispatch into.
type Server struct {
	runner   *pipeline.Runner
	batches  *batch.Coordinator
	previews *snapshots.PreviewStore
	sessions snapshots.SessionFactory
	importer *rssimport.Importer
	jobs     queue.Queue
}

// NewServer wires the handler set.
func NewServer(runner *pipeline.Runner, batches *batch.Coordinator, previews *snapshots.PreviewStore, sessions snapshots.SessionFactory, importer *rssimport.Importer, jobs queue.Queue) *Server {
	return &Server{
		runner:   runner,
		batches:  batches,
		previews: previews,
		sessions: sessions,
		importer: importer,
		jobs:     jobs,
	}
}

// NewRouter constructs a Gin engine with registered routes.
func (s *Server) NewRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	s.RegisterArticleRoutes(r)
	s.RegisterSnapshotRoutes(r)
	s.RegisterImportRoutes(r)
	RegisterHealthRoutes(r)
	return r
}

// acquireSession opens a rendering session when the format needs one. The
// returned release func is safe to defer unconditionally.
func (s *Server) acquireSession(ctx context.Context, format types.Format) (snapshots.RenderSession, func(), error) {
	if !format.NeedsRenderer() {
		return nil, func() {}, nil
	}

	session, err := s.sessions.New(ctx)
	if err != nil {
		return nil, nil, types.WrapError(types.CodeSnapshotError, "failed to open rendering session", err)
	}
	release := func() {
		if err := session.Close(); err != nil {
			log.Printf("failed to close rendering session: %v", err)
		}
	}
	return session, release, nil
}

func validateBatchSize(ids []string) error {
	if len(ids) == 0 {
		return types.NewError(types.CodeInvalidInput, "articleIds is required")
	}
	if len(ids) > config.MaxBatchSize {
		return types.NewError(types.CodeInvalidInput,
			fmt.Sprintf("batch size %d exceeds limit of %d", len(ids), config.MaxBatchSize))
	}
	return nil
}

// runBatchSnapshots executes an acknowledged batch in the background with its
// own deadline, detached from the request that started it.
func (s *Server) runBatchSnapshots(userID string, ids []string, format types.Format, styling *types.StylingOptions) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(len(ids))*config.RenderTimeout)
	defer cancel()

	result, err := s.batches.RunSnapshots(ctx, userID, ids, format, styling)
	if err != nil {
		log.Printf("batch snapshot run failed for user %s: %v", userID, err)
		return
	}
	log.Printf("batch snapshot for user %s: %d succeeded, %d failed", userID, result.Successful, result.Failed)
}
