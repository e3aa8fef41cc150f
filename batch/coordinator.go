package batch

import (
	"context"
	"errors"
	"fmt"
	"log"

	"stashpad/config"
	"stashpad/pipeline"
	"stashpad/snapshots"
	"stashpad/types"
)

// Coordinator drives one operation across many articles with per-item
// failure isolation: a bad id, a foreign article or a processing error is
// recorded and the loop moves on. The loop never aborts on a single item.
type Coordinator struct {
	runner   *pipeline.Runner
	sessions snapshots.SessionFactory
}

// NewCoordinator wires a coordinator.
func NewCoordinator(runner *pipeline.Runner, sessions snapshots.SessionFactory) *Coordinator {
	return &Coordinator{runner: runner, sessions: sessions}
}

// validOps is the accepted bulk-operation set.
var validOps = map[string]bool{
	types.OpDelete:     true,
	types.OpRetag:      true,
	types.OpArchive:    true,
	types.OpUnarchive:  true,
	types.OpFavorite:   true,
	types.OpUnfavorite: true,
	types.OpResnapshot: true,
}

// Run applies one operation to every id. Requests over the batch cap are
// rejected outright rather than silently truncated.
func (c *Coordinator) Run(ctx context.Context, userID string, ids []string, operation string, params types.BatchParams) (types.BatchResult, error) {
	if len(ids) == 0 {
		return types.BatchResult{}, types.NewError(types.CodeInvalidInput, "articleIds is required")
	}
	if len(ids) > config.MaxBatchSize {
		return types.BatchResult{}, types.NewError(types.CodeInvalidInput,
			fmt.Sprintf("batch size %d exceeds limit of %d", len(ids), config.MaxBatchSize))
	}
	if !validOps[operation] {
		return types.BatchResult{}, types.NewError(types.CodeInvalidInput, fmt.Sprintf("unknown operation %q", operation))
	}

	if operation == types.OpResnapshot {
		return c.RunSnapshots(ctx, userID, ids, params.Format, params.Styling)
	}

	result := types.BatchResult{Operation: operation, Total: len(ids), Errors: []string{}}
	for _, id := range ids {
		if err := c.applyOne(ctx, userID, id, operation, params); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, errorMessage(err))
			continue
		}
		result.Successful++
	}
	return result, nil
}

func (c *Coordinator) applyOne(ctx context.Context, userID, id, operation string, params types.BatchParams) error {
	article, err := c.runner.Authorize(ctx, userID, id)
	if err != nil {
		return err
	}

	store := c.runner.Store()
	switch operation {
	case types.OpDelete:
		return store.DeleteArticle(ctx, userID, id)
	case types.OpRetag:
		if params.MergeTags {
			for _, tag := range params.Tags {
				if !article.HasTag(tag) {
					article.Tags = append(article.Tags, tag)
				}
			}
		} else {
			tags := params.Tags
			if tags == nil {
				tags = []string{}
			}
			article.Tags = tags
		}
	case types.OpArchive:
		article.IsArchived = true
	case types.OpUnarchive:
		article.IsArchived = false
	case types.OpFavorite:
		article.IsFavorite = true
	case types.OpUnfavorite:
		article.IsFavorite = false
	}

	article.Touch()
	return store.SaveArticle(ctx, article)
}

// RunSnapshots renders and uploads one format for every id. PDF/HTML runs
// share a single rendering session across the whole batch and release it
// exactly once, whatever happens inside the loop.
func (c *Coordinator) RunSnapshots(ctx context.Context, userID string, ids []string, format types.Format, styling *types.StylingOptions) (types.BatchResult, error) {
	if len(ids) == 0 {
		return types.BatchResult{}, types.NewError(types.CodeInvalidInput, "articleIds is required")
	}
	if len(ids) > config.MaxBatchSize {
		return types.BatchResult{}, types.NewError(types.CodeInvalidInput,
			fmt.Sprintf("batch size %d exceeds limit of %d", len(ids), config.MaxBatchSize))
	}
	if format == "" {
		return types.BatchResult{}, types.NewError(types.CodeInvalidInput, "format is required")
	}

	var session snapshots.RenderSession
	if format.NeedsRenderer() {
		var err error
		session, err = c.sessions.New(ctx)
		if err != nil {
			return types.BatchResult{}, types.WrapError(types.CodeSnapshotError, "failed to open rendering session", err)
		}
		defer func() {
			if err := session.Close(); err != nil {
				log.Printf("failed to release rendering session: %v", err)
			}
		}()
	}

	result := types.BatchResult{Operation: types.OpResnapshot, Total: len(ids), Errors: []string{}}
	for _, id := range ids {
		article, err := c.runner.Authorize(ctx, userID, id)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, errorMessage(err))
			continue
		}

		if _, err := c.runner.SnapshotArticle(ctx, article, format, styling, session, true); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("Article %s: %s", id, errorMessage(err)))
			continue
		}
		result.Successful++
	}
	return result, nil
}

// errorMessage reports the human-facing message of a per-item failure.
func errorMessage(err error) string {
	var pe *types.PipelineError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}
