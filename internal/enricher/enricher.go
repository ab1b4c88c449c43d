package enricher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"reviewstats.app/listener/common/logger"
	"reviewstats.app/listener/internal/domain"
	"reviewstats.app/listener/internal/filestats"
)

// ErrTerminalEvent is returned for the upstream error-event. The caller must
// stop consuming instead of skipping it.
var ErrTerminalEvent = errors.New("terminal error-event received")

const (
	syntheticApprovalType  = "comment-added"
	syntheticApprovalValue = "0"
)

// ReviewServer lists the files of a change's current revision.
type ReviewServer interface {
	FilesForChange(ctx context.Context, changeID int64) ([]domain.FileChange, error)
}

// IssueResolver extracts and resolves ticket references in free text.
type IssueResolver interface {
	Resolve(ctx context.Context, text string) (ids []string, types []*string)
}

type Enricher struct {
	review ReviewServer
	issues IssueResolver
}

func New(review ReviewServer, issues IssueResolver) *Enricher {
	return &Enricher{review: review, issues: issues}
}

// Enrich builds the analytics record for one event.
func (e *Enricher) Enrich(ctx context.Context, ev domain.Event) (domain.EnrichedRecord, error) {
	if errEv, ok := ev.(domain.ErrorEvent); ok {
		return domain.EnrichedRecord{}, fmt.Errorf("%w: %s", ErrTerminalEvent, errEv.Reason)
	}

	scope, ok := domain.Scope(ev)
	if !ok {
		return domain.EnrichedRecord{}, fmt.Errorf("%s: %w", ev.Kind(), domain.ErrNoChange)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ChangeID:  logger.Ptr(scope.Change.Number),
		EventType: logger.Ptr(string(ev.Kind())),
		Component: "reviewstats.enricher",
	})

	rec := domain.EnrichedRecord{
		EventType:              ev.Kind(),
		ChangeID:               scope.Change.Number,
		Project:                scope.Change.Project,
		Branch:                 scope.Change.Branch,
		Subject:                scope.Change.Subject,
		PatchsetNumber:         scope.PatchSet.Number,
		PatchsetSizeInsertions: scope.PatchSet.SizeInsertions,
		PatchsetSizeDeletions:  scope.PatchSet.SizeDeletions,
	}
	if scope.Change.Owner != nil {
		rec.Owner = optional(scope.Change.Owner.Username)
	}

	if author := resolveAuthor(ev, scope); author != nil {
		rec.AuthorUsername = optional(author.Username)
		rec.AuthorEmail = optional(author.Email)
	}

	switch ev := ev.(type) {
	case domain.ReviewerAdded:
		rec.Reviewers = optional(ev.Reviewer.Username)
	case domain.ChangeMerged:
		rec.Submitter = optional(ev.Submitter.Username)
	case domain.CommentAdded:
		applyApproval(&rec, ev)
	}

	rec.IssueIDs, rec.IssueIDTypes = e.issues.Resolve(ctx, rec.Subject)

	files, err := e.review.FilesForChange(ctx, rec.ChangeID)
	if err != nil {
		return domain.EnrichedRecord{}, fmt.Errorf("listing files for change %d: %w", rec.ChangeID, err)
	}
	stats, err := filestats.Aggregate(files)
	if err != nil {
		return domain.EnrichedRecord{}, fmt.Errorf("aggregating files for change %d: %w", rec.ChangeID, err)
	}
	rec.FileChangeStats = stats

	slog.DebugContext(ctx, "event enriched",
		"issue_ids", rec.IssueIDs,
		"file_count", len(files))

	return rec, nil
}

// resolveAuthor prefers the event-level author and falls back to the patchset author.
func resolveAuthor(ev domain.Event, scope domain.ChangeScope) *domain.Account {
	if c, ok := ev.(domain.CommentAdded); ok && c.Author != nil {
		return c.Author
	}
	return scope.PatchSet.Author
}

// applyApproval records the first genuine vote (an entry with oldValue).
// Without one, a non-empty approval list is recorded as a zero-value comment.
func applyApproval(rec *domain.EnrichedRecord, ev domain.CommentAdded) {
	if len(ev.Approvals) == 0 {
		return
	}

	if ev.Author != nil {
		rec.ApprovalApprover = optional(ev.Author.Username)
	}

	for _, a := range ev.Approvals {
		if a.OldValue == nil {
			continue
		}
		rec.ApprovalType = ptr(a.Type)
		rec.ApprovalValue = ptr(a.Value)
		rec.ApprovalDescription = ptr(a.Description)
		return
	}

	rec.ApprovalType = ptr(syntheticApprovalType)
	rec.ApprovalValue = ptr(syntheticApprovalValue)
	rec.ApprovalDescription = ptr(syntheticApprovalType)
}

func ptr[T any](v T) *T {
	return &v
}

// optional maps a field Gerrit left out (empty string) to null.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
