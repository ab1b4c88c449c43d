package issueref

import (
	"context"
	"log/slog"
	"regexp"
)

var issueIDPattern = regexp.MustCompile(`[A-Z]+-[0-9]+`)

// Tracker resolves a ticket identifier to its issue type name.
type Tracker interface {
	IssueType(ctx context.Context, issueID string) (string, error)
}

// Extract returns every ticket identifier in text, left to right, duplicates kept.
func Extract(text string) []string {
	ids := issueIDPattern.FindAllString(text, -1)
	if ids == nil {
		return []string{}
	}
	return ids
}

type Resolver struct {
	tracker Tracker
}

func NewResolver(tracker Tracker) *Resolver {
	return &Resolver{tracker: tracker}
}

// Resolve extracts the ticket ids in text and looks up each one's type.
// types is aligned with ids; a failed lookup leaves a nil entry.
func (r *Resolver) Resolve(ctx context.Context, text string) (ids []string, types []*string) {
	ids = Extract(text)
	types = make([]*string, len(ids))

	seen := make(map[string]*string, len(ids))
	for i, id := range ids {
		if t, ok := seen[id]; ok {
			types[i] = t
			continue
		}

		name, err := r.tracker.IssueType(ctx, id)
		if err != nil {
			slog.WarnContext(ctx, "issue type lookup failed", "issue_id", id, "error", err)
			seen[id] = nil
			continue
		}
		types[i] = &name
		seen[id] = &name
	}
	return ids, types
}
