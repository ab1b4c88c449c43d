package tracker

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the tracker has no ticket with the given id.
var ErrNotFound = errors.New("ticket not found")

// Tracker resolves a ticket identifier (e.g. "ABC-123") to its issue type name.
type Tracker interface {
	IssueType(ctx context.Context, issueID string) (string, error)
}
