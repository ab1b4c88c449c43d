package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind is the Gerrit stream-events type tag (e.g. "patchset-created").
type Kind string

const (
	KindPatchsetCreated Kind = "patchset-created"
	KindReviewerAdded   Kind = "reviewer-added"
	KindChangeMerged    Kind = "change-merged"
	KindCommentAdded    Kind = "comment-added"
	KindError           Kind = "error-event"
)

var ErrNoChange = errors.New("event carries no change")

// Event is the sealed set of review events the listener understands.
// Each variant carries only the fields Gerrit sends for that kind.
type Event interface {
	Kind() Kind
	isEvent()
}

func (PatchsetCreated) isEvent() {}
func (ReviewerAdded) isEvent()   {}
func (ChangeMerged) isEvent()    {}
func (CommentAdded) isEvent()    {}
func (ChangeEvent) isEvent()     {}
func (ErrorEvent) isEvent()      {}

type Account struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

type Change struct {
	Number  int64    `json:"number"`
	Project string   `json:"project"`
	Branch  string   `json:"branch"`
	Subject string   `json:"subject"`
	Owner   *Account `json:"owner,omitempty"`
}

type PatchSet struct {
	Number         int      `json:"number"`
	SizeInsertions int      `json:"sizeInsertions"`
	SizeDeletions  int      `json:"sizeDeletions"`
	Author         *Account `json:"author,omitempty"`
}

// Approval is one label vote attached to a comment-added event.
// OldValue is only present when the vote actually changed.
type Approval struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Value       string  `json:"value"`
	OldValue    *string `json:"oldValue,omitempty"`
}

// ChangeScope is shared by every change-scoped variant.
type ChangeScope struct {
	Change   Change
	PatchSet PatchSet
}

type PatchsetCreated struct {
	ChangeScope
	Uploader *Account
}

type ReviewerAdded struct {
	ChangeScope
	Reviewer Account
}

type ChangeMerged struct {
	ChangeScope
	Submitter Account
}

type CommentAdded struct {
	ChangeScope
	Author    *Account
	Approvals []Approval
	Comment   string
}

// ChangeEvent covers change-scoped kinds with no kind-specific fields
// (change-abandoned, change-restored, topic-changed, ...).
type ChangeEvent struct {
	ChangeScope
	Type Kind
}

// ErrorEvent signals that the upstream stream failed.
type ErrorEvent struct {
	Reason string
}

func (PatchsetCreated) Kind() Kind { return KindPatchsetCreated }
func (ReviewerAdded) Kind() Kind   { return KindReviewerAdded }
func (ChangeMerged) Kind() Kind    { return KindChangeMerged }
func (CommentAdded) Kind() Kind    { return KindCommentAdded }
func (e ChangeEvent) Kind() Kind   { return e.Type }
func (ErrorEvent) Kind() Kind      { return KindError }

// Scope returns the change scope of a change-scoped event.
func Scope(ev Event) (ChangeScope, bool) {
	switch e := ev.(type) {
	case PatchsetCreated:
		return e.ChangeScope, true
	case ReviewerAdded:
		return e.ChangeScope, true
	case ChangeMerged:
		return e.ChangeScope, true
	case CommentAdded:
		return e.ChangeScope, true
	case ChangeEvent:
		return e.ChangeScope, true
	default:
		return ChangeScope{}, false
	}
}

// wireEvent mirrors the JSON emitted by `gerrit stream-events` and the webhooks plugin.
type wireEvent struct {
	Type      Kind       `json:"type"`
	Change    *Change    `json:"change,omitempty"`
	PatchSet  *PatchSet  `json:"patchSet,omitempty"`
	Author    *Account   `json:"author,omitempty"`
	Uploader  *Account   `json:"uploader,omitempty"`
	Reviewer  *Account   `json:"reviewer,omitempty"`
	Submitter *Account   `json:"submitter,omitempty"`
	Approvals []Approval `json:"approvals,omitempty"`
	Comment   string     `json:"comment,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// ParseEvent decodes one raw event payload into its variant.
func ParseEvent(raw []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}
	if w.Type == "" {
		return nil, fmt.Errorf("decoding event: missing type")
	}
	if w.Type == KindError {
		return ErrorEvent{Reason: w.Reason}, nil
	}

	if w.Change == nil {
		return nil, fmt.Errorf("%s: %w", w.Type, ErrNoChange)
	}
	scope := ChangeScope{Change: *w.Change}
	if w.PatchSet != nil {
		scope.PatchSet = *w.PatchSet
	}

	switch w.Type {
	case KindPatchsetCreated:
		return PatchsetCreated{ChangeScope: scope, Uploader: w.Uploader}, nil
	case KindReviewerAdded:
		if w.Reviewer == nil {
			return nil, fmt.Errorf("%s: missing reviewer", w.Type)
		}
		return ReviewerAdded{ChangeScope: scope, Reviewer: *w.Reviewer}, nil
	case KindChangeMerged:
		if w.Submitter == nil {
			return nil, fmt.Errorf("%s: missing submitter", w.Type)
		}
		return ChangeMerged{ChangeScope: scope, Submitter: *w.Submitter}, nil
	case KindCommentAdded:
		return CommentAdded{
			ChangeScope: scope,
			Author:      w.Author,
			Approvals:   w.Approvals,
			Comment:     w.Comment,
		}, nil
	default:
		return ChangeEvent{ChangeScope: scope, Type: w.Type}, nil
	}
}
