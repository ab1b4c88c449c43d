package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// FileCategory is the Gerrit file change type.
type FileCategory int

const (
	FileAdded FileCategory = iota
	FileModified
	FileDeleted
	FileRenamed
	FileCopied
	FileRewrite

	fileCategoryCount
)

var fileCategoryNames = [fileCategoryCount]string{
	FileAdded:    "ADDED",
	FileModified: "MODIFIED",
	FileDeleted:  "DELETED",
	FileRenamed:  "RENAMED",
	FileCopied:   "COPIED",
	FileRewrite:  "REWRITE",
}

// FileCategories lists every category in declaration order.
func FileCategories() []FileCategory {
	cats := make([]FileCategory, fileCategoryCount)
	for i := range cats {
		cats[i] = FileCategory(i)
	}
	return cats
}

func (c FileCategory) String() string {
	if c < 0 || c >= fileCategoryCount {
		return fmt.Sprintf("FileCategory(%d)", int(c))
	}
	return fileCategoryNames[c]
}

// ParseFileCategory maps a Gerrit change type label onto a category.
func ParseFileCategory(s string) (FileCategory, bool) {
	for i, name := range fileCategoryNames {
		if name == s {
			return FileCategory(i), true
		}
	}
	return 0, false
}

// FileChange is one entry of a revision's file list.
type FileChange struct {
	Path       string
	ChangeType string
	Insertions int
	Deletions  int
}

type FileStats struct {
	LinesAdded   int `json:"lines_added"`
	LinesRemoved int `json:"lines_removed"`
	Count        int `json:"count"`
}

// FileChangeStats holds one bucket per category. The zero value has every
// category present at zero.
type FileChangeStats [fileCategoryCount]FileStats

func (s FileChangeStats) Get(c FileCategory) FileStats {
	return s[c]
}

func (s FileChangeStats) MarshalJSON() ([]byte, error) {
	out := make(map[string]FileStats, fileCategoryCount)
	for i, st := range s {
		out[fileCategoryNames[i]] = st
	}
	return json.Marshal(out)
}

func (s *FileChangeStats) UnmarshalJSON(data []byte) error {
	var in map[string]FileStats
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	var out FileChangeStats
	for name, st := range in {
		c, ok := ParseFileCategory(name)
		if !ok {
			return fmt.Errorf("unknown file category %q", name)
		}
		out[c] = st
	}
	*s = out
	return nil
}

// EnrichedRecord is the analytics document built for one review event.
type EnrichedRecord struct {
	EventType Kind  `json:"event_type"`
	ChangeID  int64 `json:"change_id"`

	AuthorUsername *string `json:"author_username"`
	AuthorEmail    *string `json:"author_email"`

	Project                string  `json:"project"`
	Owner                  *string `json:"owner"`
	Branch                 string  `json:"branch"`
	PatchsetNumber         int     `json:"patchset_number"`
	Subject                string  `json:"subject"`
	PatchsetSizeInsertions int     `json:"patchset_size_insertions"`
	PatchsetSizeDeletions  int     `json:"patchset_size_deletions"`

	Reviewers *string `json:"reviewers,omitempty"`
	Submitter *string `json:"submitter,omitempty"`

	ApprovalApprover    *string `json:"approval_approver,omitempty"`
	ApprovalType        *string `json:"approval_type,omitempty"`
	ApprovalValue       *string `json:"approval_value,omitempty"`
	ApprovalDescription *string `json:"approval_description,omitempty"`

	IssueIDs     []string  `json:"issue_ids"`
	IssueIDTypes []*string `json:"issue_id_types"`

	FileChangeStats FileChangeStats `json:"file_change_stats"`

	IngestedAt time.Time `json:"ingested_at"`
}
