package filestats

import (
	"errors"
	"fmt"

	"reviewstats.app/listener/internal/domain"
)

// Gerrit pseudo-files that are not part of the change content.
const (
	CommitMessagePath = "/COMMIT_MSG"
	MergeListPath     = "/MERGE_LIST"
)

// ErrUnknownCategory means the review server reported a change type outside
// the fixed category set, i.e. its schema has drifted.
var ErrUnknownCategory = errors.New("unknown file change category")

// Aggregate totals insertions, deletions and file counts per category.
func Aggregate(files []domain.FileChange) (domain.FileChangeStats, error) {
	var stats domain.FileChangeStats
	for _, f := range files {
		if f.Path == CommitMessagePath || f.Path == MergeListPath {
			continue
		}

		cat, ok := domain.ParseFileCategory(f.ChangeType)
		if !ok {
			return domain.FileChangeStats{}, fmt.Errorf("%w: %q (file %s)", ErrUnknownCategory, f.ChangeType, f.Path)
		}

		stats[cat].LinesAdded += f.Insertions
		stats[cat].LinesRemoved += f.Deletions
		stats[cat].Count++
	}
	return stats, nil
}
