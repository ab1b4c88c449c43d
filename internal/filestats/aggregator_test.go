package filestats_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"reviewstats.app/listener/internal/domain"
	"reviewstats.app/listener/internal/filestats"
)

var _ = Describe("Aggregate", func() {
	It("totals lines and counts per category, skipping pseudo-files", func() {
		files := []domain.FileChange{
			{Path: "/COMMIT_MSG", ChangeType: "ADDED", Insertions: 10},
			{Path: "src/a.go", ChangeType: "MODIFIED", Insertions: 5, Deletions: 2},
			{Path: "src/b.go", ChangeType: "MODIFIED", Insertions: 1, Deletions: 0},
			{Path: "src/c.go", ChangeType: "ADDED", Insertions: 20},
		}

		stats, err := filestats.Aggregate(files)
		Expect(err).NotTo(HaveOccurred())

		Expect(stats.Get(domain.FileModified)).To(Equal(domain.FileStats{LinesAdded: 6, LinesRemoved: 2, Count: 2}))
		Expect(stats.Get(domain.FileAdded)).To(Equal(domain.FileStats{LinesAdded: 20, LinesRemoved: 0, Count: 1}))
		for _, c := range []domain.FileCategory{domain.FileDeleted, domain.FileRenamed, domain.FileCopied, domain.FileRewrite} {
			Expect(stats.Get(c)).To(BeZero())
		}
	})

	It("skips the merge list pseudo-file", func() {
		stats, err := filestats.Aggregate([]domain.FileChange{
			{Path: "/MERGE_LIST", ChangeType: "ADDED", Insertions: 4},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(stats).To(BeZero())
	})

	It("returns all-zero stats for an empty file list", func() {
		stats, err := filestats.Aggregate(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats).To(Equal(domain.FileChangeStats{}))
	})

	It("fails on a change type outside the category set", func() {
		_, err := filestats.Aggregate([]domain.FileChange{
			{Path: "src/a.go", ChangeType: "MODIFIED", Insertions: 1},
			{Path: "src/b.go", ChangeType: "MOVED", Insertions: 1},
		})
		Expect(err).To(MatchError(filestats.ErrUnknownCategory))
		Expect(err.Error()).To(ContainSubstring("MOVED"))
	})

	It("adds deletions as reported", func() {
		stats, err := filestats.Aggregate([]domain.FileChange{
			{Path: "gone.go", ChangeType: "DELETED", Deletions: -7},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Get(domain.FileDeleted).LinesRemoved).To(Equal(-7))
	})

	It("is independent of file order", func() {
		files := []domain.FileChange{
			{Path: "a", ChangeType: "ADDED", Insertions: 3},
			{Path: "b", ChangeType: "RENAMED", Insertions: 1, Deletions: 1},
			{Path: "c", ChangeType: "ADDED", Insertions: 2},
			{Path: "d", ChangeType: "COPIED", Insertions: 9},
		}
		reversed := make([]domain.FileChange, len(files))
		for i, f := range files {
			reversed[len(files)-1-i] = f
		}

		forward, err := filestats.Aggregate(files)
		Expect(err).NotTo(HaveOccurred())
		backward, err := filestats.Aggregate(reversed)
		Expect(err).NotTo(HaveOccurred())
		Expect(forward).To(Equal(backward))
	})

	It("counts every non-pseudo file exactly once", func() {
		files := []domain.FileChange{
			{Path: "/COMMIT_MSG", ChangeType: "ADDED"},
			{Path: "a", ChangeType: "ADDED"},
			{Path: "b", ChangeType: "REWRITE"},
			{Path: "c", ChangeType: "DELETED"},
			{Path: "/MERGE_LIST", ChangeType: "ADDED"},
		}

		stats, err := filestats.Aggregate(files)
		Expect(err).NotTo(HaveOccurred())

		total := 0
		for _, c := range domain.FileCategories() {
			total += stats.Get(c).Count
		}
		Expect(total).To(Equal(3))
	})
})
