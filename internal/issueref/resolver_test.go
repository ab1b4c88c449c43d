package issueref_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"reviewstats.app/listener/internal/issueref"
)

type mockTracker struct {
	issueTypeFn func(ctx context.Context, issueID string) (string, error)
	calls       []string
}

func (m *mockTracker) IssueType(ctx context.Context, issueID string) (string, error) {
	m.calls = append(m.calls, issueID)
	return m.issueTypeFn(ctx, issueID)
}

var _ = Describe("Extract", func() {
	DescribeTable("finds ticket ids left to right",
		func(text string, want []string) {
			Expect(issueref.Extract(text)).To(Equal(want))
		},
		Entry("single id", "Fix login bug ABC-123", []string{"ABC-123"}),
		Entry("duplicates kept", "ABC-1 and XYZ-22 then ABC-1", []string{"ABC-1", "XYZ-22", "ABC-1"}),
		Entry("embedded in punctuation", "[PROJ-7]: tidy (OPS-42)", []string{"PROJ-7", "OPS-42"}),
		Entry("lowercase ignored", "abc-123 fix", []string{}),
		Entry("no ids", "Refactor parser", []string{}),
		Entry("empty text", "", []string{}),
	)
})

var _ = Describe("Resolver", func() {
	var (
		ctx     context.Context
		tracker *mockTracker
	)

	BeforeEach(func() {
		ctx = context.Background()
		tracker = &mockTracker{
			issueTypeFn: func(_ context.Context, id string) (string, error) {
				switch id {
				case "ABC-123":
					return "Bug", nil
				case "XYZ-9":
					return "Story", nil
				default:
					return "", errors.New("not found")
				}
			},
		}
	})

	It("returns aligned ids and types", func() {
		ids, types := issueref.NewResolver(tracker).Resolve(ctx, "XYZ-9 touches ABC-123")

		Expect(ids).To(Equal([]string{"XYZ-9", "ABC-123"}))
		Expect(types).To(HaveLen(2))
		Expect(*types[0]).To(Equal("Story"))
		Expect(*types[1]).To(Equal("Bug"))
	})

	It("looks up each distinct id once per call", func() {
		ids, types := issueref.NewResolver(tracker).Resolve(ctx, "Fix login bug ABC-123 ABC-123")

		Expect(ids).To(Equal([]string{"ABC-123", "ABC-123"}))
		Expect(*types[0]).To(Equal("Bug"))
		Expect(*types[1]).To(Equal("Bug"))
		Expect(tracker.calls).To(Equal([]string{"ABC-123"}))
	})

	It("does not memoize across calls", func() {
		r := issueref.NewResolver(tracker)
		r.Resolve(ctx, "ABC-123")
		r.Resolve(ctx, "ABC-123")

		Expect(tracker.calls).To(Equal([]string{"ABC-123", "ABC-123"}))
	})

	It("leaves a nil type when a lookup fails", func() {
		ids, types := issueref.NewResolver(tracker).Resolve(ctx, "ABC-123 NOPE-1 NOPE-1")

		Expect(ids).To(Equal([]string{"ABC-123", "NOPE-1", "NOPE-1"}))
		Expect(*types[0]).To(Equal("Bug"))
		Expect(types[1]).To(BeNil())
		Expect(types[2]).To(BeNil())
		Expect(tracker.calls).To(Equal([]string{"ABC-123", "NOPE-1"}))
	})

	It("returns empty non-nil lists for text without ids", func() {
		ids, types := issueref.NewResolver(tracker).Resolve(ctx, "Refactor parser")

		Expect(ids).NotTo(BeNil())
		Expect(ids).To(BeEmpty())
		Expect(types).NotTo(BeNil())
		Expect(types).To(BeEmpty())
		Expect(tracker.calls).To(BeEmpty())
	})
})
