package domain_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"reviewstats.app/listener/internal/domain"
)

var _ = Describe("Partition", func() {
	It("names the calendar month in UTC", func() {
		t := time.Date(2026, time.October, 19, 8, 30, 0, 0, time.UTC)
		Expect(domain.PartitionFor(t)).To(Equal(domain.Partition("events-2026-10")))
	})

	It("uses the UTC month for non-UTC timestamps", func() {
		tokyo := time.FixedZone("JST", 9*60*60)
		t := time.Date(2026, time.November, 1, 3, 0, 0, 0, tokyo)
		Expect(domain.PartitionFor(t)).To(Equal(domain.Partition("events-2026-10")))
	})

	It("returns half-open month bounds", func() {
		from, to, err := domain.Partition("events-2026-12").Bounds()
		Expect(err).NotTo(HaveOccurred())
		Expect(from).To(Equal(time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC)))
		Expect(to).To(Equal(time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)))
	})

	It("rejects malformed names", func() {
		_, _, err := domain.Partition("gerrit-2026-10").Bounds()
		Expect(err).To(HaveOccurred())

		_, _, err = domain.Partition("events-2026-13").Bounds()
		Expect(err).To(HaveOccurred())
	})
})
