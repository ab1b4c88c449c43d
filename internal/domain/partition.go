package domain

import (
	"fmt"
	"strings"
	"time"
)

const partitionPrefix = "events-"

// Partition names one calendar month of the analytics store, e.g. "events-2026-10".
type Partition string

// PartitionFor returns the monthly partition holding t (in UTC).
func PartitionFor(t time.Time) Partition {
	return Partition(partitionPrefix + t.UTC().Format("2006-01"))
}

// Bounds returns the half-open UTC interval [from, to) covered by p.
func (p Partition) Bounds() (from, to time.Time, err error) {
	month, ok := strings.CutPrefix(string(p), partitionPrefix)
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("partition %q: missing %q prefix", p, partitionPrefix)
	}
	from, err = time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("partition %q: %w", p, err)
	}
	return from, from.AddDate(0, 1, 0), nil
}

// Document is what the analytics store receives for one event.
type Document struct {
	ID     int64
	Record EnrichedRecord
}
