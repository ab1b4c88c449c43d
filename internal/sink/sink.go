package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reviewstats.app/listener/internal/domain"
)

// Store is the analytics store. Index either persists the document or fails;
// nothing is read back.
type Store interface {
	Index(ctx context.Context, partition domain.Partition, doc domain.Document) error
}

type Config struct {
	// Now defaults to time.Now.
	Now func() time.Time
	// NewID defaults to zero ids; the worker wires the snowflake generator.
	NewID func() int64
}

type Sink struct {
	store Store
	now   func() time.Time
	newID func() int64
}

func New(store Store, cfg Config) *Sink {
	s := &Sink{store: store, now: cfg.Now, newID: cfg.NewID}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = func() int64 { return 0 }
	}
	return s
}

// Submit stamps the ingestion time and indexes rec into its monthly partition.
// Failures are returned to the caller and never retried here.
func (s *Sink) Submit(ctx context.Context, rec domain.EnrichedRecord) (domain.Document, error) {
	rec.IngestedAt = s.now().UTC()
	partition := domain.PartitionFor(rec.IngestedAt)
	doc := domain.Document{ID: s.newID(), Record: rec}

	if err := s.store.Index(ctx, partition, doc); err != nil {
		return domain.Document{}, fmt.Errorf("indexing into %s: %w", partition, err)
	}

	slog.InfoContext(ctx, "record indexed",
		"partition", partition,
		"document_id", doc.ID)
	return doc, nil
}
