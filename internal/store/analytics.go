package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"reviewstats.app/listener/internal/domain"
)

const parentTable = "review_events"

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const createParentSQL = `
CREATE TABLE IF NOT EXISTS review_events (
	id          BIGINT      NOT NULL,
	partition   TEXT        NOT NULL,
	event_type  TEXT        NOT NULL,
	change_id   BIGINT      NOT NULL,
	project     TEXT        NOT NULL,
	document    JSONB       NOT NULL,
	ingested_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (id, ingested_at)
) PARTITION BY RANGE (ingested_at)`

const createIndexSQL = `
CREATE INDEX IF NOT EXISTS review_events_change_idx ON review_events (change_id, ingested_at)`

const insertSQL = `
INSERT INTO review_events (id, partition, event_type, change_id, project, document, ingested_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Migrate creates the partitioned parent table. Monthly partitions are
// created lazily by Index.
func Migrate(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, createParentSQL); err != nil {
		return fmt.Errorf("creating %s: %w", parentTable, err)
	}
	if _, err := db.Exec(ctx, createIndexSQL); err != nil {
		return fmt.Errorf("creating %s index: %w", parentTable, err)
	}
	return nil
}

// AnalyticsStore writes enriched records into one Postgres range partition
// of review_events per calendar month.
type AnalyticsStore struct {
	db Execer

	mu      sync.Mutex
	ensured map[domain.Partition]bool
}

func NewAnalyticsStore(db Execer) *AnalyticsStore {
	return &AnalyticsStore{
		db:      db,
		ensured: make(map[domain.Partition]bool),
	}
}

func (s *AnalyticsStore) Index(ctx context.Context, partition domain.Partition, doc domain.Document) error {
	if err := s.ensurePartition(ctx, partition); err != nil {
		return err
	}

	body, err := json.Marshal(doc.Record)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	rec := doc.Record
	if _, err := s.db.Exec(ctx, insertSQL,
		doc.ID,
		string(partition),
		string(rec.EventType),
		rec.ChangeID,
		rec.Project,
		body,
		rec.IngestedAt,
	); err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

func (s *AnalyticsStore) ensurePartition(ctx context.Context, partition domain.Partition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ensured[partition] {
		return nil
	}

	ddl, err := partitionDDL(partition)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("creating partition %s: %w", partition, err)
	}

	s.ensured[partition] = true
	return nil
}

// PartitionTable maps "events-2026-10" to "review_events_2026_10".
func PartitionTable(partition domain.Partition) string {
	month := strings.TrimPrefix(string(partition), "events-")
	return parentTable + "_" + strings.ReplaceAll(month, "-", "_")
}

func partitionDDL(partition domain.Partition) (string, error) {
	from, to, err := partition.Bounds()
	if err != nil {
		return "", err
	}
	// DDL cannot take bind parameters; bounds come from a parsed month.
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s PARTITION OF %s FOR VALUES FROM ('%s') TO ('%s')",
		pgx.Identifier{PartitionTable(partition)}.Sanitize(),
		parentTable,
		from.Format(time.RFC3339),
		to.Format(time.RFC3339),
	), nil
}
