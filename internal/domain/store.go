package domain

import (
	"context"
	"time"
)

// OpportunityFilter narrows opportunity queries. Zero-valued fields match
// everything.
type OpportunityFilter struct {
	Coin  string
	Fiat  string
	Since *time.Time
	Until *time.Time
	Limit int
}

// SnapshotStore persists full market observations (detailed granularity):
// the snapshot, every exchange quote, and all derived opportunities, linked
// by snapshot id.
type SnapshotStore interface {
	// SaveSnapshot persists the snapshot, its quotes, and opps in a single
	// transaction and returns the new snapshot id. Either everything
	// commits or nothing does; readers never observe a snapshot without its
	// quote and opportunity rows.
	SaveSnapshot(ctx context.Context, snap MarketSnapshot, opps []Opportunity) (int64, error)
	GetSnapshot(ctx context.Context, id int64) (MarketSnapshot, error)
	// DeleteSnapshotsBefore removes snapshots captured before the cutoff.
	// Quote and opportunity rows cascade.
	DeleteSnapshotsBefore(ctx context.Context, before time.Time) (int64, error)
	CountSnapshots(ctx context.Context) (int64, error)
}

// OpportunityStore persists and queries opportunity history. In basic
// granularity it is the only table written; in detailed granularity the
// rows carry a snapshot back-reference.
type OpportunityStore interface {
	Save(ctx context.Context, opp Opportunity) error
	SaveBatch(ctx context.Context, opps []Opportunity) error
	// List returns opportunities matching the filter, newest first, spread
	// descending within the same timestamp.
	List(ctx context.Context, filter OpportunityFilter) ([]Opportunity, error)
	// ListSince returns all opportunities for a fiat detected at or after
	// since, in detection order. It is the analytics engine's read path.
	ListSince(ctx context.Context, fiat string, since time.Time) ([]Opportunity, error)
	// ListBefore returns opportunities detected strictly before the cutoff,
	// for archival.
	ListBefore(ctx context.Context, before time.Time) ([]Opportunity, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
}
