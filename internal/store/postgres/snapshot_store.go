package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"arbmon/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore creates a new SnapshotStore backed by the given pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// SaveSnapshot persists the snapshot, every quote, and the detected
// opportunities in one transaction and returns the new snapshot id.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, snap domain.MarketSnapshot, opps []domain.Opportunity) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin snapshot tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO market_snapshots (captured_at, coin, fiat, volume, snapshot_hash, num_exchanges)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		snap.CapturedAt, snap.Coin, snap.Fiat, snap.Volume,
		snapshotHash(snap), len(snap.Quotes),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert snapshot: %w", err)
	}

	if len(snap.Quotes) > 0 {
		batch := &pgx.Batch{}
		const quoteInsert = `
			INSERT INTO exchange_quotes (
				snapshot_id, exchange, ask, bid, total_ask, total_bid,
				api_timestamp, response_time_ms
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		for _, name := range sortedExchanges(snap) {
			q := snap.Quotes[name]
			batch.Queue(quoteInsert,
				id, q.Exchange, q.Ask, q.Bid, q.TotalAsk, q.TotalBid,
				q.APITime, q.ResponseTime.Milliseconds(),
			)
		}
		br := tx.SendBatch(ctx, batch)
		for range snap.Quotes {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return 0, fmt.Errorf("postgres: insert quote: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return 0, fmt.Errorf("postgres: close quote batch: %w", err)
		}
	}

	if len(opps) > 0 {
		batch := &pgx.Batch{}
		for _, o := range opps {
			batch.Queue(opportunityInsert,
				o.ID, id, o.Coin, o.Fiat,
				o.BuyExchange, o.SellExchange, o.BuyPrice, o.SellPrice,
				o.SpreadPct, o.ProfitPerUnit, o.DetectedAt,
			)
		}
		br := tx.SendBatch(ctx, batch)
		for range opps {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return 0, fmt.Errorf("postgres: insert opportunity: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return 0, fmt.Errorf("postgres: close opportunity batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit snapshot tx: %w", err)
	}
	return id, nil
}

// GetSnapshot returns one snapshot with all its quotes.
func (s *SnapshotStore) GetSnapshot(ctx context.Context, id int64) (domain.MarketSnapshot, error) {
	var snap domain.MarketSnapshot
	err := s.pool.QueryRow(ctx, `
		SELECT captured_at, coin, fiat, volume
		FROM market_snapshots WHERE id = $1`, id,
	).Scan(&snap.CapturedAt, &snap.Coin, &snap.Fiat, &snap.Volume)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MarketSnapshot{}, fmt.Errorf("postgres: snapshot %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("postgres: get snapshot: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT exchange, ask, bid, total_ask, total_bid, api_timestamp, response_time_ms
		FROM exchange_quotes WHERE snapshot_id = $1 ORDER BY exchange`, id)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("postgres: get snapshot quotes: %w", err)
	}
	defer rows.Close()

	snap.Quotes = make(map[string]domain.ExchangeQuote)
	for rows.Next() {
		var q domain.ExchangeQuote
		var rtMillis int64
		if err := rows.Scan(&q.Exchange, &q.Ask, &q.Bid, &q.TotalAsk, &q.TotalBid, &q.APITime, &rtMillis); err != nil {
			return domain.MarketSnapshot{}, fmt.Errorf("postgres: scan quote: %w", err)
		}
		q.ObservedAt = snap.CapturedAt
		q.ResponseTime = time.Duration(rtMillis) * time.Millisecond
		snap.Quotes[q.Exchange] = q
	}
	if err := rows.Err(); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("postgres: scan quotes: %w", err)
	}
	return snap, nil
}

// DeleteSnapshotsBefore removes snapshots captured before the cutoff. Quote
// and opportunity rows cascade via their foreign keys.
func (s *SnapshotStore) DeleteSnapshotsBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM market_snapshots WHERE captured_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete snapshots before: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountSnapshots returns the total number of stored snapshots.
func (s *SnapshotStore) CountSnapshots(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM market_snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count snapshots: %w", err)
	}
	return n, nil
}

// snapshotHash is a sha256 over the quotes in exchange order, used to spot
// identical consecutive payloads when auditing history.
func snapshotHash(snap domain.MarketSnapshot) string {
	h := sha256.New()
	var b strings.Builder
	for _, name := range sortedExchanges(snap) {
		q := snap.Quotes[name]
		b.Reset()
		b.WriteString(name)
		writeField(&b, q.Ask)
		writeField(&b, q.Bid)
		writeField(&b, q.TotalAsk)
		writeField(&b, q.TotalBid)
		b.WriteByte('\n')
		h.Write([]byte(b.String()))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(b *strings.Builder, v *float64) {
	b.WriteByte('|')
	if v != nil {
		b.WriteString(strconv.FormatFloat(*v, 'g', -1, 64))
	}
}

func sortedExchanges(snap domain.MarketSnapshot) []string {
	names := make([]string, 0, len(snap.Quotes))
	for name := range snap.Quotes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
