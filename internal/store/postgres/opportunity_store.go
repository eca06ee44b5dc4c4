package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"arbmon/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)

// NewOpportunityStore creates a new OpportunityStore backed by the given
// pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const opportunitySelectCols = `id, COALESCE(snapshot_id, 0), coin, fiat,
	buy_exchange, sell_exchange, buy_price, sell_price,
	spread_pct, profit_per_unit, detected_at`

const opportunityInsert = `
	INSERT INTO opportunities (
		id, snapshot_id, coin, fiat,
		buy_exchange, sell_exchange, buy_price, sell_price,
		spread_pct, profit_per_unit, detected_at
	) VALUES ($1, NULLIF($2, 0::bigint), $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id) DO NOTHING`

func scanOpportunityRows(rows pgx.Rows) ([]domain.Opportunity, error) {
	var opps []domain.Opportunity
	for rows.Next() {
		var o domain.Opportunity
		if err := rows.Scan(
			&o.ID, &o.SnapshotID, &o.Coin, &o.Fiat,
			&o.BuyExchange, &o.SellExchange, &o.BuyPrice, &o.SellPrice,
			&o.SpreadPct, &o.ProfitPerUnit, &o.DetectedAt,
		); err != nil {
			return nil, err
		}
		opps = append(opps, o)
	}
	return opps, rows.Err()
}

// Save inserts one opportunity. Replays of the same detection id are
// silently skipped.
func (s *OpportunityStore) Save(ctx context.Context, opp domain.Opportunity) error {
	_, err := s.pool.Exec(ctx, opportunityInsert,
		opp.ID, opp.SnapshotID, opp.Coin, opp.Fiat,
		opp.BuyExchange, opp.SellExchange, opp.BuyPrice, opp.SellPrice,
		opp.SpreadPct, opp.ProfitPerUnit, opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity: %w", err)
	}
	return nil
}

// SaveBatch inserts multiple opportunities using a pgx batch.
func (s *OpportunityStore) SaveBatch(ctx context.Context, opps []domain.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, o := range opps {
		batch.Queue(opportunityInsert,
			o.ID, o.SnapshotID, o.Coin, o.Fiat,
			o.BuyExchange, o.SellExchange, o.BuyPrice, o.SellPrice,
			o.SpreadPct, o.ProfitPerUnit, o.DetectedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range opps {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert opportunity batch item %d: %w", i, err)
		}
	}
	return nil
}

// List returns opportunities matching the filter, newest first, spread
// descending within the same timestamp.
func (s *OpportunityStore) List(ctx context.Context, filter domain.OpportunityFilter) ([]domain.Opportunity, error) {
	query := `SELECT ` + opportunitySelectCols + ` FROM opportunities WHERE 1=1`
	var args []any
	argIdx := 1

	if filter.Coin != "" {
		query += fmt.Sprintf(" AND coin = $%d", argIdx)
		args = append(args, filter.Coin)
		argIdx++
	}
	if filter.Fiat != "" {
		query += fmt.Sprintf(" AND fiat = $%d", argIdx)
		args = append(args, filter.Fiat)
		argIdx++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(" AND detected_at >= $%d", argIdx)
		args = append(args, *filter.Since)
		argIdx++
	}
	if filter.Until != nil {
		query += fmt.Sprintf(" AND detected_at <= $%d", argIdx)
		args = append(args, *filter.Until)
		argIdx++
	}

	query += " ORDER BY detected_at DESC, spread_pct DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	defer rows.Close()

	opps, err := scanOpportunityRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan opportunities: %w", err)
	}
	return opps, nil
}

// ListSince returns all opportunities for a fiat detected at or after
// since, in detection order.
func (s *OpportunityStore) ListSince(ctx context.Context, fiat string, since time.Time) ([]domain.Opportunity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+opportunitySelectCols+` FROM opportunities
		 WHERE fiat = $1 AND detected_at >= $2
		 ORDER BY detected_at ASC`, fiat, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities since: %w", err)
	}
	defer rows.Close()

	opps, err := scanOpportunityRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan opportunities since: %w", err)
	}
	return opps, nil
}

// ListBefore returns opportunities detected strictly before the cutoff, for
// archiving.
func (s *OpportunityStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Opportunity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+opportunitySelectCols+` FROM opportunities
		 WHERE detected_at < $1
		 ORDER BY detected_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities before: %w", err)
	}
	defer rows.Close()

	opps, err := scanOpportunityRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan opportunities before: %w", err)
	}
	return opps, nil
}

// DeleteBefore deletes opportunities detected before the cutoff and returns
// the number deleted.
func (s *OpportunityStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM opportunities WHERE detected_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete opportunities before: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Count returns the total number of stored opportunities.
func (s *OpportunityStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM opportunities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count opportunities: %w", err)
	}
	return n, nil
}
