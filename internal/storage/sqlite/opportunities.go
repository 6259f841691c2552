package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hetulpatel/crossarb/internal/equilibrium"
	"github.com/hetulpatel/crossarb/internal/hashutil"
	"github.com/hetulpatel/crossarb/internal/models"
)

const insertOpportunitySQL = `
INSERT INTO opportunities (
	batch_id, symbol, source, destination,
	equilibrium_quantity, equilibrium_profit, equilibrium_profit_rate,
	equilibrium_ask_cost, ask_cost_price, middle_price,
	fee, network, captured_at, recorded_at, record_hash
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// InsertOpportunities appends one published batch in a single transaction.
// An empty batch writes nothing.
func (s *Store) InsertOpportunities(ctx context.Context, batchID string, records []models.Record) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialized")
	}
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, insertOpportunitySQL)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	recordedAt := time.Now().UTC().Format(time.RFC3339Nano)
	for _, rec := range records {
		if err := execInsert(ctx, stmt, batchID, rec, recordedAt); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %s: %w", rec.Symbol, err)
		}
	}
	return tx.Commit()
}

func execInsert(ctx context.Context, stmt *sql.Stmt, batchID string, rec models.Record, recordedAt string) error {
	eq := rec.Equilibrium
	var fee sql.NullFloat64
	if rec.Fee != nil {
		fee = sql.NullFloat64{Float64: *rec.Fee, Valid: true}
	}
	_, err := stmt.ExecContext(
		ctx,
		batchID,
		rec.Symbol,
		rec.Source,
		rec.Destination,
		eq.MatchedQuantity,
		eq.ProfitAbsolute,
		eq.ProfitRate,
		eq.TotalCost,
		eq.AverageCost,
		eq.EquilibriumPrice,
		fee,
		rec.Network,
		rec.CapturedAt,
		recordedAt,
		recordHash(rec),
	)
	return err
}

// recordHash identifies a record's content independent of when it was captured.
func recordHash(rec models.Record) string {
	eq := rec.Equilibrium
	f := hashutil.Float
	fee := ""
	if rec.Fee != nil {
		fee = f(*rec.Fee)
	}
	return hashutil.HashStrings(
		rec.Symbol, rec.Source, rec.Destination,
		f(eq.MatchedQuantity), f(eq.ProfitAbsolute), f(eq.ProfitRate),
		f(eq.TotalCost), f(eq.AverageCost), f(eq.EquilibriumPrice),
		fee, rec.Network,
	)
}

// StoredOpportunity is one row read back from the table.
type StoredOpportunity struct {
	BatchID    string
	Record     models.Record
	RecordedAt string
	Hash       string
}

// RecentOpportunities returns the newest rows for symbol, newest first. An
// empty symbol matches every row.
func (s *Store) RecentOpportunities(ctx context.Context, symbol string, limit int) ([]StoredOpportunity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT batch_id, symbol, source, destination,
	equilibrium_quantity, equilibrium_profit, equilibrium_profit_rate,
	equilibrium_ask_cost, ask_cost_price, middle_price,
	fee, network, captured_at, recorded_at, record_hash
FROM opportunities
WHERE (? = '' OR symbol = ?)
ORDER BY captured_at DESC, id DESC
LIMIT ?`, symbol, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredOpportunity
	for rows.Next() {
		var (
			row     StoredOpportunity
			eq      equilibrium.Result
			fee     sql.NullFloat64
			network sql.NullString
			src     sql.NullString
			dst     sql.NullString
		)
		if err := rows.Scan(
			&row.BatchID, &row.Record.Symbol, &src, &dst,
			&eq.MatchedQuantity, &eq.ProfitAbsolute, &eq.ProfitRate,
			&eq.TotalCost, &eq.AverageCost, &eq.EquilibriumPrice,
			&fee, &network, &row.Record.CapturedAt, &row.RecordedAt, &row.Hash,
		); err != nil {
			return nil, err
		}
		row.Record.Source = src.String
		row.Record.Destination = dst.String
		row.Record.Network = network.String
		row.Record.Equilibrium = eq
		if fee.Valid {
			v := fee.Float64
			row.Record.Fee = &v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
