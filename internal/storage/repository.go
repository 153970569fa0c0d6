package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/guttosm/flexpulse/internal/flexquery"
	pq "github.com/lib/pq"
)

// FillsRepository defines the persistence contract for imported executions.
type FillsRepository interface {
	InsertRawFills(ctx context.Context, reportID string, fills []flexquery.RawFill) error
	ListRawFills(ctx context.Context) ([]flexquery.RawFill, error)
	HasImport(ctx context.Context, reportID string) (bool, error)
	UpsertImportLog(ctx context.Context, reportID, source string, fillCount int) error
}

type fillsRepository struct {
	db *sql.DB
}

func NewFillsRepository(db *sql.DB) FillsRepository {
	return &fillsRepository{db: db}
}

var fillColumns = []string{
	"exec_id",
	"report_id",
	"account_id",
	"currency",
	"asset_category",
	"symbol",
	"underlying_symbol",
	"description",
	"put_call",
	"strike",
	"expiry",
	"trade_date",
	"settle_date",
	"date_time",
	"quantity",
	"buy_sell",
	"trade_price",
	"cost_basis",
	"commission",
	"realized_pnl",
	"mtm_pnl",
	"fx_rate_to_base",
	"multiplier",
	"open_close",
	"notes",
}

// stageTable receives the COPY of one report before it is merged into fills.
const stageTable = "fills_stage"

var (
	createStageSQL = `CREATE TEMP TABLE ` + stageTable + ` (LIKE fills INCLUDING DEFAULTS) ON COMMIT DROP`
	mergeFillsSQL  = buildMergeSQL()
)

// buildMergeSQL upserts the staged rows. DISTINCT ON keeps one row per
// exec_id and the ORDER BY makes concurrent imports lock rows in the same
// order.
func buildMergeSQL() string {
	cols := strings.Join(fillColumns, ", ")
	sets := make([]string, 0, len(fillColumns)-1)
	for _, c := range fillColumns[1:] {
		sets = append(sets, c+" = EXCLUDED."+c)
	}
	return `INSERT INTO fills (` + cols + `)
		SELECT DISTINCT ON (exec_id) ` + cols + `
		FROM ` + stageTable + `
		ORDER BY exec_id
		ON CONFLICT (exec_id) DO UPDATE SET ` + strings.Join(sets, ", ")
}

// InsertRawFills stores fills in a single transaction. Executions already
// present (same exec_id, e.g. from an overlapping report) are replaced, also
// when another import writes the same executions concurrently.
func (r *fillsRepository) InsertRawFills(ctx context.Context, reportID string, fills []flexquery.RawFill) error {
	if len(fills) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	// Small optimization for bulk load
	if _, err := tx.ExecContext(ctx, `SET LOCAL synchronous_commit = OFF`); err != nil {
		_ = tx.Rollback()
		return err
	}

	if _, err := tx.ExecContext(ctx, createStageSQL); err != nil {
		_ = tx.Rollback()
		return err
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(stageTable, fillColumns...))
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	for _, f := range fills {
		if _, err := stmt.ExecContext(ctx,
			f.ExecID,
			reportID,
			f.AccountID,
			f.Currency,
			f.AssetCategory,
			f.Symbol,
			f.UnderlyingSymbol,
			f.Description,
			f.PutCall,
			f.Strike,
			f.Expiry,
			f.TradeDate,
			f.SettleDate,
			f.DateTime,
			f.Quantity,
			f.BuySell,
			f.TradePrice,
			f.CostBasis,
			f.Commission,
			f.RealizedPnL,
			f.MTMPnL,
			f.FXRateToBase,
			f.Multiplier,
			f.OpenClose,
			f.Notes,
		); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return err
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		_ = tx.Rollback()
		return err
	}
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return err
	}

	if _, err := tx.ExecContext(ctx, mergeFillsSQL); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// ListRawFills returns every stored execution ordered by exec_id.
func (r *fillsRepository) ListRawFills(ctx context.Context) ([]flexquery.RawFill, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT exec_id, account_id, currency, asset_category, symbol, underlying_symbol,
		       description, put_call, strike, expiry, trade_date, settle_date, date_time,
		       quantity, buy_sell, trade_price, cost_basis, commission, realized_pnl,
		       mtm_pnl, fx_rate_to_base, multiplier, open_close, notes
		FROM fills
		ORDER BY exec_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []flexquery.RawFill
	for rows.Next() {
		var f flexquery.RawFill
		if err := rows.Scan(
			&f.ExecID,
			&f.AccountID,
			&f.Currency,
			&f.AssetCategory,
			&f.Symbol,
			&f.UnderlyingSymbol,
			&f.Description,
			&f.PutCall,
			&f.Strike,
			&f.Expiry,
			&f.TradeDate,
			&f.SettleDate,
			&f.DateTime,
			&f.Quantity,
			&f.BuySell,
			&f.TradePrice,
			&f.CostBasis,
			&f.Commission,
			&f.RealizedPnL,
			&f.MTMPnL,
			&f.FXRateToBase,
			&f.Multiplier,
			&f.OpenClose,
			&f.Notes,
		); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// HasImport checks whether a report with the given content hash was already imported.
func (r *fillsRepository) HasImport(ctx context.Context, reportID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM import_log WHERE report_id = $1)`, reportID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// UpsertImportLog records (or refreshes) an import entry for a report.
func (r *fillsRepository) UpsertImportLog(ctx context.Context, reportID, source string, fillCount int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO import_log (report_id, source, fill_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (report_id)
		DO UPDATE SET source = EXCLUDED.source,
					  fill_count = EXCLUDED.fill_count,
					  imported_at = NOW()
	`, reportID, source, fillCount)
	return err
}
