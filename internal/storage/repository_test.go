package storage

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/guttosm/flexpulse/internal/flexquery"
	"github.com/shopspring/decimal"
)

type dummyErr struct{}

func (dummyErr) Error() string { return "dummy" }

func newMockRepo(t *testing.T) (*fillsRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	repo := &fillsRepository{db: db}
	cleanup := func() { _ = db.Close() }
	return repo, mock, cleanup
}

func sampleFill() flexquery.RawFill {
	return flexquery.RawFill{
		ExecID:           "1001",
		AccountID:        "U1",
		Currency:         "USD",
		AssetCategory:    "OPT",
		Symbol:           "SPXW  240105P04700000",
		UnderlyingSymbol: "SPX",
		PutCall:          "P",
		Strike:           decimal.NewNullDecimal(decimal.NewFromInt(4700)),
		Expiry:           "20240105",
		TradeDate:        "20240105",
		DateTime:         "20240105;093000",
		Quantity:         decimal.NewFromInt(-1),
		BuySell:          "SELL",
		TradePrice:       decimal.RequireFromString("2.5"),
		Commission:       decimal.RequireFromString("-0.7"),
		Multiplier:       decimal.NewFromInt(100),
		OpenClose:        "O",
	}
}

func expectCopyPrelude(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL synchronous_commit = OFF")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TEMP TABLE fills_stage (LIKE fills INCLUDING DEFAULTS) ON COMMIT DROP")).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

const mergePattern = `INSERT INTO fills \(exec_id, .*\)\s+SELECT DISTINCT ON \(exec_id\) .*\s+FROM fills_stage\s+ORDER BY exec_id\s+ON CONFLICT \(exec_id\) DO UPDATE SET`

func TestNewFillsRepository_Construct(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()
	if r := NewFillsRepository(db); r == nil {
		t.Fatalf("expected non-nil repository")
	}
}

func TestInsertRawFills_SQLMock(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	expectCopyPrelude(mock)
	// pq.CopyIn is driver specific; allow any prepared statement, one exec per row plus the final flush.
	prep := mock.ExpectPrepare(`COPY "fills_stage"`)
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(mergePattern).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.InsertRawFills(context.Background(), "abc", []flexquery.RawFill{sampleFill()}); err != nil {
		t.Fatalf("InsertRawFills: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertRawFills_EmptyIsNoop(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	if err := repo.InsertRawFills(context.Background(), "abc", nil); err != nil {
		t.Fatalf("InsertRawFills: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertRawFills_Errors(t *testing.T) {
	cases := []struct {
		name  string
		setup func(mock sqlmock.Sqlmock)
	}{
		{
			name: "begin",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(dummyErr{})
			},
		},
		{
			name: "stage table",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("SET LOCAL synchronous_commit = OFF")).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(regexp.QuoteMeta("CREATE TEMP TABLE fills_stage")).WillReturnError(dummyErr{})
				mock.ExpectRollback()
			},
		},
		{
			name: "row exec",
			setup: func(mock sqlmock.Sqlmock) {
				expectCopyPrelude(mock)
				prep := mock.ExpectPrepare(".*")
				prep.ExpectExec().WillReturnError(dummyErr{})
				mock.ExpectRollback()
			},
		},
		{
			name: "final exec",
			setup: func(mock sqlmock.Sqlmock) {
				expectCopyPrelude(mock)
				prep := mock.ExpectPrepare(".*")
				prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(".*").WillReturnError(dummyErr{})
				mock.ExpectRollback()
			},
		},
		{
			name: "merge",
			setup: func(mock sqlmock.Sqlmock) {
				expectCopyPrelude(mock)
				prep := mock.ExpectPrepare(".*")
				prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(mergePattern).WillReturnError(dummyErr{})
				mock.ExpectRollback()
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock, done := newMockRepo(t)
			defer done()
			tc.setup(mock)
			if err := repo.InsertRawFills(context.Background(), "abc", []flexquery.RawFill{sampleFill()}); err == nil {
				t.Fatalf("expected error on %s", tc.name)
			}
		})
	}
}

// Overlapping reports carry the same executions; the merge must replace them
// instead of failing on the primary key.
func TestInsertRawFills_OverlappingReportsUpsert(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	dup := sampleFill()
	dup.Notes = "P"
	for _, report := range []string{"day1", "day2"} {
		expectCopyPrelude(mock)
		prep := mock.ExpectPrepare(".*")
		prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
		prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(mergePattern).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		if err := repo.InsertRawFills(context.Background(), report, []flexquery.RawFill{sampleFill(), dup}); err != nil {
			t.Fatalf("InsertRawFills(%s): %v", report, err)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMergeFillsSQL_UpdatesEveryColumn(t *testing.T) {
	if strings.Contains(mergeFillsSQL, "exec_id = EXCLUDED.exec_id") {
		t.Fatalf("conflict key must not be updated: %s", mergeFillsSQL)
	}
	for _, c := range fillColumns[1:] {
		if !strings.Contains(mergeFillsSQL, c+" = EXCLUDED."+c) {
			t.Fatalf("column %s not refreshed on conflict", c)
		}
	}
	if strings.Contains(mergeFillsSQL, "DELETE") {
		t.Fatalf("merge must not delete rows")
	}
}

func TestListRawFills_SQLMock(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	cols := []string{
		"exec_id", "account_id", "currency", "asset_category", "symbol", "underlying_symbol",
		"description", "put_call", "strike", "expiry", "trade_date", "settle_date", "date_time",
		"quantity", "buy_sell", "trade_price", "cost_basis", "commission", "realized_pnl",
		"mtm_pnl", "fx_rate_to_base", "multiplier", "open_close", "notes",
	}
	rows := sqlmock.NewRows(cols).
		AddRow("1001", "U1", "USD", "OPT", "SPXW  240105P04700000", "SPX", "", "P", "4700", "20240105", "20240105", "", "20240105;093000",
			"-1", "SELL", "2.5", "-250", "-0.7", "0", "0", nil, "100", "O", "").
		AddRow("1002", "U1", "USD", "STK", "AAPL", "", "APPLE INC", "", nil, "", "20240105", "20240109", "20240105;100000",
			"10", "BUY", "185.2", "1852", "-1", "0", "3", "1", "1", "O", "")

	mock.ExpectQuery(`SELECT exec_id, account_id, .* FROM fills\s+ORDER BY exec_id`).WillReturnRows(rows)

	fills, err := repo.ListRawFills(context.Background())
	if err != nil {
		t.Fatalf("ListRawFills: %v", err)
	}
	if len(fills) != 2 {
		t.Fatalf("want 2 fills, got %d", len(fills))
	}
	if !fills[0].Strike.Valid || !fills[0].Strike.Decimal.Equal(decimal.NewFromInt(4700)) {
		t.Fatalf("strike not scanned: %+v", fills[0].Strike)
	}
	if fills[0].FXRateToBase.Valid {
		t.Fatalf("fx rate should be NULL")
	}
	if fills[1].Strike.Valid {
		t.Fatalf("stock strike should be NULL")
	}
	if !fills[1].Quantity.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("quantity: %s", fills[1].Quantity)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestImportLog_SQLMock(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM import_log WHERE report_id = $1)")).
		WithArgs("abc").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	ok, err := repo.HasImport(ctx, "abc")
	if err != nil || !ok {
		t.Fatalf("HasImport: ok=%v err=%v", ok, err)
	}

	mock.ExpectExec(`INSERT INTO import_log \(report_id, source, fill_count\)\s+VALUES \(\$1, \$2, \$3\)\s+ON CONFLICT \(report_id\)`).
		WithArgs("abc", "upload", 10).WillReturnResult(sqlmock.NewResult(1, 1))
	if err := repo.UpsertImportLog(ctx, "abc", "upload", 10); err != nil {
		t.Fatalf("UpsertImportLog: %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM import_log WHERE report_id = $1)")).
		WithArgs("zzz").WillReturnError(dummyErr{})
	if _, err := repo.HasImport(ctx, "zzz"); err == nil {
		t.Fatalf("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
