package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/guttosm/flexpulse/internal/diagnostics"
	"github.com/guttosm/flexpulse/internal/domain/models"
	"github.com/guttosm/flexpulse/internal/flexquery"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func optionRaw() flexquery.RawFill {
	return flexquery.RawFill{
		ExecID:           "1001",
		AccountID:        "U1",
		Currency:         "USD",
		AssetCategory:    "OPT",
		Symbol:           "SPXW  240105C04700000",
		UnderlyingSymbol: "SPX",
		PutCall:          "C",
		Strike:           decimal.NewNullDecimal(d("4700")),
		Expiry:           "20240105",
		TradeDate:        "20240105",
		SettleDate:       "20240108",
		DateTime:         "20240105;093512",
		Quantity:         d("-2"),
		BuySell:          "SELL",
		TradePrice:       d("2.5"),
		CostBasis:        d("-498.6"),
		Commission:       d("-1.4"),
		RealizedPnL:      d("0"),
		MTMPnL:           d("20"),
		FXRateToBase:     decimal.NewNullDecimal(d("1")),
		Multiplier:       d("100"),
		OpenClose:        "O",
	}
}

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestNormalize_Option(t *testing.T) {
	loc := newYork(t)
	n := New(Options{BaseCurrency: "USD", Location: loc, DateTimeSeparator: ";"})

	f, err := n.Normalize(optionRaw())
	require.NoError(t, err)

	assert.Equal(t, models.InstrumentKey{Underlying: "SPX", AssetClass: models.AssetOption, Strike: "4700", Right: models.Call, Expiry: "2024-01-05"}, f.Key)
	assert.True(t, f.Quantity.Equal(d("-2")))
	assert.True(t, f.Commission.Equal(d("1.4")), "commission becomes a positive cost")
	assert.True(t, time.Date(2024, 1, 5, 9, 35, 12, 0, loc).Equal(f.ExecutedAt))
	assert.True(t, time.Date(2024, 1, 5, 0, 0, 0, 0, loc).Equal(f.TradeDate))
	assert.True(t, time.Date(2024, 1, 8, 0, 0, 0, 0, loc).Equal(f.SettleDate))
}

func TestNormalize_SignFromBuySell(t *testing.T) {
	n := New(Options{DateTimeSeparator: ";"})
	raw := optionRaw()
	raw.BuySell = "BUY"
	raw.Quantity = d("-3") // side wins
	f, err := n.Normalize(raw)
	require.NoError(t, err)
	assert.True(t, f.Quantity.Equal(d("3")))

	raw.BuySell = "SELL (Ca.)"
	f, err = n.Normalize(raw)
	require.NoError(t, err)
	assert.True(t, f.Quantity.Equal(d("-3")))
}

func TestNormalize_FXConversion(t *testing.T) {
	n := New(Options{BaseCurrency: "USD", DateTimeSeparator: ";"})
	raw := flexquery.RawFill{
		ExecID: "9", AccountID: "U1", Currency: "EUR", AssetCategory: "STK", Symbol: "SAP",
		TradeDate: "20240105", DateTime: "20240105;100000", Quantity: d("10"), BuySell: "BUY",
		TradePrice: d("150"), CostBasis: d("1500"), Commission: d("-2"), RealizedPnL: d("0"), MTMPnL: d("5"),
		FXRateToBase: decimal.NewNullDecimal(d("1.1")), Multiplier: d("1"),
	}
	f, err := n.Normalize(raw)
	require.NoError(t, err)
	assert.True(t, f.CostBasis.Equal(d("1650")))
	assert.True(t, f.Commission.Equal(d("2.2")))
	assert.True(t, f.MTMPnL.Equal(d("5.5")))
	assert.True(t, f.Price.Equal(d("150")), "price stays in trade currency")
	assert.Equal(t, models.NewEquityKey("SAP", models.AssetStock), f.Key)
}

func TestNormalize_DateTimeSeparators(t *testing.T) {
	tests := []struct {
		sep string
		raw string
	}{
		{"none", "20240105093512"},
		{";", "20240105;093512"},
		{",", "20240105,093512"},
		{"space", "20240105 093512"},
		{"T", "20240105T093512"},
	}
	for _, tt := range tests {
		t.Run(tt.sep, func(t *testing.T) {
			sep, err := ParseSeparator(tt.sep)
			require.NoError(t, err)
			raw := optionRaw()
			raw.DateTime = tt.raw
			f, err := New(Options{DateTimeSeparator: sep}).Normalize(raw)
			require.NoError(t, err)
			assert.True(t, time.Date(2024, 1, 5, 9, 35, 12, 0, time.UTC).Equal(f.ExecutedAt))
		})
	}

	_, err := ParseSeparator("|")
	assert.Error(t, err)
}

func TestNormalize_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*flexquery.RawFill)
		field  string
	}{
		{"zero quantity", func(r *flexquery.RawFill) { r.Quantity = decimal.Zero }, "quantity"},
		{"unknown side", func(r *flexquery.RawFill) { r.BuySell = "HOLD" }, "buySell"},
		{"bad trade date", func(r *flexquery.RawFill) { r.TradeDate = "2024-01-05" }, "tradeDate"},
		{"bad date time", func(r *flexquery.RawFill) { r.DateTime = "20240105 093512" }, "dateTime"},
		{"option without right", func(r *flexquery.RawFill) { r.PutCall = "" }, "putCall"},
		{"option without strike", func(r *flexquery.RawFill) { r.Strike = decimal.NullDecimal{} }, "strike"},
		{"option without expiry", func(r *flexquery.RawFill) { r.Expiry = "" }, "expiry"},
		{"stock with option fields", func(r *flexquery.RawFill) { r.AssetCategory = "STK" }, "assetCategory"},
		{"foreign without fx", func(r *flexquery.RawFill) { r.Currency = "EUR"; r.FXRateToBase = decimal.NullDecimal{} }, "fxRateToBase"},
		{"foreign with zero fx", func(r *flexquery.RawFill) { r.Currency = "EUR"; r.FXRateToBase = decimal.NewNullDecimal(decimal.Zero) }, "fxRateToBase"},
	}

	n := New(Options{DateTimeSeparator: ";"})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := optionRaw()
			tt.mutate(&raw)
			_, err := n.Normalize(raw)
			var nerr *NormalizationError
			require.True(t, errors.As(err, &nerr), "got %v", err)
			assert.Equal(t, tt.field, nerr.Field)
			assert.Equal(t, "1001", nerr.ExecID)
		})
	}
}

func TestNormalizeAll_ReportsRejections(t *testing.T) {
	good := optionRaw()
	bad := optionRaw()
	bad.ExecID = "1002"
	bad.Quantity = decimal.Zero

	sink := diagnostics.NewCollector()
	fills := New(Options{DateTimeSeparator: ";"}).NormalizeAll([]flexquery.RawFill{good, bad}, sink)

	require.Len(t, fills, 1)
	assert.Equal(t, "1001", fills[0].ExecID)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, diagnostics.KindRejectedFill, events[0].Kind)
	assert.Equal(t, "1002", events[0].FillID)
	var nerr *NormalizationError
	assert.True(t, errors.As(events[0].Err, &nerr))
}
