package analytics

import (
	"testing"
	"time"

	"github.com/guttosm/flexpulse/internal/domain/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func trade(id, symbol string, opened time.Time, gross, comm string) models.Trade {
	g, c := d(gross), d(comm)
	return models.Trade{
		ID:         id,
		AccountID:  "U1",
		Key:        models.NewEquityKey(symbol, models.AssetStock),
		Status:     models.StatusClosed,
		OpenedAt:   opened,
		GrossPnL:   g,
		Commission: c,
		NetPnL:     g.Sub(c),
	}
}

var (
	jan2 = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	jan3 = time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)
	apr1 = time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
)

func sample() []models.Trade {
	return []models.Trade{
		trade("1", "AAPL", jan2, "100", "2"),
		trade("2", "MSFT", jan2, "-50", "2"),
		trade("3", "AAPL", jan3, "2", "2"), // zero net
		trade("4", "AAPL", apr1, "30", "1"),
	}
}

func TestAggregate_ByDay(t *testing.T) {
	buckets := Aggregate(sample(), models.GroupDay)
	require.Len(t, buckets, 3)

	b := buckets[0]
	assert.Equal(t, "2024-01-02", b.Key.Period)
	assert.Equal(t, 2, b.TradeCount)
	assert.Equal(t, 1, b.Wins)
	assert.Equal(t, 1, b.Losses)
	assert.True(t, b.WinRate.Equal(d("50")))
	assert.True(t, b.GrossPnL.Equal(d("50")))
	assert.True(t, b.Commission.Equal(d("4")))
	assert.True(t, b.NetPnL.Equal(d("46")))
	assert.True(t, b.AvgNetPnL.Equal(d("23")))
	assert.True(t, b.BestPnL.Equal(d("98")))
	assert.True(t, b.WorstPnL.Equal(d("-52")))

	zero := buckets[1]
	assert.Equal(t, 0, zero.Wins, "zero net counts as a loss")
	assert.Equal(t, 1, zero.Losses)
}

func TestAggregate_Groupings(t *testing.T) {
	tests := []struct {
		g    models.Grouping
		keys []models.BucketKey
	}{
		{models.GroupSymbol, []models.BucketKey{{Symbol: "AAPL"}, {Symbol: "MSFT"}}},
		{models.GroupDaySymbol, []models.BucketKey{
			{Period: "2024-01-02", Symbol: "AAPL"},
			{Period: "2024-01-02", Symbol: "MSFT"},
			{Period: "2024-01-03", Symbol: "AAPL"},
			{Period: "2024-04-01", Symbol: "AAPL"},
		}},
		{models.GroupWeek, []models.BucketKey{{Period: "2024-W01"}, {Period: "2024-W14"}}},
		{models.GroupMonth, []models.BucketKey{{Period: "2024-01"}, {Period: "2024-04"}}},
		{models.GroupQuarter, []models.BucketKey{{Period: "2024-Q1"}, {Period: "2024-Q2"}}},
	}

	for _, tt := range tests {
		t.Run(string(tt.g), func(t *testing.T) {
			buckets := Aggregate(sample(), tt.g)
			var keys []models.BucketKey
			total := 0
			for _, b := range buckets {
				keys = append(keys, b.Key)
				total += b.TradeCount
				assert.Equal(t, tt.g, b.Grouping)
			}
			assert.Equal(t, tt.keys, keys)
			assert.Equal(t, 4, total)
		})
	}
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate(nil, models.GroupDay))
	s := Summarize(nil)
	assert.Equal(t, 0, s.TradeCount)
	assert.True(t, s.WinRate.IsZero())
	assert.Empty(t, s.Daily)
}

func TestSummarize(t *testing.T) {
	s := Summarize(sample())

	assert.Equal(t, 4, s.TradeCount)
	assert.Equal(t, 4, s.ClosedCount)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 2, s.Losses)
	assert.True(t, s.WinRate.Equal(d("50")))
	assert.True(t, s.GrossPnL.Equal(d("82")))
	assert.True(t, s.Commission.Equal(d("7")))
	assert.True(t, s.NetPnL.Equal(d("75")))
	assert.True(t, s.AvgPerTrade.Equal(d("18.75")))
	assert.True(t, s.AvgWinner.Equal(d("63.5")))
	assert.True(t, s.AvgLoser.Equal(d("-26")))
	assert.True(t, s.MaxWinner.Equal(d("98")))
	assert.True(t, s.MaxLoser.Equal(d("-52")))
	assert.True(t, s.CommissionDrag.Equal(d("8.54")))

	require.Len(t, s.Daily, 3)
	assert.Equal(t, "2024-01-02", s.Daily[0].Date)
	assert.True(t, s.Daily[0].Cumulative.Equal(d("46")))
	assert.True(t, s.Daily[1].Cumulative.Equal(d("46")))
	assert.True(t, s.Daily[2].Cumulative.Equal(d("75")))
}

func TestSummarize_PremiumCapture(t *testing.T) {
	short := trade("o1", "SPX", jan2, "200", "2")
	short.Key = models.NewOptionKey("SPX", models.AssetOption, d("4700"), models.Put, jan2)
	short.Direction = models.Short
	short.OpeningCost = d("-250")

	long := trade("o2", "SPX", jan2, "-100", "1")
	long.Key = models.NewOptionKey("SPX", models.AssetOption, d("4600"), models.Put, jan2)
	long.Direction = models.Long
	long.OpeningCost = d("120")

	s := Summarize([]models.Trade{short, long})
	assert.True(t, s.PremiumSold.Equal(d("250")))
	assert.True(t, s.PremiumCaptureRatio.Equal(d("79.2")))
}

func TestPeriodKey_UsesTradeLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	// 23:30 in New York is already the next day in UTC
	tr := models.Trade{OpenedAt: time.Date(2024, 3, 31, 23, 30, 0, 0, ny)}
	assert.Equal(t, "2024-03-31", PeriodKey(tr, models.GroupDay))
	assert.Equal(t, "2024-Q1", PeriodKey(tr, models.GroupQuarter))
}
