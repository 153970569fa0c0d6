package models

import "github.com/shopspring/decimal"

// Grouping selects how trades are bucketed by the aggregator.
type Grouping string

const (
	GroupDay       Grouping = "day"
	GroupSymbol    Grouping = "symbol"
	GroupDaySymbol Grouping = "day_symbol"
	GroupWeek      Grouping = "week"
	GroupMonth     Grouping = "month"
	GroupQuarter   Grouping = "quarter"
)

// Groupings lists every supported grouping in a stable order.
var Groupings = []Grouping{GroupDay, GroupSymbol, GroupDaySymbol, GroupWeek, GroupMonth, GroupQuarter}

// ParseGrouping validates a grouping name.
func ParseGrouping(s string) (Grouping, bool) {
	for _, g := range Groupings {
		if string(g) == s {
			return g, true
		}
	}
	return "", false
}

// BucketKey identifies a metric bucket. Period is empty for GroupSymbol and
// Symbol is empty for the pure time groupings.
type BucketKey struct {
	Period string `json:"period,omitempty" example:"2024-01-05"`
	Symbol string `json:"symbol,omitempty" example:"SPX"`
}

// MetricBucket holds statistics folded over the trades of one key.
//
// swagger:model MetricBucket
type MetricBucket struct {
	Grouping   Grouping        `json:"grouping" example:"day"`
	Key        BucketKey       `json:"key"`
	TradeCount int             `json:"trade_count" example:"12"`
	Wins       int             `json:"wins" example:"9"`
	Losses     int             `json:"losses" example:"3"`
	WinRate    decimal.Decimal `json:"win_rate"`
	GrossPnL   decimal.Decimal `json:"gross_pnl"`
	Commission decimal.Decimal `json:"commission"`
	NetPnL     decimal.Decimal `json:"net_pnl"`
	AvgNetPnL  decimal.Decimal `json:"avg_net_pnl"`
	BestPnL    decimal.Decimal `json:"best_pnl"`
	WorstPnL   decimal.Decimal `json:"worst_pnl"`
}

// DailyPoint is one step of the cumulative P&L curve.
type DailyPoint struct {
	Date       string          `json:"date" example:"2024-01-05"`
	NetPnL     decimal.Decimal `json:"net_pnl"`
	Cumulative decimal.Decimal `json:"cumulative"`
}

// Summary is the headline statistics block shown by the dashboard.
//
// Fields:
//   - WinRate: percentage of trades with net P&L > 0.
//   - CommissionDrag: commission as a percentage of |gross P&L|.
//   - PremiumSold: |opening cost| of option trades.
//   - PremiumCaptureRatio: option net P&L as a percentage of PremiumSold.
//
// swagger:model Summary
type Summary struct {
	TradeCount          int             `json:"trade_count"`
	ClosedCount         int             `json:"closed_count"`
	OpenCount           int             `json:"open_count"`
	ExpiredCount        int             `json:"expired_count"`
	Wins                int             `json:"wins"`
	Losses              int             `json:"losses"`
	WinRate             decimal.Decimal `json:"win_rate"`
	GrossPnL            decimal.Decimal `json:"gross_pnl"`
	Commission          decimal.Decimal `json:"commission"`
	NetPnL              decimal.Decimal `json:"net_pnl"`
	AvgPerTrade         decimal.Decimal `json:"avg_per_trade"`
	AvgWinner           decimal.Decimal `json:"avg_winner"`
	AvgLoser            decimal.Decimal `json:"avg_loser"`
	MaxWinner           decimal.Decimal `json:"max_winner"`
	MaxLoser            decimal.Decimal `json:"max_loser"`
	CommissionDrag      decimal.Decimal `json:"commission_drag"`
	PremiumSold         decimal.Decimal `json:"premium_sold"`
	PremiumCaptureRatio decimal.Decimal `json:"premium_capture_ratio"`
	Daily               []DailyPoint    `json:"daily"`
}
