// Package analytics folds reconciled trades into metric buckets and summary
// statistics. Every function is a pure fold over its input.
package analytics

import (
	"fmt"
	"sort"

	"github.com/guttosm/flexpulse/internal/domain/models"
	"github.com/shopspring/decimal"
)

const (
	percentScale = 2
	averageScale = 4
)

var hundred = decimal.NewFromInt(100)

// PeriodKey returns the bucket period of a trade for a time grouping,
// computed from its open time in the report time zone.
func PeriodKey(t models.Trade, g models.Grouping) string {
	at := t.OpenedAt
	switch g {
	case models.GroupWeek:
		y, w := at.ISOWeek()
		return fmt.Sprintf("%d-W%02d", y, w)
	case models.GroupMonth:
		return at.Format("2006-01")
	case models.GroupQuarter:
		return fmt.Sprintf("%d-Q%d", at.Year(), (int(at.Month())-1)/3+1)
	case models.GroupSymbol:
		return ""
	default:
		return at.Format("2006-01-02")
	}
}

func bucketKey(t models.Trade, g models.Grouping) models.BucketKey {
	switch g {
	case models.GroupSymbol:
		return models.BucketKey{Symbol: t.Key.Underlying}
	case models.GroupDaySymbol:
		return models.BucketKey{Period: PeriodKey(t, models.GroupDay), Symbol: t.Key.Underlying}
	default:
		return models.BucketKey{Period: PeriodKey(t, g)}
	}
}

// Aggregate buckets trades by g and returns the buckets ordered by period,
// then symbol. An unknown grouping falls back to day.
func Aggregate(trades []models.Trade, g models.Grouping) []models.MetricBucket {
	if _, ok := models.ParseGrouping(string(g)); !ok {
		g = models.GroupDay
	}

	acc := make(map[models.BucketKey]*accumulator)
	for _, t := range trades {
		k := bucketKey(t, g)
		a, ok := acc[k]
		if !ok {
			a = newAccumulator()
			acc[k] = a
		}
		a.add(t)
	}

	out := make([]models.MetricBucket, 0, len(acc))
	for k, a := range acc {
		out = append(out, a.bucket(g, k))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Period != out[j].Key.Period {
			return out[i].Key.Period < out[j].Key.Period
		}
		return out[i].Key.Symbol < out[j].Key.Symbol
	})
	return out
}

// Summarize computes the headline statistics over trades.
func Summarize(trades []models.Trade) models.Summary {
	var s models.Summary
	all := newAccumulator()
	winSum, loseSum := decimal.Zero, decimal.Zero
	premiumSold, premiumNet := decimal.Zero, decimal.Zero
	daily := make(map[string]decimal.Decimal)

	for _, t := range trades {
		all.add(t)
		switch t.Status {
		case models.StatusClosed:
			s.ClosedCount++
		case models.StatusOpen:
			s.OpenCount++
		case models.StatusExpired:
			s.ExpiredCount++
		}

		if t.IsWin() {
			winSum = winSum.Add(t.NetPnL)
			if t.NetPnL.GreaterThan(s.MaxWinner) {
				s.MaxWinner = t.NetPnL
			}
		} else {
			loseSum = loseSum.Add(t.NetPnL)
			if t.NetPnL.LessThan(s.MaxLoser) {
				s.MaxLoser = t.NetPnL
			}
		}

		if t.Key.IsOption() && t.Direction == models.Short {
			premiumSold = premiumSold.Add(t.OpeningCost.Abs())
			premiumNet = premiumNet.Add(t.NetPnL)
		}

		day := PeriodKey(t, models.GroupDay)
		daily[day] = daily[day].Add(t.NetPnL)
	}

	s.TradeCount = all.count
	s.Wins = all.wins
	s.Losses = all.count - all.wins
	s.WinRate = percent(decimal.NewFromInt(int64(all.wins)), decimal.NewFromInt(int64(all.count)))
	s.GrossPnL = all.gross
	s.Commission = all.commission
	s.NetPnL = all.net
	s.AvgPerTrade = average(all.net, all.count)
	s.AvgWinner = average(winSum, s.Wins)
	s.AvgLoser = average(loseSum, s.Losses)
	s.CommissionDrag = percent(all.commission, all.gross.Abs())
	s.PremiumSold = premiumSold
	s.PremiumCaptureRatio = percent(premiumNet, premiumSold)
	s.Daily = cumulative(daily)
	return s
}

func cumulative(daily map[string]decimal.Decimal) []models.DailyPoint {
	days := make([]string, 0, len(daily))
	for d := range daily {
		days = append(days, d)
	}
	sort.Strings(days)

	points := make([]models.DailyPoint, 0, len(days))
	running := decimal.Zero
	for _, d := range days {
		running = running.Add(daily[d])
		points = append(points, models.DailyPoint{Date: d, NetPnL: daily[d], Cumulative: running})
	}
	return points
}

type accumulator struct {
	count      int
	wins       int
	gross      decimal.Decimal
	commission decimal.Decimal
	net        decimal.Decimal
	best       decimal.Decimal
	worst      decimal.Decimal
}

func newAccumulator() *accumulator {
	return &accumulator{gross: decimal.Zero, commission: decimal.Zero, net: decimal.Zero}
}

func (a *accumulator) add(t models.Trade) {
	if a.count == 0 || t.NetPnL.GreaterThan(a.best) {
		a.best = t.NetPnL
	}
	if a.count == 0 || t.NetPnL.LessThan(a.worst) {
		a.worst = t.NetPnL
	}
	a.count++
	if t.IsWin() {
		a.wins++
	}
	a.gross = a.gross.Add(t.GrossPnL)
	a.commission = a.commission.Add(t.Commission)
	a.net = a.net.Add(t.NetPnL)
}

func (a *accumulator) bucket(g models.Grouping, k models.BucketKey) models.MetricBucket {
	return models.MetricBucket{
		Grouping:   g,
		Key:        k,
		TradeCount: a.count,
		Wins:       a.wins,
		Losses:     a.count - a.wins,
		WinRate:    percent(decimal.NewFromInt(int64(a.wins)), decimal.NewFromInt(int64(a.count))),
		GrossPnL:   a.gross,
		Commission: a.commission,
		NetPnL:     a.net,
		AvgNetPnL:  average(a.net, a.count),
		BestPnL:    a.best,
		WorstPnL:   a.worst,
	}
}

// percent returns part/whole*100 rounded to two places, zero when whole is zero.
func percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).DivRound(whole, percentScale)
}

func average(sum decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return sum.DivRound(decimal.NewFromInt(int64(n)), averageScale)
}
