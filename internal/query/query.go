// Package query selects subsets of a trade set and recomputes metrics over
// exactly that subset. Nothing is cached between calls.
package query

import (
	"strings"
	"time"

	"github.com/guttosm/flexpulse/internal/analytics"
	"github.com/guttosm/flexpulse/internal/domain/models"
)

const dateLayout = "2006-01-02"

// Filter restricts a trade set. Zero values mean no restriction: a nil date
// bound is open and an empty set admits everything.
//
// Fields:
//   - From / To: inclusive bounds on the trade's open date.
//   - AssetClasses, Symbols, Strategies, Statuses, Accounts: allowed values;
//     symbols and strategies match case-insensitively.
type Filter struct {
	From         *time.Time
	To           *time.Time
	AssetClasses []models.AssetClass
	Symbols      []string
	Strategies   []string
	Statuses     []models.TradeStatus
	Accounts     []string
}

// Result is a filtered view with its metrics.
type Result struct {
	Trades  []models.Trade
	Buckets map[models.Grouping][]models.MetricBucket
	Summary models.Summary
}

// Apply returns the trades admitted by f, preserving input order.
func Apply(trades []models.Trade, f Filter) []models.Trade {
	m := newMatcher(f)
	out := make([]models.Trade, 0, len(trades))
	for _, t := range trades {
		if m.match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Run filters trades and aggregates the subset for each requested grouping.
func Run(trades []models.Trade, f Filter, groupings ...models.Grouping) Result {
	subset := Apply(trades, f)
	res := Result{
		Trades:  subset,
		Buckets: make(map[models.Grouping][]models.MetricBucket, len(groupings)),
		Summary: analytics.Summarize(subset),
	}
	for _, g := range groupings {
		res.Buckets[g] = analytics.Aggregate(subset, g)
	}
	return res
}

type matcher struct {
	from, to   string
	classes    map[models.AssetClass]bool
	symbols    map[string]bool
	strategies map[string]bool
	statuses   map[models.TradeStatus]bool
	accounts   map[string]bool
}

func newMatcher(f Filter) matcher {
	m := matcher{
		classes:    set(f.AssetClasses, func(c models.AssetClass) models.AssetClass { return models.AssetClass(strings.ToUpper(string(c))) }),
		symbols:    set(f.Symbols, strings.ToUpper),
		strategies: set(f.Strategies, strings.ToLower),
		statuses:   set(f.Statuses, func(s models.TradeStatus) models.TradeStatus { return s }),
		accounts:   set(f.Accounts, func(s string) string { return s }),
	}
	if f.From != nil {
		m.from = f.From.Format(dateLayout)
	}
	if f.To != nil {
		m.to = f.To.Format(dateLayout)
	}
	return m
}

func (m matcher) match(t models.Trade) bool {
	day := t.OpenedAt.Format(dateLayout)
	if m.from != "" && day < m.from {
		return false
	}
	if m.to != "" && day > m.to {
		return false
	}
	if m.classes != nil && !m.classes[t.Key.AssetClass] {
		return false
	}
	if m.symbols != nil && !m.symbols[strings.ToUpper(t.Key.Underlying)] {
		return false
	}
	if m.strategies != nil && !m.strategies[strings.ToLower(t.Strategy)] {
		return false
	}
	if m.statuses != nil && !m.statuses[t.Status] {
		return false
	}
	if m.accounts != nil && !m.accounts[t.AccountID] {
		return false
	}
	return true
}

// set builds a lookup from values after norm; it is nil for an empty input.
func set[T comparable](values []T, norm func(T) T) map[T]bool {
	if len(values) == 0 {
		return nil
	}
	out := make(map[T]bool, len(values))
	for _, v := range values {
		out[norm(v)] = true
	}
	return out
}
