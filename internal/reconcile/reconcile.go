// Package reconcile groups normalized fills into round-trip trades.
//
// Fills are partitioned per (account, instrument) and matched FIFO. A trade
// spans every fill between two points where the running position is flat;
// positions still open at the end of the input become Open trades, or Expired
// ones for options that ran into their expiry session.
package reconcile

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/guttosm/flexpulse/internal/diagnostics"
	"github.com/guttosm/flexpulse/internal/domain/models"
	"github.com/shopspring/decimal"
)

// StrategyFIFO is the only supported matching strategy.
const StrategyFIFO = "fifo"

// reversalSuffix marks the id of a trade opened by the remainder of a reversing fill.
const reversalSuffix = "-R"

// Config controls reconciliation.
//
// Fields:
//   - Strategy: lot matching strategy; only "fifo" is accepted.
//   - ZeroDTEExpiry: treat residual option positions traded on their expiry
//     date as expired worthless instead of open.
//   - Location: report time zone, used to resolve expiry dates.
//   - ExpiryClose: time of day an expiring option is considered closed.
type Config struct {
	Strategy      string
	ZeroDTEExpiry bool
	Location      *time.Location
	ExpiryClose   time.Duration
}

// Reconciler turns fills into trades. It keeps no state between calls.
type Reconciler struct {
	zeroDTE     bool
	loc         *time.Location
	expiryClose time.Duration
	sink        diagnostics.Sink
}

// New validates cfg and returns a Reconciler reporting warnings to sink.
func New(cfg Config, sink diagnostics.Sink) (*Reconciler, error) {
	strategy := strings.ToLower(strings.TrimSpace(cfg.Strategy))
	if strategy == "" {
		strategy = StrategyFIFO
	}
	if strategy != StrategyFIFO {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStrategy, cfg.Strategy)
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	expiryClose := cfg.ExpiryClose
	if expiryClose <= 0 {
		expiryClose = 16 * time.Hour
	}
	return &Reconciler{
		zeroDTE:     cfg.ZeroDTEExpiry,
		loc:         loc,
		expiryClose: expiryClose,
		sink:        diagnostics.OrDiscard(sink),
	}, nil
}

type partitionKey struct {
	account string
	key     models.InstrumentKey
}

// Reconcile matches fills and returns trades ordered by open time, ties by id.
// The input slice is not modified. Option trades carry a strategy label.
func (r *Reconciler) Reconcile(fills []models.Fill) []models.Trade {
	parts := make(map[partitionKey][]models.Fill)
	var order []partitionKey
	for _, f := range fills {
		pk := partitionKey{account: f.AccountID, key: f.Key}
		if _, ok := parts[pk]; !ok {
			order = append(order, pk)
		}
		parts[pk] = append(parts[pk], f)
	}

	var trades []models.Trade
	for _, pk := range order {
		trades = append(trades, r.reconcilePartition(pk, parts[pk])...)
	}

	sort.SliceStable(trades, func(i, j int) bool {
		if !trades[i].OpenedAt.Equal(trades[j].OpenedAt) {
			return trades[i].OpenedAt.Before(trades[j].OpenedAt)
		}
		return models.FillIDLess(trades[i].ID, trades[j].ID)
	})

	return Classify(trades)
}

func (r *Reconciler) reconcilePartition(pk partitionKey, fills []models.Fill) []models.Trade {
	sort.SliceStable(fills, func(i, j int) bool {
		if !fills[i].ExecutedAt.Equal(fills[j].ExecutedAt) {
			return fills[i].ExecutedAt.Before(fills[j].ExecutedAt)
		}
		return models.FillIDLess(fills[i].ExecID, fills[j].ExecID)
	})

	pos := newPosition(pk.account, pk.key)
	var out []models.Trade

	for _, f := range fills {
		if pos.flat() || pos.qty.Sign() == f.Quantity.Sign() {
			r.open(pos, f, f.ExecID, f.Quantity, f.CostBasis, f.Commission, f.MTMPnL, false)
			continue
		}

		if !f.CloseFlagged() && strings.Contains(f.OpenClose, "O") {
			r.warn(pos, f.ExecID, diagnostics.KindCloseFlagMismatch, "fill flagged opening reduces the position")
		}

		held := pos.qty.Abs()
		size := f.Quantity.Abs()
		if size.LessThanOrEqual(held) {
			matches := pos.consume(f.ExecID, size)
			pos.trade.add(closingLeg(f, f.Quantity, f.CostBasis, f.Commission, false), matches)
			if pos.flat() {
				out = append(out, r.closed(pos))
			}
			continue
		}

		// Reversal: the fill closes the held quantity and opens the rest.
		closeQty := held.Mul(decimal.NewFromInt(int64(f.Quantity.Sign())))
		openQty := f.Quantity.Sub(closeQty)
		closeComm := prorate(f.Commission, held, size)
		closeCost := prorate(f.CostBasis, held, size)

		matches := pos.consume(f.ExecID, held)
		pos.trade.add(closingLeg(f, closeQty, closeCost, closeComm, true), matches)
		out = append(out, r.closed(pos))

		openMTM := f.MTMPnL.Sub(prorate(f.MTMPnL, held, size))
		r.open(pos, f, f.ExecID+reversalSuffix, openQty, f.CostBasis.Sub(closeCost), f.Commission.Sub(closeComm), openMTM, true)
	}

	if !pos.flat() {
		out = append(out, r.residual(pos))
	}
	return out
}

// open appends an opening leg, starting a trade when the position is flat.
func (r *Reconciler) open(pos *position, f models.Fill, tradeID string, qty, cost, comm, mtm decimal.Decimal, split bool) {
	if pos.trade == nil {
		pos.trade = newTradeBuilder(tradeID, f.Description, qty)
	}
	// Reversals are flagged "C;O"; only a bare close flag contradicts an opening.
	if !split && f.CloseFlagged() && !strings.Contains(f.OpenClose, "O") {
		r.warn(pos, f.ExecID, diagnostics.KindCloseFlagMismatch, "fill flagged closing opens or adds to the position")
	}
	leg := models.Leg{
		FillID:       f.ExecID,
		ExecutedAt:   f.ExecutedAt,
		TradeDate:    f.TradeDate,
		Quantity:     qty,
		Price:        f.Price,
		CostBasis:    cost,
		Commission:   comm,
		RealizedPnL:  decimal.Zero,
		FXRate:       f.FXRate,
		Opening:      true,
		Split:        split,
		CloseFlagged: f.CloseFlagged() && !split,
	}
	if !split {
		// broker realized P&L on an opening fill is normally zero; keep it on the leg
		leg.RealizedPnL = f.RealizedPnL
	}
	pos.trade.add(leg, nil)
	pos.push(f.ExecID, qty, cost, mtm)
}

func closingLeg(f models.Fill, qty, cost, comm decimal.Decimal, split bool) models.Leg {
	return models.Leg{
		FillID:       f.ExecID,
		ExecutedAt:   f.ExecutedAt,
		TradeDate:    f.TradeDate,
		Quantity:     qty,
		Price:        f.Price,
		CostBasis:    cost,
		Commission:   comm,
		RealizedPnL:  f.RealizedPnL,
		FXRate:       f.FXRate,
		Split:        split,
		CloseFlagged: f.CloseFlagged(),
	}
}

func (r *Reconciler) closed(pos *position) models.Trade {
	b := pos.trade
	pos.trade = nil
	closedAt := b.lastLeg().ExecutedAt
	return b.build(pos, models.StatusClosed, &closedAt, decimal.Zero, decimal.Zero)
}

// residual finalizes the trade left open at the end of the partition.
func (r *Reconciler) residual(pos *position) models.Trade {
	b := pos.trade
	pos.trade = nil

	flagged := b.closeFlagged()
	if flagged {
		r.warn(pos, b.lastLeg().FillID, diagnostics.KindAmbiguousResidual,
			fmt.Sprintf("position of %s left open although a fill was flagged closing", pos.qty))
	}

	if expiry, ok := r.expiresOnLastSession(pos.key, b.lastLeg()); ok && !flagged {
		closedAt := expiry.Add(r.expiryClose)
		return b.build(pos, models.StatusExpired, &closedAt, pos.qty.Neg(), pos.worthlessValue())
	}
	return b.build(pos, models.StatusOpen, nil, decimal.Zero, decimal.Zero)
}

// expiresOnLastSession reports whether the 0DTE rule applies: the instrument
// is an option and the last leg traded on the expiry date.
func (r *Reconciler) expiresOnLastSession(key models.InstrumentKey, last models.Leg) (time.Time, bool) {
	if !r.zeroDTE || !key.IsOption() {
		return time.Time{}, false
	}
	expiry, ok := key.ExpiryDate(r.loc)
	if !ok {
		return time.Time{}, false
	}
	if last.TradeDate.In(r.loc).Format("2006-01-02") != key.Expiry {
		return time.Time{}, false
	}
	return expiry, true
}

func (r *Reconciler) warn(pos *position, fillID string, kind diagnostics.Kind, msg string) {
	w := &ReconciliationWarning{Kind: kind, Account: pos.account, Key: pos.key, FillID: fillID, Message: msg}
	r.sink.Report(w.event())
}

// prorate returns amount * part / whole. The caller assigns the remainder
// (amount - result) to the other side so both parts sum to amount exactly.
func prorate(amount, part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return amount.Mul(part).DivRound(whole, 8)
}
