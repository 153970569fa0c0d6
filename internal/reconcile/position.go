package reconcile

import (
	"time"

	"github.com/guttosm/flexpulse/internal/domain/models"
	"github.com/shopspring/decimal"
)

// openLot is the unmatched remainder of an opening leg. Remaining and
// quantity carry the sign of the position; cost and mtm belong to the whole
// opening quantity.
type openLot struct {
	fillID    string
	quantity  decimal.Decimal
	remaining decimal.Decimal
	cost      decimal.Decimal
	mtm       decimal.Decimal
}

// position is the running state of one (account, instrument) partition.
// Open lots live in an arena consumed from head, so FIFO pops never shift.
type position struct {
	account string
	key     models.InstrumentKey
	qty     decimal.Decimal
	lots    []openLot
	head    int
	trade   *tradeBuilder
}

func newPosition(account string, key models.InstrumentKey) *position {
	return &position{account: account, key: key, qty: decimal.Zero}
}

func (p *position) flat() bool { return p.qty.IsZero() }

func (p *position) push(fillID string, qty, cost, mtm decimal.Decimal) {
	p.lots = append(p.lots, openLot{fillID: fillID, quantity: qty, remaining: qty, cost: cost, mtm: mtm})
	p.qty = p.qty.Add(qty)
}

// worthlessValue is the P&L of closing every unmatched lot at zero: the
// negated opening cost of the remaining quantity. A lot reported without cost
// basis falls back to its broker mark-to-market P&L.
func (p *position) worthlessValue() decimal.Decimal {
	sum := decimal.Zero
	for _, lot := range p.lots[p.head:] {
		if lot.remaining.IsZero() {
			continue
		}
		part, whole := lot.remaining.Abs(), lot.quantity.Abs()
		if lot.cost.IsZero() {
			sum = sum.Add(prorate(lot.mtm, part, whole))
			continue
		}
		sum = sum.Sub(prorate(lot.cost, part, whole))
	}
	return sum
}

// consume closes qty (absolute) against open lots in FIFO order and returns
// one match per lot touched.
func (p *position) consume(closeFillID string, qty decimal.Decimal) []models.Match {
	var matches []models.Match
	left := qty
	for left.IsPositive() && p.head < len(p.lots) {
		lot := &p.lots[p.head]
		avail := lot.remaining.Abs()
		take := decimal.Min(avail, left)

		matches = append(matches, models.Match{OpenFillID: lot.fillID, CloseFillID: closeFillID, Quantity: take})

		if lot.remaining.IsPositive() {
			lot.remaining = lot.remaining.Sub(take)
			p.qty = p.qty.Sub(take)
		} else {
			lot.remaining = lot.remaining.Add(take)
			p.qty = p.qty.Add(take)
		}
		left = left.Sub(take)
		if lot.remaining.IsZero() {
			p.head++
		}
	}
	if p.head == len(p.lots) {
		p.lots = p.lots[:0]
		p.head = 0
	}
	return matches
}

// tradeBuilder accumulates legs between two flat points of a position.
type tradeBuilder struct {
	id          string
	description string
	direction   models.Direction
	quantity    decimal.Decimal
	legs        []models.Leg
	matches     []models.Match
}

func newTradeBuilder(id, description string, firstQty decimal.Decimal) *tradeBuilder {
	dir := models.Long
	if firstQty.IsNegative() {
		dir = models.Short
	}
	return &tradeBuilder{id: id, description: description, direction: dir, quantity: decimal.Zero}
}

func (b *tradeBuilder) add(leg models.Leg, matches []models.Match) {
	if leg.Opening {
		b.quantity = b.quantity.Add(leg.Quantity.Abs())
	}
	b.legs = append(b.legs, leg)
	b.matches = append(b.matches, matches...)
}

func (b *tradeBuilder) closeFlagged() bool {
	for _, l := range b.legs {
		if l.CloseFlagged {
			return true
		}
	}
	return false
}

func (b *tradeBuilder) lastLeg() models.Leg { return b.legs[len(b.legs)-1] }

// build freezes the builder into a Trade. closedAt is nil for open trades;
// expired and expiryPnL are zero unless the residual was written off.
func (b *tradeBuilder) build(p *position, status models.TradeStatus, closedAt *time.Time, expired, expiryPnL decimal.Decimal) models.Trade {
	gross, comm, cost := decimal.Zero, decimal.Zero, decimal.Zero
	for _, l := range b.legs {
		gross = gross.Add(l.RealizedPnL)
		comm = comm.Add(l.Commission)
		if l.Opening {
			cost = cost.Add(l.CostBasis)
		}
	}
	gross = gross.Add(expiryPnL)

	legs := make([]models.Leg, len(b.legs))
	copy(legs, b.legs)
	var matches []models.Match
	if len(b.matches) > 0 {
		matches = make([]models.Match, len(b.matches))
		copy(matches, b.matches)
	}

	t := models.Trade{
		ID:              b.id,
		AccountID:       p.account,
		Key:             p.key,
		Description:     b.description,
		Direction:       b.direction,
		Status:          status,
		OpenedAt:        legs[0].ExecutedAt,
		Quantity:        b.quantity,
		ExpiredQuantity: expired,
		ExpiryPnL:       expiryPnL,
		OpeningCost:     cost,
		GrossPnL:        gross,
		Commission:      comm,
		NetPnL:          gross.Sub(comm),
		Legs:            legs,
		Matches:         matches,
	}
	if closedAt != nil {
		c := *closedAt
		t.ClosedAt = &c
		t.Duration = c.Sub(t.OpenedAt)
	}
	return t
}
