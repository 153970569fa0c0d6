package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeStatus is the lifecycle state of a reconciled trade.
type TradeStatus string

const (
	StatusClosed  TradeStatus = "Closed"
	StatusOpen    TradeStatus = "Open"
	StatusExpired TradeStatus = "Expired"
)

// Direction is the side the trade was opened on.
type Direction string

const (
	Long  Direction = "Long"
	Short Direction = "Short"
)

// Leg is the portion of one fill owned by a trade.
//
// A fill that reverses a position is split in two legs: the closing part,
// which carries all of the broker-reported realized P&L, and the opening part
// of the next trade. Commission and cost basis are split pro rata by quantity
// with the remainder on the opening part, so the two legs always sum to the
// original fill.
type Leg struct {
	FillID       string          `json:"fill_id"`
	ExecutedAt   time.Time       `json:"executed_at"`
	TradeDate    time.Time       `json:"trade_date"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	CostBasis    decimal.Decimal `json:"cost_basis"`
	Commission   decimal.Decimal `json:"commission"`
	RealizedPnL  decimal.Decimal `json:"realized_pnl"`
	FXRate       decimal.Decimal `json:"fx_rate"`
	Opening      bool            `json:"opening"`
	Split        bool            `json:"split,omitempty"`
	CloseFlagged bool            `json:"close_flagged,omitempty"`
}

// Match records a FIFO pairing of closing quantity against an open leg.
type Match struct {
	OpenFillID  string          `json:"open_fill_id"`
	CloseFillID string          `json:"close_fill_id"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// Trade is one reconciled round trip. It is built once by the reconciler and
// never mutated afterwards.
//
// Fields:
//   - Quantity: total opening quantity (absolute) built up during the trade.
//   - ExpiredQuantity: residual written off at expiry; Legs plus
//     ExpiredQuantity net to zero for Expired trades.
//   - ExpiryPnL: value of the written-off residual closed at zero (the
//     negated opening cost of the unmatched lots); zero unless Expired.
//   - GrossPnL: sum of the legs' realized P&L plus ExpiryPnL.
//   - Commission: sum of the legs' commission (positive = cost).
//   - NetPnL: GrossPnL - Commission.
//   - ClosedAt: nil while Open.
//
// swagger:model Trade
type Trade struct {
	ID              string          `json:"id" example:"532118390"`
	AccountID       string          `json:"account_id" example:"U1234567"`
	Key             InstrumentKey   `json:"instrument"`
	Description     string          `json:"description,omitempty"`
	Direction       Direction       `json:"direction" example:"Short"`
	Status          TradeStatus     `json:"status" example:"Closed"`
	Strategy        string          `json:"strategy,omitempty" example:"Bull Put Spread"`
	OpenedAt        time.Time       `json:"opened_at"`
	ClosedAt        *time.Time      `json:"closed_at,omitempty"`
	Duration        time.Duration   `json:"duration"`
	Quantity        decimal.Decimal `json:"quantity"`
	ExpiredQuantity decimal.Decimal `json:"expired_quantity"`
	ExpiryPnL       decimal.Decimal `json:"expiry_pnl"`
	OpeningCost     decimal.Decimal `json:"opening_cost"`
	GrossPnL        decimal.Decimal `json:"gross_pnl"`
	Commission      decimal.Decimal `json:"commission"`
	NetPnL          decimal.Decimal `json:"net_pnl"`
	Legs            []Leg           `json:"legs"`
	Matches         []Match         `json:"matches,omitempty"`
}

// FillIDs lists the ids of the fills owned by the trade, in leg order.
func (t Trade) FillIDs() []string {
	ids := make([]string, 0, len(t.Legs))
	for _, l := range t.Legs {
		ids = append(ids, l.FillID)
	}
	return ids
}

// NetQuantity is the sum of the legs' signed quantities.
func (t Trade) NetQuantity() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range t.Legs {
		sum = sum.Add(l.Quantity)
	}
	return sum
}

// RecomputeNetPnL derives net P&L from the legs and the expiry write-off.
func (t Trade) RecomputeNetPnL() decimal.Decimal {
	gross, comm := t.ExpiryPnL, decimal.Zero
	for _, l := range t.Legs {
		gross = gross.Add(l.RealizedPnL)
		comm = comm.Add(l.Commission)
	}
	return gross.Sub(comm)
}

// IsWin reports a strictly positive net P&L. Zero is a loss.
func (t Trade) IsWin() bool { return t.NetPnL.IsPositive() }

// OpenDate is the civil date the trade was opened on, in the report time zone.
func (t Trade) OpenDate() string { return t.OpenedAt.Format("2006-01-02") }
