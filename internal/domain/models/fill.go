package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Fill is one normalized broker execution.
//
// Monetary fields (CostBasis, Commission, RealizedPnL, MTMPnL) are expressed in
// the reporting currency, converted with the fill's own FXRate. Commission is
// a positive cost (the broker reports it negative). Quantity is signed:
// positive for buys, negative for sells, and never zero.
//
// swagger:model Fill
type Fill struct {
	ExecID      string          `json:"exec_id" example:"532118390"`
	AccountID   string          `json:"account_id" example:"U1234567"`
	Key         InstrumentKey   `json:"instrument"`
	Symbol      string          `json:"symbol" example:"SPXW  240105C04700000"`
	Description string          `json:"description,omitempty"`
	Currency    string          `json:"currency" example:"USD"`
	TradeDate   time.Time       `json:"trade_date"`
	SettleDate  time.Time       `json:"settle_date,omitempty"`
	ExecutedAt  time.Time       `json:"executed_at"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Multiplier  decimal.Decimal `json:"multiplier"`
	CostBasis   decimal.Decimal `json:"cost_basis"`
	Commission  decimal.Decimal `json:"commission"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	MTMPnL      decimal.Decimal `json:"mtm_pnl"`
	FXRate      decimal.Decimal `json:"fx_rate"`
	OpenClose   string          `json:"open_close,omitempty" example:"O"`
	Notes       string          `json:"notes,omitempty"`
}

// IsBuy reports whether the fill adds to a long position.
func (f Fill) IsBuy() bool { return f.Quantity.IsPositive() }

// CloseFlagged reports whether the broker marked the execution as closing.
// Reversals are flagged "C;O" by the broker and count as closing.
func (f Fill) CloseFlagged() bool {
	for _, part := range strings.Split(f.OpenClose, ";") {
		if strings.EqualFold(strings.TrimSpace(part), "C") {
			return true
		}
	}
	return false
}

// FillIDLess orders execution ids. Broker trade ids are integers, so two
// all-digit ids compare numerically ("9" before "10"); anything else falls
// back to plain string order.
func FillIDLess(a, b string) bool {
	if isDigits(a) && isDigits(b) {
		a, b = trimZeros(a), trimZeros(b)
		if len(a) != len(b) {
			return len(a) < len(b)
		}
	}
	return a < b
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func trimZeros(s string) string {
	t := strings.TrimLeft(s, "0")
	if t == "" {
		return "0"
	}
	return t
}
