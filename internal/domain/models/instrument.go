package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AssetClass is the broker's asset category code (assetCategory in Flex reports).
type AssetClass string

const (
	AssetStock        AssetClass = "STK"
	AssetOption       AssetClass = "OPT"
	AssetFutureOption AssetClass = "FOP"
	AssetFuture       AssetClass = "FUT"
	AssetCash         AssetClass = "CASH"
)

// IsOption reports whether the asset class carries option attributes.
func (a AssetClass) IsOption() bool {
	return a == AssetOption || a == AssetFutureOption
}

// Right is the put/call flag of an option contract.
type Right string

const (
	Call Right = "C"
	Put  Right = "P"
)

// expiryLayout is the canonical layout used for InstrumentKey.Expiry.
const expiryLayout = "2006-01-02"

// InstrumentKey identifies the tradable contract a fill belongs to.
//
// Options are keyed by (underlying, asset class, strike, right, expiry);
// everything else by (underlying, asset class). Strike and Expiry are kept as
// canonical strings so the key stays comparable and usable as a map key.
//
// swagger:model InstrumentKey
type InstrumentKey struct {
	Underlying string     `json:"underlying" example:"SPX"`
	AssetClass AssetClass `json:"asset_class" example:"OPT"`
	Strike     string     `json:"strike,omitempty" example:"4700"`
	Right      Right      `json:"right,omitempty" example:"C"`
	Expiry     string     `json:"expiry,omitempty" example:"2024-01-05"`
}

// NewEquityKey builds the key for a non-option instrument.
func NewEquityKey(underlying string, class AssetClass) InstrumentKey {
	return InstrumentKey{Underlying: strings.ToUpper(underlying), AssetClass: class}
}

// NewOptionKey builds the key for an option contract.
func NewOptionKey(underlying string, class AssetClass, strike decimal.Decimal, right Right, expiry time.Time) InstrumentKey {
	return InstrumentKey{
		Underlying: strings.ToUpper(underlying),
		AssetClass: class,
		Strike:     strike.String(),
		Right:      right,
		Expiry:     expiry.Format(expiryLayout),
	}
}

// IsOption reports whether the key describes an option contract.
func (k InstrumentKey) IsOption() bool { return k.AssetClass.IsOption() }

// StrikeValue returns the strike as a decimal (zero for non-options).
func (k InstrumentKey) StrikeValue() decimal.Decimal {
	if k.Strike == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(k.Strike)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ExpiryDate returns the expiry as a civil date in loc, and false when the key has none.
func (k InstrumentKey) ExpiryDate(loc *time.Location) (time.Time, bool) {
	if k.Expiry == "" {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(expiryLayout, k.Expiry, loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func (k InstrumentKey) String() string {
	if !k.IsOption() {
		return fmt.Sprintf("%s (%s)", k.Underlying, k.AssetClass)
	}
	return fmt.Sprintf("%s %s %s%s (%s)", k.Underlying, k.Expiry, k.Strike, k.Right, k.AssetClass)
}
