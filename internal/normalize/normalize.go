package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/guttosm/flexpulse/internal/diagnostics"
	"github.com/guttosm/flexpulse/internal/domain/models"
	"github.com/guttosm/flexpulse/internal/flexquery"
	"github.com/shopspring/decimal"
)

const (
	// DefaultDateLayout is the broker's compact date format.
	DefaultDateLayout = "20060102"
	timeLayout        = "150405"
)

// NormalizationError rejects a single raw fill.
type NormalizationError struct {
	ExecID string
	Field  string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize fill %s: %s: %s", e.ExecID, e.Field, e.Reason)
}

// Options control how raw report values are interpreted.
//
// Fields:
//   - BaseCurrency: reporting currency; monetary fields are converted into it.
//   - Location: time zone of the report's dates and timestamps.
//   - DateLayout: Go layout of date attributes (default "20060102").
//   - DateTimeSeparator: literal between date and time in dateTime
//     ("" when they are concatenated).
type Options struct {
	BaseCurrency      string
	Location          *time.Location
	DateLayout        string
	DateTimeSeparator string
}

// ParseSeparator maps a configured separator name to its literal value.
// Accepted: "none", ";", ",", "space" (or " "), "T".
func ParseSeparator(name string) (string, error) {
	switch name {
	case "", "none":
		return "", nil
	case ";", ",", "T":
		return name, nil
	case " ", "space":
		return " ", nil
	default:
		return "", fmt.Errorf("unsupported date-time separator %q", name)
	}
}

// Normalizer turns raw fills into normalized fills.
type Normalizer struct {
	base     string
	loc      *time.Location
	date     string
	dateTime string
}

// New returns a Normalizer with defaults applied to opts.
func New(opts Options) *Normalizer {
	n := &Normalizer{
		base: strings.ToUpper(opts.BaseCurrency),
		loc:  opts.Location,
		date: opts.DateLayout,
	}
	if n.base == "" {
		n.base = "USD"
	}
	if n.loc == nil {
		n.loc = time.UTC
	}
	if n.date == "" {
		n.date = DefaultDateLayout
	}
	n.dateTime = n.date + opts.DateTimeSeparator + timeLayout
	return n
}

// Normalize validates raw and maps it to a Fill. Any failure is a
// *NormalizationError naming the offending field.
func (n *Normalizer) Normalize(raw flexquery.RawFill) (models.Fill, error) {
	reject := func(field, format string, args ...any) (models.Fill, error) {
		return models.Fill{}, &NormalizationError{ExecID: raw.ExecID, Field: field, Reason: fmt.Sprintf(format, args...)}
	}

	if raw.Quantity.IsZero() {
		return reject("quantity", "zero quantity")
	}

	qty := raw.Quantity.Abs()
	switch {
	case strings.HasPrefix(raw.BuySell, "BUY"):
	case strings.HasPrefix(raw.BuySell, "SELL"):
		qty = qty.Neg()
	default:
		return reject("buySell", "unknown side %q", raw.BuySell)
	}

	tradeDate, err := time.ParseInLocation(n.date, raw.TradeDate, n.loc)
	if err != nil {
		return reject("tradeDate", "%q does not match %q", raw.TradeDate, n.date)
	}

	executedAt := tradeDate
	if raw.DateTime != "" {
		executedAt, err = time.ParseInLocation(n.dateTime, raw.DateTime, n.loc)
		if err != nil {
			return reject("dateTime", "%q does not match %q", raw.DateTime, n.dateTime)
		}
	}

	var settleDate time.Time
	if raw.SettleDate != "" {
		settleDate, err = time.ParseInLocation(n.date, raw.SettleDate, n.loc)
		if err != nil {
			return reject("settleDateTarget", "%q does not match %q", raw.SettleDate, n.date)
		}
	}

	class := models.AssetClass(raw.AssetCategory)
	hasStrike := raw.Strike.Valid && !raw.Strike.Decimal.IsZero()

	var key models.InstrumentKey
	if class.IsOption() {
		right := models.Right(raw.PutCall)
		if right != models.Call && right != models.Put {
			return reject("putCall", "option needs put/call, got %q", raw.PutCall)
		}
		if !hasStrike || !raw.Strike.Decimal.IsPositive() {
			return reject("strike", "option needs a positive strike")
		}
		if raw.Expiry == "" {
			return reject("expiry", "option needs an expiry")
		}
		expiry, err := time.ParseInLocation(n.date, raw.Expiry, n.loc)
		if err != nil {
			return reject("expiry", "%q does not match %q", raw.Expiry, n.date)
		}
		underlying := raw.UnderlyingSymbol
		if underlying == "" {
			parts := strings.Fields(raw.Symbol)
			if len(parts) == 0 {
				return reject("underlyingSymbol", "option has no underlying")
			}
			underlying = parts[0]
		}
		key = models.NewOptionKey(underlying, class, raw.Strike.Decimal, right, expiry)
	} else {
		// futures carry a contract expiry of their own
		if raw.PutCall != "" || hasStrike || (raw.Expiry != "" && class != models.AssetFuture) {
			return reject("assetCategory", "%s fill carries option attributes", raw.AssetCategory)
		}
		key = models.NewEquityKey(raw.Symbol, class)
	}

	fx := decimal.NewFromInt(1)
	if raw.Currency != n.base {
		if !raw.FXRateToBase.Valid || raw.FXRateToBase.Decimal.IsZero() {
			return reject("fxRateToBase", "%s fill needs an fx rate to %s", raw.Currency, n.base)
		}
		fx = raw.FXRateToBase.Decimal
	}

	return models.Fill{
		ExecID:      raw.ExecID,
		AccountID:   raw.AccountID,
		Key:         key,
		Symbol:      raw.Symbol,
		Description: raw.Description,
		Currency:    raw.Currency,
		TradeDate:   tradeDate,
		SettleDate:  settleDate,
		ExecutedAt:  executedAt,
		Quantity:    qty,
		Price:       raw.TradePrice,
		Multiplier:  raw.Multiplier,
		CostBasis:   raw.CostBasis.Mul(fx),
		Commission:  raw.Commission.Neg().Mul(fx),
		RealizedPnL: raw.RealizedPnL.Mul(fx),
		MTMPnL:      raw.MTMPnL.Mul(fx),
		FXRate:      fx,
		OpenClose:   raw.OpenClose,
		Notes:       raw.Notes,
	}, nil
}

// NormalizeAll normalizes every raw fill, reporting each rejection to sink
// and returning the accepted fills in input order.
func (n *Normalizer) NormalizeAll(raws []flexquery.RawFill, sink diagnostics.Sink) []models.Fill {
	sink = diagnostics.OrDiscard(sink)
	fills := make([]models.Fill, 0, len(raws))
	for _, raw := range raws {
		f, err := n.Normalize(raw)
		if err != nil {
			sink.Report(diagnostics.Event{
				Kind:      diagnostics.KindRejectedFill,
				AccountID: raw.AccountID,
				FillID:    raw.ExecID,
				Err:       err,
			})
			continue
		}
		fills = append(fills, f)
	}
	return fills
}
