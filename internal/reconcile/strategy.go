package reconcile

import (
	"sort"
	"time"

	"github.com/guttosm/flexpulse/internal/domain/models"
	"github.com/shopspring/decimal"
)

// Strategy labels assigned to option trades.
const (
	LongCall           = "Long Call"
	ShortCall          = "Short Call"
	LongPut            = "Long Put"
	ShortPut           = "Short Put"
	BullCallSpread     = "Bull Call Spread"
	BearCallSpread     = "Bear Call Spread"
	BullPutSpread      = "Bull Put Spread"
	BearPutSpread      = "Bear Put Spread"
	Straddle           = "Straddle"
	ShortStraddle      = "Short Straddle"
	Strangle           = "Strangle"
	ShortStrangle      = "Short Strangle"
	CalendarCallSpread = "Calendar Call Spread"
	CalendarPutSpread  = "Calendar Put Spread"
	DiagonalCallSpread = "Diagonal Call Spread"
	DiagonalPutSpread  = "Diagonal Put Spread"
	LongCallButterfly  = "Long Call Butterfly"
	LongPutButterfly   = "Long Put Butterfly"
	IronCondor         = "Iron Condor"
	IronButterfly      = "Iron Butterfly"
	BoxSpread          = "Box Spread"
	OtherStrategy      = "Other"
)

// Strategies lists every label Classify can assign.
var Strategies = []string{
	LongCall, ShortCall, LongPut, ShortPut,
	BullCallSpread, BearCallSpread, BullPutSpread, BearPutSpread,
	Straddle, ShortStraddle, Strangle, ShortStrangle,
	CalendarCallSpread, CalendarPutSpread, DiagonalCallSpread, DiagonalPutSpread,
	LongCallButterfly, LongPutButterfly, IronCondor, IronButterfly, BoxSpread,
	OtherStrategy,
}

type comboKey struct {
	account  string
	openedAt time.Time
}

// Classify labels option trades opened together. Trades of one account
// sharing an open timestamp form one combination; each trade in it gets the
// combination's label. Non-option trades keep an empty label. The input is
// not modified.
func Classify(trades []models.Trade) []models.Trade {
	out := make([]models.Trade, len(trades))
	copy(out, trades)

	groups := make(map[comboKey][]int)
	for i, t := range out {
		if !t.Key.IsOption() {
			continue
		}
		k := comboKey{account: t.AccountID, openedAt: t.OpenedAt.UTC()}
		groups[k] = append(groups[k], i)
	}

	for _, idx := range groups {
		legs := make([]comboLeg, 0, len(idx))
		for _, i := range idx {
			legs = append(legs, legOf(out[i]))
		}
		label := classifyLegs(mergeLegs(legs))
		for _, i := range idx {
			out[i].Strategy = label
		}
	}
	return out
}

// comboLeg is one option position of a combination.
type comboLeg struct {
	right  models.Right
	strike decimal.Decimal
	expiry string
	long   bool
	qty    decimal.Decimal
}

func legOf(t models.Trade) comboLeg {
	return comboLeg{
		right:  t.Key.Right,
		strike: t.Key.StrikeValue(),
		expiry: t.Key.Expiry,
		long:   t.Direction == models.Long,
		qty:    t.Quantity,
	}
}

// mergeLegs folds identical contracts on the same side into one leg and
// sorts the result by right, then strike.
func mergeLegs(legs []comboLeg) []comboLeg {
	var out []comboLeg
	for _, l := range legs {
		merged := false
		for i := range out {
			o := &out[i]
			if o.right == l.right && o.expiry == l.expiry && o.long == l.long && o.strike.Equal(l.strike) {
				o.qty = o.qty.Add(l.qty)
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].right != out[j].right {
			return out[i].right < out[j].right
		}
		return out[i].strike.LessThan(out[j].strike)
	})
	return out
}

func classifyLegs(legs []comboLeg) string {
	switch len(legs) {
	case 1:
		return single(legs[0])
	case 2:
		return pair(legs[0], legs[1])
	case 3:
		return butterfly(legs)
	case 4:
		return fourLegs(legs)
	}
	return OtherStrategy
}

func single(l comboLeg) string {
	switch {
	case l.right == models.Call && l.long:
		return LongCall
	case l.right == models.Call:
		return ShortCall
	case l.long:
		return LongPut
	default:
		return ShortPut
	}
}

// pair expects legs sorted by right then strike.
func pair(a, b comboLeg) string {
	if !a.qty.Equal(b.qty) {
		return OtherStrategy
	}

	if a.expiry != b.expiry {
		if a.right != b.right || a.long == b.long {
			return OtherStrategy
		}
		if a.strike.Equal(b.strike) {
			if a.right == models.Call {
				return CalendarCallSpread
			}
			return CalendarPutSpread
		}
		if a.right == models.Call {
			return DiagonalCallSpread
		}
		return DiagonalPutSpread
	}

	if a.right != b.right {
		if a.long != b.long {
			return OtherStrategy
		}
		if a.strike.Equal(b.strike) {
			if a.long {
				return Straddle
			}
			return ShortStraddle
		}
		if a.long {
			return Strangle
		}
		return ShortStrangle
	}

	// vertical: a has the lower strike
	if a.long == b.long || a.strike.Equal(b.strike) {
		return OtherStrategy
	}
	if a.right == models.Call {
		if a.long {
			return BullCallSpread
		}
		return BearCallSpread
	}
	if a.long {
		return BullPutSpread
	}
	return BearPutSpread
}

// butterfly recognises lower/middle/upper strikes of one right and expiry
// with the middle sold twice the wing size.
func butterfly(legs []comboLeg) string {
	lo, mid, hi := legs[0], legs[1], legs[2]
	if lo.right != mid.right || mid.right != hi.right {
		return OtherStrategy
	}
	if lo.expiry != mid.expiry || mid.expiry != hi.expiry {
		return OtherStrategy
	}
	if !lo.long || !hi.long || mid.long {
		return OtherStrategy
	}
	if !lo.qty.Equal(hi.qty) || !mid.qty.Equal(lo.qty.Add(hi.qty)) {
		return OtherStrategy
	}
	if !lo.strike.LessThan(mid.strike) || !mid.strike.LessThan(hi.strike) {
		return OtherStrategy
	}
	if lo.right == models.Call {
		return LongCallButterfly
	}
	return LongPutButterfly
}

// fourLegs recognises a put vertical plus a call vertical on one expiry.
func fourLegs(legs []comboLeg) string {
	for _, l := range legs[1:] {
		if l.expiry != legs[0].expiry || !l.qty.Equal(legs[0].qty) {
			return OtherStrategy
		}
	}
	// sorted by right: calls ("C") first, then puts ("P")
	c1, c2, p1, p2 := legs[0], legs[1], legs[2], legs[3]
	if c1.right != models.Call || c2.right != models.Call || p1.right != models.Put || p2.right != models.Put {
		return OtherStrategy
	}
	if c1.long == c2.long || p1.long == p2.long {
		return OtherStrategy
	}

	// long call low / short call high with long put high / short put low
	if c1.long && !p1.long && c1.strike.Equal(p1.strike) && c2.strike.Equal(p2.strike) {
		return BoxSpread
	}

	// short strikes inside, long wings outside
	if !c1.long && !p2.long && p1.long && c2.long {
		switch {
		case p2.strike.Equal(c1.strike):
			return IronButterfly
		case p2.strike.LessThan(c1.strike):
			return IronCondor
		}
	}
	return OtherStrategy
}
