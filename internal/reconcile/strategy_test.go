package reconcile

import (
	"testing"
	"time"

	"github.com/guttosm/flexpulse/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type legSpec struct {
	right  models.Right
	strike string
	expiry time.Time
	dir    models.Direction
	qty    string
}

func comboTrades(openedAt time.Time, specs ...legSpec) []models.Trade {
	var out []models.Trade
	for i, s := range specs {
		out = append(out, models.Trade{
			ID:        string(rune('a' + i)),
			AccountID: "U1",
			Key:       models.NewOptionKey("SPX", models.AssetOption, d(s.strike), s.right, s.expiry),
			Direction: s.dir,
			OpenedAt:  openedAt,
			Quantity:  d(s.qty),
		})
	}
	return out
}

func TestClassify(t *testing.T) {
	exp := day
	later := day.AddDate(0, 0, 7)
	at := day.Add(10 * time.Hour)
	L, S := models.Long, models.Short
	C, P := models.Call, models.Put

	tests := []struct {
		name string
		legs []legSpec
		want string
	}{
		{"long call", []legSpec{{C, "100", exp, L, "1"}}, LongCall},
		{"short call", []legSpec{{C, "100", exp, S, "1"}}, ShortCall},
		{"long put", []legSpec{{P, "100", exp, L, "1"}}, LongPut},
		{"short put", []legSpec{{P, "100", exp, S, "1"}}, ShortPut},
		{"bull call spread", []legSpec{{C, "110", exp, S, "1"}, {C, "100", exp, L, "1"}}, BullCallSpread},
		{"bear call spread", []legSpec{{C, "100", exp, S, "1"}, {C, "110", exp, L, "1"}}, BearCallSpread},
		{"bull put spread", []legSpec{{P, "100", exp, S, "2"}, {P, "90", exp, L, "2"}}, BullPutSpread},
		{"bear put spread", []legSpec{{P, "100", exp, L, "1"}, {P, "90", exp, S, "1"}}, BearPutSpread},
		{"straddle", []legSpec{{C, "100", exp, L, "1"}, {P, "100", exp, L, "1"}}, Straddle},
		{"short straddle", []legSpec{{C, "100", exp, S, "1"}, {P, "100", exp, S, "1"}}, ShortStraddle},
		{"strangle", []legSpec{{C, "110", exp, L, "1"}, {P, "90", exp, L, "1"}}, Strangle},
		{"short strangle", []legSpec{{C, "110", exp, S, "1"}, {P, "90", exp, S, "1"}}, ShortStrangle},
		{"calendar call", []legSpec{{C, "100", exp, S, "1"}, {C, "100", later, L, "1"}}, CalendarCallSpread},
		{"diagonal put", []legSpec{{P, "100", exp, S, "1"}, {P, "95", later, L, "1"}}, DiagonalPutSpread},
		{"call butterfly", []legSpec{{C, "90", exp, L, "1"}, {C, "100", exp, S, "1"}, {C, "100", exp, S, "1"}, {C, "110", exp, L, "1"}}, LongCallButterfly},
		{"put butterfly", []legSpec{{P, "90", exp, L, "1"}, {P, "100", exp, S, "2"}, {P, "110", exp, L, "1"}}, LongPutButterfly},
		{"iron condor", []legSpec{{P, "90", exp, L, "1"}, {P, "95", exp, S, "1"}, {C, "105", exp, S, "1"}, {C, "110", exp, L, "1"}}, IronCondor},
		{"iron butterfly", []legSpec{{P, "90", exp, L, "1"}, {P, "100", exp, S, "1"}, {C, "100", exp, S, "1"}, {C, "110", exp, L, "1"}}, IronButterfly},
		{"box spread", []legSpec{{C, "90", exp, L, "1"}, {C, "110", exp, S, "1"}, {P, "110", exp, L, "1"}, {P, "90", exp, S, "1"}}, BoxSpread},
		{"ratio spread", []legSpec{{C, "100", exp, L, "1"}, {C, "110", exp, S, "2"}}, OtherStrategy},
		{"five legs", []legSpec{{C, "100", exp, L, "1"}, {C, "105", exp, S, "1"}, {C, "110", exp, L, "1"}, {P, "90", exp, S, "1"}, {P, "80", exp, L, "1"}}, OtherStrategy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Classify(comboTrades(at, tt.legs...))
			require.Len(t, out, len(tt.legs))
			for _, tr := range out {
				assert.Equal(t, tt.want, tr.Strategy, "trade %s", tr.ID)
			}
		})
	}
}

func TestClassify_GroupsByAccountAndOpenTime(t *testing.T) {
	at := day.Add(10 * time.Hour)
	trades := comboTrades(at,
		legSpec{models.Put, "100", day, models.Short, "1"},
		legSpec{models.Put, "90", day, models.Long, "1"},
	)
	other := comboTrades(at.Add(time.Minute), legSpec{models.Call, "100", day, models.Long, "1"})
	otherAccount := comboTrades(at, legSpec{models.Call, "120", day, models.Short, "1"})
	otherAccount[0].AccountID = "U2"
	stockTrade := models.Trade{ID: "s", AccountID: "U1", Key: stock, OpenedAt: at, Direction: models.Long}

	input := append(append(append(trades, other...), otherAccount...), stockTrade)
	out := Classify(input)

	assert.Equal(t, BullPutSpread, out[0].Strategy)
	assert.Equal(t, BullPutSpread, out[1].Strategy)
	assert.Equal(t, LongCall, out[2].Strategy)
	assert.Equal(t, ShortCall, out[3].Strategy)
	assert.Empty(t, out[4].Strategy)
	assert.Empty(t, input[0].Strategy, "input is not modified")
}
