package reconcile

import (
	"errors"
	"fmt"

	"github.com/guttosm/flexpulse/internal/diagnostics"
	"github.com/guttosm/flexpulse/internal/domain/models"
)

// ErrUnsupportedStrategy is returned by New for matching strategies other than fifo.
var ErrUnsupportedStrategy = errors.New("unsupported matching strategy")

// ReconciliationWarning is a non-fatal inconsistency found while matching.
type ReconciliationWarning struct {
	Kind    diagnostics.Kind
	Account string
	Key     models.InstrumentKey
	FillID  string
	Message string
}

func (w *ReconciliationWarning) Error() string {
	return fmt.Sprintf("reconcile %s %s fill %s: %s", w.Account, w.Key, w.FillID, w.Message)
}

func (w *ReconciliationWarning) event() diagnostics.Event {
	return diagnostics.Event{
		Kind:       w.Kind,
		AccountID:  w.Account,
		Instrument: w.Key.String(),
		FillID:     w.FillID,
		Message:    w.Error(),
		Err:        w,
	}
}
