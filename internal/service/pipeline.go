package service

import (
	"time"

	"github.com/guttosm/flexpulse/internal/diagnostics"
	"github.com/guttosm/flexpulse/internal/domain/models"
	"github.com/guttosm/flexpulse/internal/flexquery"
	"github.com/guttosm/flexpulse/internal/normalize"
	"github.com/guttosm/flexpulse/internal/reconcile"
)

// TradeSet is one immutable build of the canonical trade list.
//
// Fields:
//   - Trades: reconciled trades in canonical order (open time, then id).
//   - Diagnostics: rejected fills and reconciliation warnings of this build.
//   - Fills: raw executions the build started from.
//   - Rejected: how many of them the normalizer dropped.
//   - Source: what triggered the build ("startup", "upload", "flex", ...).
//   - BuiltAt: when the build finished.
type TradeSet struct {
	Trades      []models.Trade
	Diagnostics []diagnostics.Event
	Fills       int
	Rejected    int
	Source      string
	BuiltAt     time.Time
}

// Pipeline runs normalize and reconcile as one synchronous unit.
type Pipeline struct {
	norm   *normalize.Normalizer
	recCfg reconcile.Config
	sink   diagnostics.Sink
}

// NewPipeline validates the reconciliation settings up front so that a bad
// matching strategy fails at startup rather than on the first import.
func NewPipeline(opts normalize.Options, cfg reconcile.Config, sink diagnostics.Sink) (*Pipeline, error) {
	if _, err := reconcile.New(cfg, nil); err != nil {
		return nil, err
	}
	return &Pipeline{
		norm:   normalize.New(opts),
		recCfg: cfg,
		sink:   diagnostics.OrDiscard(sink),
	}, nil
}

// Build turns raw fills into a fresh TradeSet. Diagnostics go both to the
// pipeline's sink and into the returned set.
func (p *Pipeline) Build(raws []flexquery.RawFill, source string) *TradeSet {
	collector := diagnostics.NewCollector()
	sink := diagnostics.Tee(collector, p.sink)

	fills := p.norm.NormalizeAll(raws, sink)

	// the config was validated in NewPipeline
	rec, _ := reconcile.New(p.recCfg, sink)
	trades := rec.Reconcile(fills)

	return &TradeSet{
		Trades:      trades,
		Diagnostics: collector.Events(),
		Fills:       len(raws),
		Rejected:    len(raws) - len(fills),
		Source:      source,
		BuiltAt:     time.Now().UTC(),
	}
}
