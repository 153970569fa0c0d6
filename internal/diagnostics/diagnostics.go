// Package diagnostics carries non-fatal findings (rejected fills and
// reconciliation warnings) out of the pipeline without coupling it to a
// particular logger or store.
package diagnostics

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Kind classifies a diagnostic event.
type Kind string

const (
	// KindRejectedFill is reported when the normalizer drops a record.
	KindRejectedFill Kind = "rejected_fill"
	// KindCloseFlagMismatch is reported when a broker close flag contradicts
	// the running position.
	KindCloseFlagMismatch Kind = "close_flag_mismatch"
	// KindAmbiguousResidual is reported when an unflat position contains a
	// broker close-flagged fill.
	KindAmbiguousResidual Kind = "ambiguous_residual"
)

// Event is one diagnostic finding.
//
// swagger:model DiagnosticEvent
type Event struct {
	Kind       Kind      `json:"kind" example:"rejected_fill"`
	AccountID  string    `json:"account_id,omitempty" example:"U1234567"`
	Instrument string    `json:"instrument,omitempty" example:"SPX 2024-01-05 4700C (OPT)"`
	FillID     string    `json:"fill_id,omitempty" example:"532118390"`
	Message    string    `json:"message"`
	At         time.Time `json:"at"`
	Err        error     `json:"-"`
}

// Sink receives diagnostic events. Implementations must be safe for
// concurrent use.
type Sink interface {
	Report(Event)
}

// Discard drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Report(Event) {}

// Collector keeps every event in memory.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// NewCollector returns an empty collector.
func NewCollector() *Collector { return &Collector{} }

// Report appends ev.
func (c *Collector) Report(ev Event) {
	ev = complete(ev)
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

// Events returns a copy of the collected events in report order.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Counts returns the number of events per kind.
func (c *Collector) Counts() map[Kind]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts := make(map[Kind]int, 3)
	for _, ev := range c.events {
		counts[ev.Kind]++
	}
	return counts
}

// LogSink writes each event as a structured warning.
type LogSink struct {
	log *zerolog.Logger
}

// NewLogSink returns a sink logging through l.
func NewLogSink(l *zerolog.Logger) *LogSink { return &LogSink{log: l} }

// Report logs ev at warn level.
func (s *LogSink) Report(ev Event) {
	ev = complete(ev)
	s.log.Warn().
		Str("kind", string(ev.Kind)).
		Str("account", ev.AccountID).
		Str("instrument", ev.Instrument).
		Str("fill_id", ev.FillID).
		Msg(ev.Message)
}

// Tee fans events out to every non-nil sink.
func Tee(sinks ...Sink) Sink {
	out := make(tee, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type tee []Sink

func (t tee) Report(ev Event) {
	ev = complete(ev)
	for _, s := range t {
		s.Report(ev)
	}
}

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

func complete(ev Event) Event {
	if ev.Message == "" && ev.Err != nil {
		ev.Message = ev.Err.Error()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	return ev
}
