package dto

import (
	"time"

	"github.com/guttosm/flexpulse/internal/diagnostics"
	"github.com/guttosm/flexpulse/internal/domain/models"
)

// TradesResponse is returned by GET /api/v1/trades.
type TradesResponse struct {
	Count  int            `json:"count" example:"2"`
	Trades []models.Trade `json:"trades"`
}

// MetricsResponse is returned by GET /api/v1/metrics. Buckets are keyed by
// grouping name.
type MetricsResponse struct {
	Buckets map[models.Grouping][]models.MetricBucket `json:"buckets"`
	Summary models.Summary                            `json:"summary"`
}

// DiagnosticsResponse is returned by GET /api/v1/diagnostics.
type DiagnosticsResponse struct {
	Source   string              `json:"source" example:"upload"`
	BuiltAt  time.Time           `json:"built_at"`
	Fills    int                 `json:"fills" example:"120"`
	Rejected int                 `json:"rejected" example:"1"`
	Trades   int                 `json:"trades" example:"48"`
	Counts   map[string]int      `json:"counts"`
	Events   []diagnostics.Event `json:"events"`
}

// ImportResponse is returned by POST /api/v1/reports and POST /api/v1/refresh.
type ImportResponse struct {
	ReportID   string `json:"report_id" example:"9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"`
	Source     string `json:"source" example:"upload"`
	Statements int    `json:"statements" example:"1"`
	Fills      int    `json:"fills" example:"42"`
	Duplicate  bool   `json:"duplicate" example:"false"`
	Trades     int    `json:"trades" example:"17"`
}

// NewTradesResponse wraps trades, never returning a nil slice.
func NewTradesResponse(trades []models.Trade) TradesResponse {
	if trades == nil {
		trades = []models.Trade{}
	}
	return TradesResponse{Count: len(trades), Trades: trades}
}

// NewDiagnosticsResponse counts events by kind.
func NewDiagnosticsResponse(source string, builtAt time.Time, fills, rejected, trades int, events []diagnostics.Event) DiagnosticsResponse {
	counts := make(map[string]int)
	for _, ev := range events {
		counts[string(ev.Kind)]++
	}
	if events == nil {
		events = []diagnostics.Event{}
	}
	return DiagnosticsResponse{
		Source:   source,
		BuiltAt:  builtAt,
		Fills:    fills,
		Rejected: rejected,
		Trades:   trades,
		Counts:   counts,
		Events:   events,
	}
}
