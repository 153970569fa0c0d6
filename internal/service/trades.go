package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guttosm/flexpulse/internal/domain/models"
	"github.com/guttosm/flexpulse/internal/flexquery"
	"github.com/guttosm/flexpulse/internal/logger"
	"github.com/guttosm/flexpulse/internal/metrics"
	"github.com/guttosm/flexpulse/internal/query"
	"github.com/guttosm/flexpulse/internal/storage"
)

// ErrNoFetcher is returned by Refresh when no Flex Web Service client is configured.
var ErrNoFetcher = errors.New("flex web service is not configured")

// Fetcher downloads a Flex Query report.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// ImportResult describes one imported report.
type ImportResult struct {
	ReportID   string `json:"report_id" example:"9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"`
	Source     string `json:"source" example:"upload"`
	Statements int    `json:"statements" example:"1"`
	Fills      int    `json:"fills" example:"42"`
	Duplicate  bool   `json:"duplicate" example:"false"`
}

// TradeService owns the canonical trade set.
//
// Readers call Current or Query and always see a complete set. Writers
// (Import, Rebuild, Replace) are serialized and publish a new set with a
// single atomic swap.
type TradeService struct {
	pipeline *Pipeline
	store    storage.FillsRepository
	fetcher  Fetcher
	metrics  *metrics.Metrics

	mu      sync.Mutex
	raws    map[string]flexquery.RawFill
	current atomic.Pointer[TradeSet]
}

// NewTradeService wires the pipeline with its optional collaborators.
// store, fetcher and m may all be nil.
func NewTradeService(p *Pipeline, store storage.FillsRepository, fetcher Fetcher, m *metrics.Metrics) *TradeService {
	s := &TradeService{
		pipeline: p,
		store:    store,
		fetcher:  fetcher,
		metrics:  m,
		raws:     make(map[string]flexquery.RawFill),
	}
	s.current.Store(&TradeSet{Source: "empty", BuiltAt: time.Now().UTC()})
	return s
}

// ReportID is the content hash identifying a report across imports.
func ReportID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Current returns the published trade set. It is never nil.
func (s *TradeService) Current() *TradeSet {
	return s.current.Load()
}

// Query filters the current set and recomputes metrics over the subset.
func (s *TradeService) Query(f query.Filter, groupings ...models.Grouping) query.Result {
	return query.Run(s.Current().Trades, f, groupings...)
}

// Rebuild reloads the stored fills (when a store is configured) and
// publishes a fresh trade set.
func (s *TradeService) Rebuild(ctx context.Context, source string) (*TradeSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuildLocked(ctx, source)
}

// Replace publishes a set built from raws alone, discarding previously
// imported fills held in memory. Stored fills are left untouched.
func (s *TradeService) Replace(raws []flexquery.RawFill, source string) *TradeSet {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.raws = make(map[string]flexquery.RawFill, len(raws))
	for _, f := range raws {
		s.raws[f.ExecID] = f
	}
	start := time.Now()
	set := s.pipeline.Build(s.memoryFills(), source)
	return s.publish(set, time.Since(start))
}

// Import parses a report, merges its fills with those already known and
// publishes the rebuilt set. A report already recorded in the import log is
// acknowledged as a duplicate without rebuilding.
func (s *TradeService) Import(ctx context.Context, source string, data []byte) (*ImportResult, error) {
	rep, err := flexquery.ParseBytes(data)
	if err != nil {
		s.metrics.ObserveImport(source, 0, err)
		return nil, fmt.Errorf("parse report: %w", err)
	}

	res := &ImportResult{
		ReportID:   ReportID(data),
		Source:     source,
		Statements: len(rep.Statements),
		Fills:      len(rep.Fills),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil {
		done, err := s.store.HasImport(ctx, res.ReportID)
		if err != nil {
			s.metrics.ObserveImport(source, 0, err)
			return nil, fmt.Errorf("check import log: %w", err)
		}
		if done {
			logger.L().Info().Str("report_id", res.ReportID).Str("source", source).Msg("report already imported, skipping")
			res.Duplicate = true
			s.metrics.ObserveImport(source, 0, nil)
			return res, nil
		}
		if err := s.store.InsertRawFills(ctx, res.ReportID, rep.Fills); err != nil {
			s.metrics.ObserveImport(source, 0, err)
			return nil, fmt.Errorf("store fills: %w", err)
		}
		if err := s.store.UpsertImportLog(ctx, res.ReportID, source, len(rep.Fills)); err != nil {
			s.metrics.ObserveImport(source, 0, err)
			return nil, fmt.Errorf("update import log: %w", err)
		}
	} else {
		for _, f := range rep.Fills {
			s.raws[f.ExecID] = f
		}
	}

	if _, err := s.rebuildLocked(ctx, source); err != nil {
		s.metrics.ObserveImport(source, len(rep.Fills), err)
		return nil, err
	}

	s.metrics.ObserveImport(source, len(rep.Fills), nil)
	logger.L().Info().
		Str("report_id", res.ReportID).
		Str("source", source).
		Int("statements", res.Statements).
		Int("fills", res.Fills).
		Msg("report imported")
	return res, nil
}

// Refresh downloads the configured Flex Query and imports it.
func (s *TradeService) Refresh(ctx context.Context) (*ImportResult, error) {
	if s.fetcher == nil {
		return nil, ErrNoFetcher
	}
	data, err := s.fetcher.Fetch(ctx)
	if err != nil {
		s.metrics.ObserveImport("flex", 0, err)
		return nil, fmt.Errorf("fetch report: %w", err)
	}
	return s.Import(ctx, "flex", data)
}

func (s *TradeService) rebuildLocked(ctx context.Context, source string) (*TradeSet, error) {
	var raws []flexquery.RawFill
	if s.store != nil {
		stored, err := s.store.ListRawFills(ctx)
		if err != nil {
			return nil, fmt.Errorf("load fills: %w", err)
		}
		raws = stored
	} else {
		raws = s.memoryFills()
	}
	start := time.Now()
	set := s.pipeline.Build(raws, source)
	return s.publish(set, time.Since(start)), nil
}

// memoryFills returns the in-memory fills ordered by exec id.
func (s *TradeService) memoryFills() []flexquery.RawFill {
	raws := make([]flexquery.RawFill, 0, len(s.raws))
	for _, f := range s.raws {
		raws = append(raws, f)
	}
	sort.Slice(raws, func(i, j int) bool { return models.FillIDLess(raws[i].ExecID, raws[j].ExecID) })
	return raws
}

func (s *TradeService) publish(set *TradeSet, took time.Duration) *TradeSet {
	s.current.Store(set)
	s.metrics.ObserveRebuild(set.Trades, took)

	logger.L().Info().
		Str("source", set.Source).
		Int("fills", set.Fills).
		Int("rejected", set.Rejected).
		Int("trades", len(set.Trades)).
		Int("diagnostics", len(set.Diagnostics)).
		Dur("took", took).
		Msg("trade set published")
	return set
}
