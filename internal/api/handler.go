package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/flexpulse/internal/domain/dto"
	"github.com/guttosm/flexpulse/internal/domain/models"
	"github.com/guttosm/flexpulse/internal/flexquery"
	"github.com/guttosm/flexpulse/internal/middleware"
	"github.com/guttosm/flexpulse/internal/query"
	"github.com/guttosm/flexpulse/internal/service"
)

// maxReportBytes caps the size of an uploaded report.
const maxReportBytes = 64 << 20

// TradeService is the subset of service.TradeService used by the handlers.
type TradeService interface {
	Current() *service.TradeSet
	Query(f query.Filter, groupings ...models.Grouping) query.Result
	Import(ctx context.Context, source string, data []byte) (*service.ImportResult, error)
	Refresh(ctx context.Context) (*service.ImportResult, error)
}

// Handler provides the HTTP handlers of the trade analytics API.
//
// Responsibilities:
//   - Validate query parameters and translate them into a query.Filter
//   - Delegate to the trade service
//   - Map results to response DTOs and errors to status codes
type Handler struct {
	svc TradeService
}

// NewHandler constructs a new Handler instance.
//
// Parameters:
//   - svc (TradeService): owner of the canonical trade set.
//
// Returns:
//   - *Handler: A handler ready to be registered with the router.
func NewHandler(svc TradeService) *Handler {
	return &Handler{svc: svc}
}

// GetTrades godoc
// @Summary      List reconciled trades
// @Description  Returns the trades of the current set matching the filters, in canonical order
// @Tags         trades
// @Produce      json
// @Param        from         query     string  false  "Inclusive open date lower bound (YYYY-MM-DD)" example(2024-01-01)
// @Param        to           query     string  false  "Inclusive open date upper bound (YYYY-MM-DD)" example(2024-01-31)
// @Param        asset_class  query     []string  false  "Asset classes (STK, OPT, FOP, FUT, CASH)" collectionFormat(multi)
// @Param        symbol       query     []string  false  "Underlying symbols" collectionFormat(multi)
// @Param        strategy     query     []string  false  "Strategy labels" collectionFormat(multi)
// @Param        status       query     []string  false  "closed, open or expired" collectionFormat(multi)
// @Param        account      query     []string  false  "Account ids" collectionFormat(multi)
// @Success      200          {object}  dto.TradesResponse
// @Failure      400          {object}  dto.ErrorResponse  "Bad Request"
// @Router       /api/v1/trades [get]
func (h *Handler) GetTrades(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "invalid query parameter", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewTradesResponse(query.Apply(h.svc.Current().Trades, f)))
}

// GetMetrics godoc
// @Summary      Metric buckets and summary
// @Description  Buckets the filtered trades by each requested grouping and summarizes them
// @Tags         metrics
// @Produce      json
// @Param        group_by     query     []string  false  "day, symbol, day_symbol, week, month, quarter (default day)" collectionFormat(multi)
// @Param        from         query     string  false  "Inclusive open date lower bound (YYYY-MM-DD)"
// @Param        to           query     string  false  "Inclusive open date upper bound (YYYY-MM-DD)"
// @Param        asset_class  query     []string  false  "Asset classes" collectionFormat(multi)
// @Param        symbol       query     []string  false  "Underlying symbols" collectionFormat(multi)
// @Param        strategy     query     []string  false  "Strategy labels" collectionFormat(multi)
// @Param        status       query     []string  false  "closed, open or expired" collectionFormat(multi)
// @Param        account      query     []string  false  "Account ids" collectionFormat(multi)
// @Success      200          {object}  dto.MetricsResponse
// @Failure      400          {object}  dto.ErrorResponse  "Bad Request"
// @Router       /api/v1/metrics [get]
func (h *Handler) GetMetrics(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "invalid query parameter", err)
		return
	}
	groupings, err := parseGroupings(c)
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "invalid query parameter", err)
		return
	}

	res := h.svc.Query(f, groupings...)
	c.JSON(http.StatusOK, dto.MetricsResponse{Buckets: res.Buckets, Summary: res.Summary})
}

// GetSummary godoc
// @Summary      Summary statistics
// @Description  Win rate, averages, commission drag and the cumulative daily P&L of the filtered trades
// @Tags         metrics
// @Produce      json
// @Param        from         query     string  false  "Inclusive open date lower bound (YYYY-MM-DD)"
// @Param        to           query     string  false  "Inclusive open date upper bound (YYYY-MM-DD)"
// @Param        asset_class  query     []string  false  "Asset classes" collectionFormat(multi)
// @Param        symbol       query     []string  false  "Underlying symbols" collectionFormat(multi)
// @Param        strategy     query     []string  false  "Strategy labels" collectionFormat(multi)
// @Param        status       query     []string  false  "closed, open or expired" collectionFormat(multi)
// @Param        account      query     []string  false  "Account ids" collectionFormat(multi)
// @Success      200          {object}  models.Summary
// @Failure      400          {object}  dto.ErrorResponse  "Bad Request"
// @Router       /api/v1/summary [get]
func (h *Handler) GetSummary(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "invalid query parameter", err)
		return
	}
	c.JSON(http.StatusOK, h.svc.Query(f).Summary)
}

// GetDiagnostics godoc
// @Summary      Diagnostics of the current trade set
// @Description  Rejected fills and reconciliation warnings produced by the last rebuild
// @Tags         diagnostics
// @Produce      json
// @Success      200  {object}  dto.DiagnosticsResponse
// @Router       /api/v1/diagnostics [get]
func (h *Handler) GetDiagnostics(c *gin.Context) {
	set := h.svc.Current()
	c.JSON(http.StatusOK, dto.NewDiagnosticsResponse(set.Source, set.BuiltAt, set.Fills, set.Rejected, len(set.Trades), set.Diagnostics))
}

// PostReport godoc
// @Summary      Upload a Flex Query report
// @Description  Parses the XML body, merges its executions and rebuilds the trade set
// @Tags         reports
// @Accept       xml
// @Produce      json
// @Param        report  body      string  true  "Flex Query XML document"
// @Success      200     {object}  dto.ImportResponse
// @Failure      400     {object}  dto.ErrorResponse  "Empty or oversized body"
// @Failure      422     {object}  dto.ErrorResponse  "Malformed report"
// @Failure      500     {object}  dto.ErrorResponse  "Internal Error"
// @Router       /api/v1/reports [post]
func (h *Handler) PostReport(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxReportBytes))
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "failed to read report", err)
		return
	}
	if len(body) == 0 {
		middleware.AbortWithError(c, http.StatusBadRequest, "empty report", nil)
		return
	}

	res, err := h.svc.Import(c.Request.Context(), "upload", body)
	if err != nil {
		h.importFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, h.importResponse(res))
}

// PostRefresh godoc
// @Summary      Refresh from the Flex Web Service
// @Description  Downloads the configured Flex Query, merges its executions and rebuilds the trade set
// @Tags         reports
// @Produce      json
// @Success      200  {object}  dto.ImportResponse
// @Failure      422  {object}  dto.ErrorResponse  "Malformed report"
// @Failure      502  {object}  dto.ErrorResponse  "Flex Web Service error"
// @Failure      503  {object}  dto.ErrorResponse  "Flex Web Service not configured"
// @Failure      504  {object}  dto.ErrorResponse  "Timed out"
// @Router       /api/v1/refresh [post]
func (h *Handler) PostRefresh(c *gin.Context) {
	res, err := h.svc.Refresh(c.Request.Context())
	if err != nil {
		h.importFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, h.importResponse(res))
}

func (h *Handler) importResponse(res *service.ImportResult) dto.ImportResponse {
	return dto.ImportResponse{
		ReportID:   res.ReportID,
		Source:     res.Source,
		Statements: res.Statements,
		Fills:      res.Fills,
		Duplicate:  res.Duplicate,
		Trades:     len(h.svc.Current().Trades),
	}
}

func (h *Handler) importFailed(c *gin.Context, err error) {
	var (
		perr *flexquery.ParseError
		serr *flexquery.ServiceError
	)
	switch {
	case errors.As(err, &perr):
		middleware.AbortWithError(c, http.StatusUnprocessableEntity, "malformed report", err)
	case errors.Is(err, service.ErrNoFetcher):
		middleware.AbortWithError(c, http.StatusServiceUnavailable, "flex web service is not configured", err)
	case errors.As(err, &serr):
		middleware.AbortWithError(c, http.StatusBadGateway, "flex web service error", err)
	case errors.Is(err, context.DeadlineExceeded):
		middleware.AbortWithError(c, http.StatusGatewayTimeout, "import timed out", err)
	default:
		middleware.AbortWithError(c, http.StatusInternalServerError, "import failed", err)
	}
}
