package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/flexpulse/internal/domain/models"
	"github.com/guttosm/flexpulse/internal/query"
)

const dateParamLayout = "2006-01-02"

var statusByName = map[string]models.TradeStatus{
	"closed":  models.StatusClosed,
	"open":    models.StatusOpen,
	"expired": models.StatusExpired,
}

var knownAssetClasses = map[models.AssetClass]bool{
	models.AssetStock:        true,
	models.AssetOption:       true,
	models.AssetFutureOption: true,
	models.AssetFuture:       true,
	models.AssetCash:         true,
}

// multiValue reads a query parameter that may be repeated and/or
// comma-separated: ?symbol=SPX&symbol=QQQ and ?symbol=SPX,QQQ are equivalent.
func multiValue(c *gin.Context, key string) []string {
	var out []string
	for _, raw := range c.QueryArray(key) {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// parseFilter builds a query.Filter from the request's query string.
//
// Query Parameters:
//   - from, to: inclusive open-date bounds, YYYY-MM-DD.
//   - asset_class: STK, OPT, FOP, FUT, CASH.
//   - symbol, strategy, account: free values.
//   - status: closed, open, expired.
func parseFilter(c *gin.Context) (query.Filter, error) {
	var f query.Filter

	for _, bound := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		s := strings.TrimSpace(c.Query(bound.name))
		if s == "" {
			continue
		}
		t, err := time.Parse(dateParamLayout, s)
		if err != nil {
			return query.Filter{}, fmt.Errorf("%s: expected YYYY-MM-DD: %w", bound.name, err)
		}
		*bound.dst = &t
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return query.Filter{}, fmt.Errorf("to (%s) is before from (%s)", f.To.Format(dateParamLayout), f.From.Format(dateParamLayout))
	}

	for _, v := range multiValue(c, "asset_class") {
		class := models.AssetClass(strings.ToUpper(v))
		if !knownAssetClasses[class] {
			return query.Filter{}, fmt.Errorf("asset_class: unknown value %q", v)
		}
		f.AssetClasses = append(f.AssetClasses, class)
	}

	for _, v := range multiValue(c, "status") {
		status, ok := statusByName[strings.ToLower(v)]
		if !ok {
			return query.Filter{}, fmt.Errorf("status: unknown value %q", v)
		}
		f.Statuses = append(f.Statuses, status)
	}

	f.Symbols = multiValue(c, "symbol")
	f.Strategies = multiValue(c, "strategy")
	f.Accounts = multiValue(c, "account")
	return f, nil
}

// parseGroupings reads group_by, defaulting to day.
func parseGroupings(c *gin.Context) ([]models.Grouping, error) {
	values := multiValue(c, "group_by")
	if len(values) == 0 {
		return []models.Grouping{models.GroupDay}, nil
	}
	seen := make(map[models.Grouping]bool, len(values))
	out := make([]models.Grouping, 0, len(values))
	for _, v := range values {
		g, ok := models.ParseGrouping(strings.ToLower(v))
		if !ok {
			return nil, fmt.Errorf("group_by: unknown value %q", v)
		}
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	return out, nil
}
