package flexquery

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tradeAttrs = `accountId="U1" currency="USD" fxRateToBase="1" assetCategory="OPT" symbol="SPXW  240105C04700000" ` +
	`underlyingSymbol="SPX" multiplier="100" strike="4700" expiry="20240105" putCall="C" tradeID="1001" ` +
	`tradeDate="20240105" settleDateTarget="20240108" dateTime="20240105;093512" quantity="-1" tradePrice="2.5" ` +
	`cost="-249.3" ibCommission="-0.7" fifoPnlRealized="0" mtmPnl="10" buySell="SELL" openCloseIndicator="O" levelOfDetail="EXECUTION"`

func report(trades string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<FlexQueryResponse queryName="trades" type="AF">
  <FlexStatements count="1">
    <FlexStatement accountId="U1" fromDate="20240101" toDate="20240131" whenGenerated="20240201;120000">
      <Trades>` + trades + `</Trades>
    </FlexStatement>
  </FlexStatements>
</FlexQueryResponse>`
}

func TestParse_ValidExecution(t *testing.T) {
	rep, err := ParseBytes([]byte(report(`<Trade ` + tradeAttrs + ` />`)))
	require.NoError(t, err)
	require.Len(t, rep.Fills, 1)
	require.Len(t, rep.Statements, 1)

	f := rep.Fills[0]
	assert.Equal(t, "1001", f.ExecID)
	assert.Equal(t, "U1", f.AccountID)
	assert.Equal(t, "OPT", f.AssetCategory)
	assert.Equal(t, "SPX", f.UnderlyingSymbol)
	assert.Equal(t, "C", f.PutCall)
	assert.True(t, f.Strike.Valid)
	assert.True(t, f.Strike.Decimal.Equal(decimal.NewFromInt(4700)))
	assert.True(t, f.Quantity.Equal(decimal.NewFromInt(-1)))
	assert.True(t, f.Commission.Equal(decimal.RequireFromString("-0.7")))
	assert.True(t, f.Multiplier.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "20240105;093512", f.DateTime)
	assert.Equal(t, "O", f.OpenClose)
	assert.Equal(t, "trades", rep.QueryName)
	assert.Equal(t, 1, rep.Statements[0].Fills)
}

func TestParse_EmptyTradesIsValid(t *testing.T) {
	rep, err := ParseBytes([]byte(report("")))
	require.NoError(t, err)
	assert.Empty(t, rep.Fills)
}

func TestParse_SkipsRollups(t *testing.T) {
	body := `<Trade ` + tradeAttrs + ` />` +
		`<Order ` + strings.Replace(tradeAttrs, `levelOfDetail="EXECUTION"`, `levelOfDetail="ORDER"`, 1) + ` />` +
		`<Trade ` + strings.Replace(tradeAttrs, `levelOfDetail="EXECUTION"`, `levelOfDetail="SYMBOL_SUMMARY"`, 1) + ` />`
	rep, err := ParseBytes([]byte(report(body)))
	require.NoError(t, err)
	assert.Len(t, rep.Fills, 1)
}

func TestParse_ExecIDFallback(t *testing.T) {
	attrs := strings.Replace(tradeAttrs, `tradeID="1001"`, `ibExecID="0001f4e8.65a1"`, 1)
	rep, err := ParseBytes([]byte(report(`<Trade ` + attrs + ` />`)))
	require.NoError(t, err)
	assert.Equal(t, "0001f4e8.65a1", rep.Fills[0].ExecID)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		wantErr  error
		wantPath string
		wantAttr string
	}{
		{
			name:     "not well formed",
			doc:      `<FlexQueryResponse><FlexStatements>`,
			wantErr:  ErrMalformedXML,
			wantPath: "/FlexQueryResponse",
		},
		{
			name:     "empty document",
			doc:      ``,
			wantErr:  ErrMalformedXML,
			wantPath: "/",
		},
		{
			name:     "wrong root",
			doc:      `<Something/>`,
			wantErr:  ErrUnexpectedRoot,
			wantPath: "/Something",
		},
		{
			name:     "no statements",
			doc:      `<FlexQueryResponse><FlexStatements count="0"></FlexStatements></FlexQueryResponse>`,
			wantErr:  ErrMissingSection,
			wantPath: "/FlexQueryResponse/FlexStatements/FlexStatement",
		},
		{
			name:     "missing trades section",
			doc:      `<FlexQueryResponse><FlexStatements><FlexStatement accountId="U1"></FlexStatement></FlexStatements></FlexQueryResponse>`,
			wantErr:  ErrMissingSection,
			wantPath: "/FlexQueryResponse/FlexStatements/FlexStatement[1]/Trades",
		},
		{
			name:     "missing required attribute",
			doc:      report(`<Trade ` + strings.Replace(tradeAttrs, `quantity="-1" `, ``, 1) + ` />`),
			wantErr:  ErrMissingAttribute,
			wantPath: "/FlexQueryResponse/FlexStatements/FlexStatement[1]/Trades/Trade[1]",
			wantAttr: "quantity",
		},
		{
			name:     "missing every id",
			doc:      report(`<Trade ` + strings.Replace(tradeAttrs, `tradeID="1001" `, ``, 1) + ` />`),
			wantErr:  ErrMissingAttribute,
			wantPath: "/FlexQueryResponse/FlexStatements/FlexStatement[1]/Trades/Trade[1]",
			wantAttr: "tradeID",
		},
		{
			name:     "malformed number",
			doc:      report(`<Trade ` + tradeAttrs + ` />` + `<Trade ` + strings.Replace(tradeAttrs, `tradePrice="2.5"`, `tradePrice="2,5"`, 1) + ` />`),
			wantErr:  ErrMalformedNumber,
			wantPath: "/FlexQueryResponse/FlexStatements/FlexStatement[1]/Trades/Trade[2]",
			wantAttr: "tradePrice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, err := ParseBytes([]byte(tt.doc))
			require.Error(t, err)
			assert.Nil(t, rep)

			var perr *ParseError
			require.True(t, errors.As(err, &perr), "want *ParseError, got %T", err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantPath, perr.Path)
			assert.Equal(t, tt.wantAttr, perr.Attr)
		})
	}
}

func TestParse_ServiceEnvelope(t *testing.T) {
	doc := `<FlexStatementResponse timestamp="05 January, 2024 10:00 AM EST">
  <Status>Fail</Status>
  <ErrorCode>1019</ErrorCode>
  <ErrorMessage>Statement generation in progress. Please try again shortly.</ErrorMessage>
</FlexStatementResponse>`
	_, err := ParseBytes([]byte(doc))
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, CodeStatementInProgress, svcErr.Code)
	assert.True(t, svcErr.Retryable())
}
