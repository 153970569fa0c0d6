package flexquery

import (
	"encoding/xml"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Element names of the Flex Query document.
const (
	rootElement     = "FlexQueryResponse"
	envelopeElement = "FlexStatementResponse"
)

// levelOfDetail values that describe a single execution. Other values
// (ORDER, SYMBOL_SUMMARY, ASSET_SUMMARY, CLOSED_LOT) are roll-ups and skipped.
var executionLevels = map[string]bool{
	"":          true,
	"EXECUTION": true,
}

type xmlResponse struct {
	XMLName    xml.Name       `xml:"FlexQueryResponse"`
	QueryName  string         `xml:"queryName,attr"`
	Type       string         `xml:"type,attr"`
	Statements *xmlStatements `xml:"FlexStatements"`
}

type xmlStatements struct {
	Count      string         `xml:"count,attr"`
	Statements []xmlStatement `xml:"FlexStatement"`
}

type xmlStatement struct {
	AccountID     string     `xml:"accountId,attr"`
	FromDate      string     `xml:"fromDate,attr"`
	ToDate        string     `xml:"toDate,attr"`
	WhenGenerated string     `xml:"whenGenerated,attr"`
	Trades        *xmlTrades `xml:"Trades"`
}

type xmlTrades struct {
	Trades []xmlTrade `xml:"Trade"`
}

// xmlTrade mirrors the attributes of a Trade element. Validation tags are
// enforced by the package validator; field errors report the xml attribute name.
type xmlTrade struct {
	AccountID        string `xml:"accountId,attr" validate:"required"`
	Currency         string `xml:"currency,attr" validate:"required"`
	FXRateToBase     string `xml:"fxRateToBase,attr" validate:"omitempty,numeric"`
	AssetCategory    string `xml:"assetCategory,attr" validate:"required"`
	Symbol           string `xml:"symbol,attr" validate:"required"`
	Description      string `xml:"description,attr"`
	UnderlyingSymbol string `xml:"underlyingSymbol,attr"`
	Multiplier       string `xml:"multiplier,attr" validate:"omitempty,numeric"`
	Strike           string `xml:"strike,attr" validate:"omitempty,numeric"`
	Expiry           string `xml:"expiry,attr"`
	PutCall          string `xml:"putCall,attr"`
	TradeID          string `xml:"tradeID,attr" validate:"required_without_all=TransactionID IBExecID"`
	TransactionID    string `xml:"transactionID,attr"`
	IBExecID         string `xml:"ibExecID,attr"`
	TradeDate        string `xml:"tradeDate,attr" validate:"required"`
	SettleDateTarget string `xml:"settleDateTarget,attr"`
	DateTime         string `xml:"dateTime,attr"`
	Quantity         string `xml:"quantity,attr" validate:"required,numeric"`
	TradePrice       string `xml:"tradePrice,attr" validate:"required,numeric"`
	Cost             string `xml:"cost,attr" validate:"omitempty,numeric"`
	IBCommission     string `xml:"ibCommission,attr" validate:"omitempty,numeric"`
	FifoPnlRealized  string `xml:"fifoPnlRealized,attr" validate:"omitempty,numeric"`
	MtmPnl           string `xml:"mtmPnl,attr" validate:"omitempty,numeric"`
	BuySell          string `xml:"buySell,attr" validate:"required"`
	OpenClose        string `xml:"openCloseIndicator,attr"`
	Notes            string `xml:"notes,attr"`
	LevelOfDetail    string `xml:"levelOfDetail,attr"`
}

// envelope is the status document returned by the web service endpoints.
type envelope struct {
	XMLName       xml.Name `xml:"FlexStatementResponse"`
	Timestamp     string   `xml:"timestamp,attr"`
	Status        string   `xml:"Status"`
	ReferenceCode string   `xml:"ReferenceCode"`
	URL           string   `xml:"Url"`
	ErrorCode     int      `xml:"ErrorCode"`
	ErrorMessage  string   `xml:"ErrorMessage"`
}

func (e envelope) err() error {
	if e.ErrorCode == 0 && !strings.EqualFold(e.Status, "Fail") {
		return nil
	}
	return &ServiceError{Code: e.ErrorCode, Message: e.ErrorMessage}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("xml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// RawFill is one execution exactly as reported, with numeric attributes
// decoded. Dates are kept raw; interpreting them is the normalizer's job.
type RawFill struct {
	ExecID           string
	AccountID        string
	Currency         string
	AssetCategory    string
	Symbol           string
	UnderlyingSymbol string
	Description      string
	PutCall          string
	Strike           decimal.NullDecimal
	Expiry           string
	TradeDate        string
	SettleDate       string
	DateTime         string
	Quantity         decimal.Decimal
	BuySell          string
	TradePrice       decimal.Decimal
	CostBasis        decimal.Decimal
	Commission       decimal.Decimal
	RealizedPnL      decimal.Decimal
	MTMPnL           decimal.Decimal
	FXRateToBase     decimal.NullDecimal
	Multiplier       decimal.Decimal
	OpenClose        string
	Notes            string
}

// Statement describes one account statement of a report.
type Statement struct {
	AccountID     string
	FromDate      string
	ToDate        string
	WhenGenerated string
	Fills         int
}

// Report is the decoded content of a Flex Query document.
type Report struct {
	QueryName  string
	Statements []Statement
	Fills      []RawFill
}
