package flexquery

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Parse decodes a Flex Query XML document into raw executions.
//
// Behavior:
//   - Fails with *ParseError when the document is not well-formed, the root is
//     not FlexQueryResponse, no FlexStatement exists, a statement has no
//     Trades section, or a Trade misses a required attribute or carries a
//     malformed number.
//   - A broker error envelope (FlexStatementResponse) is returned as *ServiceError.
//   - An empty Trades section is valid and contributes no fills.
//   - Trade elements that are roll-ups (levelOfDetail other than EXECUTION)
//     are skipped.
//
// Parse is a pure transform; it performs no I/O besides reading r.
func Parse(r io.Reader) (*Report, error) {
	dec := xml.NewDecoder(r)

	start, err := rootStart(dec)
	if err != nil {
		return nil, err
	}

	switch start.Name.Local {
	case rootElement:
	case envelopeElement:
		var env envelope
		if err := dec.DecodeElement(&env, &start); err != nil {
			return nil, &ParseError{Path: "/" + envelopeElement, Err: fmt.Errorf("%w: %w", ErrMalformedXML, err)}
		}
		if err := env.err(); err != nil {
			return nil, err
		}
		return nil, &ParseError{Path: "/" + envelopeElement, Err: ErrUnexpectedRoot}
	default:
		return nil, &ParseError{Path: "/" + start.Name.Local, Err: ErrUnexpectedRoot}
	}

	var resp xmlResponse
	if err := dec.DecodeElement(&resp, &start); err != nil {
		return nil, &ParseError{Path: "/" + rootElement, Err: fmt.Errorf("%w: %w", ErrMalformedXML, err)}
	}

	return convert(&resp)
}

// ParseBytes is Parse over an in-memory document.
func ParseBytes(data []byte) (*Report, error) {
	return Parse(bytes.NewReader(data))
}

// rootStart advances to the first start element of the document.
func rootStart(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = errors.New("empty document")
			}
			return xml.StartElement{}, &ParseError{Path: "/", Err: fmt.Errorf("%w: %w", ErrMalformedXML, err)}
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

func convert(resp *xmlResponse) (*Report, error) {
	statementsPath := "/" + rootElement + "/FlexStatements"
	if resp.Statements == nil || len(resp.Statements.Statements) == 0 {
		return nil, &ParseError{Path: statementsPath + "/FlexStatement", Err: ErrMissingSection}
	}

	report := &Report{QueryName: resp.QueryName}
	for i, st := range resp.Statements.Statements {
		stPath := fmt.Sprintf("%s/FlexStatement[%d]", statementsPath, i+1)
		if st.Trades == nil {
			return nil, &ParseError{Path: stPath + "/Trades", Err: ErrMissingSection}
		}

		meta := Statement{
			AccountID:     st.AccountID,
			FromDate:      st.FromDate,
			ToDate:        st.ToDate,
			WhenGenerated: st.WhenGenerated,
		}
		for j, t := range st.Trades.Trades {
			if !executionLevels[strings.ToUpper(strings.TrimSpace(t.LevelOfDetail))] {
				continue
			}
			path := fmt.Sprintf("%s/Trades/Trade[%d]", stPath, j+1)
			raw, err := toRawFill(t, path)
			if err != nil {
				return nil, err
			}
			report.Fills = append(report.Fills, raw)
			meta.Fills++
		}
		report.Statements = append(report.Statements, meta)
	}
	return report, nil
}

func toRawFill(t xmlTrade, path string) (RawFill, error) {
	if err := validate.Struct(t); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			cause := ErrMissingAttribute
			if fe.Tag() == "numeric" {
				cause = ErrMalformedNumber
			}
			return RawFill{}, &ParseError{Path: path, Attr: fe.Field(), Err: fmt.Errorf("%w (%s)", cause, fe.Tag())}
		}
		return RawFill{}, &ParseError{Path: path, Err: err}
	}

	nums := numberReader{path: path}
	raw := RawFill{
		ExecID:           firstNonEmpty(t.TradeID, t.TransactionID, t.IBExecID),
		AccountID:        strings.TrimSpace(t.AccountID),
		Currency:         strings.ToUpper(strings.TrimSpace(t.Currency)),
		AssetCategory:    strings.ToUpper(strings.TrimSpace(t.AssetCategory)),
		Symbol:           strings.TrimSpace(t.Symbol),
		UnderlyingSymbol: strings.TrimSpace(t.UnderlyingSymbol),
		Description:      t.Description,
		PutCall:          strings.ToUpper(strings.TrimSpace(t.PutCall)),
		Strike:           nums.optional("strike", t.Strike),
		Expiry:           strings.TrimSpace(t.Expiry),
		TradeDate:        strings.TrimSpace(t.TradeDate),
		SettleDate:       strings.TrimSpace(t.SettleDateTarget),
		DateTime:         strings.TrimSpace(t.DateTime),
		Quantity:         nums.value("quantity", t.Quantity),
		BuySell:          strings.ToUpper(strings.TrimSpace(t.BuySell)),
		TradePrice:       nums.value("tradePrice", t.TradePrice),
		CostBasis:        nums.value("cost", t.Cost),
		Commission:       nums.value("ibCommission", t.IBCommission),
		RealizedPnL:      nums.value("fifoPnlRealized", t.FifoPnlRealized),
		MTMPnL:           nums.value("mtmPnl", t.MtmPnl),
		FXRateToBase:     nums.optional("fxRateToBase", t.FXRateToBase),
		Multiplier:       nums.value("multiplier", t.Multiplier),
		OpenClose:        strings.ToUpper(strings.TrimSpace(t.OpenClose)),
		Notes:            t.Notes,
	}
	if nums.err != nil {
		return RawFill{}, nums.err
	}
	if raw.Multiplier.IsZero() {
		raw.Multiplier = decimal.NewFromInt(1)
	}
	return raw, nil
}

// numberReader decodes numeric attributes, keeping the first failure.
type numberReader struct {
	path string
	err  error
}

func (n *numberReader) parse(attr, s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" || n.err != nil {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		n.err = &ParseError{Path: n.path, Attr: attr, Err: fmt.Errorf("%w: %w", ErrMalformedNumber, err)}
		return decimal.Zero, false
	}
	return d, true
}

// value returns zero for an absent attribute.
func (n *numberReader) value(attr, s string) decimal.Decimal {
	d, _ := n.parse(attr, s)
	return d
}

func (n *numberReader) optional(attr, s string) decimal.NullDecimal {
	d, ok := n.parse(attr, s)
	return decimal.NullDecimal{Decimal: d, Valid: ok}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
