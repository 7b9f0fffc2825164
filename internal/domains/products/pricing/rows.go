package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Row is the endpoint's price-row wire shape; one request is sent per row.
type Row struct {
	VkID          int      `json:"vkId"`
	ArticleNumber string   `json:"artikelNr"`
	Designation   string   `json:"bezeichnung"`
	UnitPrice     float64  `json:"stueckpreis"`
	SpecialPrice  float64  `json:"sonderpreis"`
	SpecialFrom   string   `json:"sonderpreisVon"`
	SpecialUntil  string   `json:"sonderpreisBis"`
	RetailGross   *float64 `json:"uvpBrutto,omitempty"`
	RetailNet     *float64 `json:"uvpNetto,omitempty"`
	VATRate       *float64 `json:"mwst,omitempty"`
	TaxClass      string   `json:"steuerklasse,omitempty"`

	kind     Kind
	sendable bool
}

// Kind returns the price kind the row was built from.
func (r Row) Kind() Kind { return r.kind }

// Sendable mirrors Entry.Sendable for the row's source entry.
func (r Row) Sendable() bool { return r.sendable }

// Rows flattens payload into price rows for articleNumber: regular prices first, then special
// prices, then the retail entry, each group ordered by price type.
func Rows(payload Payload, articleNumber string) []Row {
	rows := make([]Row, 0, len(payload.Regular)+len(payload.Special)+1)
	for _, priceType := range sortedKeys(payload.Regular) {
		entry := payload.Regular[priceType]
		rows = append(rows, Row{
			ArticleNumber: articleNumber,
			Designation:   priceType,
			UnitPrice:     entry.Value.InexactFloat64(),
			kind:          KindRegular,
			sendable:      entry.Sendable(),
		})
	}
	for _, priceType := range sortedKeys(payload.Special) {
		entry := payload.Special[priceType]
		rows = append(rows, Row{
			ArticleNumber: articleNumber,
			Designation:   priceType,
			SpecialPrice:  entry.Value.InexactFloat64(),
			SpecialFrom:   entry.ValidFrom,
			SpecialUntil:  entry.ValidUntil,
			kind:          KindSpecial,
			sendable:      entry.Sendable(),
		})
	}
	if retail := payload.Retail; retail != nil {
		rows = append(rows, Row{
			ArticleNumber: articleNumber,
			Designation:   retail.PriceType,
			RetailGross:   floatPtr(retail.Gross),
			RetailNet:     floatPtr(retail.Net),
			VATRate:       floatPtr(retail.VAT),
			TaxClass:      payload.TaxClass,
			kind:          KindRetail,
			sendable:      retail.Sendable(),
		})
	}
	return rows
}

func sortedKeys(entries map[string]Entry) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func floatPtr(d decimal.Decimal) *float64 {
	f := d.InexactFloat64()
	return &f
}
