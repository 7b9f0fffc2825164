package pricing

import "github.com/shopspring/decimal"

// DefaultTaxClass is used when no configured rate matches the product VAT.
const DefaultTaxClass = "1"

// TaxClass binds a VAT percentage to the endpoint's tax class code.
type TaxClass struct {
	Rate  decimal.Decimal
	Class string
}

// TaxClassMapping is the enumerated VAT rate to tax class table of a deployment.
type TaxClassMapping struct {
	Classes []TaxClass
	Default string
}

// DefaultTaxClasses returns the German standard/reduced rate table.
func DefaultTaxClasses() TaxClassMapping {
	return TaxClassMapping{
		Classes: []TaxClass{
			{Rate: decimal.NewFromInt(19), Class: "1"},
			{Rate: decimal.NewFromInt(7), Class: "2"},
		},
		Default: DefaultTaxClass,
	}
}

// Resolve returns the class whose rate equals vat exactly, falling back to the default class.
func (m TaxClassMapping) Resolve(vat decimal.Decimal) string {
	for _, tc := range m.Classes {
		if tc.Rate.Equal(vat) {
			return tc.Class
		}
	}
	if m.Default == "" {
		return DefaultTaxClass
	}
	return m.Default
}
