package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PriceItem is a single quantity step of a regular price tier.
type PriceItem struct {
	Quantity int             `json:"quantity"`
	NetPrice decimal.Decimal `json:"netPrice"`
}

// PriceTier scopes regular prices to one customer group.
type PriceTier struct {
	CustomerGroupID Identity    `json:"customerGroupId"`
	Items           []PriceItem `json:"items"`
}

// SpecialPriceItem is a customer-group scoped time-boxed price.
type SpecialPriceItem struct {
	CustomerGroupID Identity        `json:"customerGroupId"`
	PriceNet        decimal.Decimal `json:"priceNet"`
}

// SpecialPriceTier is valid between ActiveFrom and ActiveUntil.
type SpecialPriceTier struct {
	ActiveFrom  time.Time          `json:"activeFromDate"`
	ActiveUntil time.Time          `json:"activeUntilDate"`
	Items       []SpecialPriceItem `json:"items"`
}

// Product is the aggregate pushed to the endpoint. Everything except ID is read-only for
// this service; ID.Endpoint is set once on first resolution.
type Product struct {
	SKU                    string             `json:"sku"`
	ID                     Identity           `json:"id"`
	StockLevel             float64            `json:"stockLevel"`
	VAT                    decimal.Decimal    `json:"vat"`
	RecommendedRetailPrice *decimal.Decimal   `json:"recommendedRetailPrice,omitempty"`
	Prices                 []PriceTier        `json:"prices,omitempty"`
	SpecialPrices          []SpecialPriceTier `json:"specialPrices,omitempty"`
}

// Kind implements Model.
func (p *Product) Kind() Kind { return KindProduct }

// Identity implements Model.
func (p *Product) Identity() Identity { return p.ID }

// HasSKU reports whether the product carries a non-blank SKU.
func (p *Product) HasSKU() bool {
	return strings.TrimSpace(p.SKU) != ""
}

// LinkEndpoint resolves the product identity to endpointID.
func (p *Product) LinkEndpoint(endpointID string) error {
	identity, err := p.ID.Resolve(endpointID)
	if err != nil {
		return err
	}
	p.ID = identity
	return nil
}
