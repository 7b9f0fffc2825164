// Package pricing turns product price data into the price payload expected by the endpoint.
// Everything in this package is pure: no I/O, no logging, no clock.
package pricing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Apurer/product-sync-connector/internal/domains/products/domain"
)

// TimestampLayout is the endpoint's UTC millisecond timestamp format.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Kind distinguishes regular from time-boxed prices.
type Kind string

const (
	KindRegular Kind = "regular"
	KindSpecial Kind = "special"
	KindRetail  Kind = "retail"
)

// Customer group ids the system of record ships with.
const (
	CustomerGroupB2B = "b1d7b4cbe4d846f0b323a9d840800177"
	CustomerGroupB2C = "c2c6154f05b342d4b2da85e51ec805c9"
)

// DefaultPriceType is the endpoint price list used when nothing else is configured.
const DefaultPriceType = "VK21"

var hundred = decimal.NewFromInt(100)

// PriceTypeMapping decides which customer groups produce output and under which endpoint
// price type. CustomerGroups maps a group's endpoint id to a shortcut (B2B, B2C, ...), and
// PriceTypes maps that shortcut to the endpoint price type. Groups missing from either map
// are filtered out. RetailPriceType enables the recommended retail price entry when set.
type PriceTypeMapping struct {
	CustomerGroups  map[string]string
	PriceTypes      map[string]string
	RetailPriceType string
}

// DefaultPriceTypeMapping transfers B2C prices only, as VK21.
func DefaultPriceTypeMapping() PriceTypeMapping {
	return PriceTypeMapping{
		CustomerGroups: map[string]string{
			CustomerGroupB2B: "B2B",
			CustomerGroupB2C: "B2C",
		},
		PriceTypes: map[string]string{"B2C": DefaultPriceType},
	}
}

// PriceTypeFor returns the endpoint price type for a customer group, or false when the
// group is empty or not mapped.
func (m PriceTypeMapping) PriceTypeFor(group domain.Identity) (string, bool) {
	code := strings.TrimSpace(group.Endpoint)
	if code == "" {
		return "", false
	}
	shortcut, ok := m.CustomerGroups[code]
	if !ok {
		shortcut = code
	}
	priceType := strings.TrimSpace(m.PriceTypes[shortcut])
	return priceType, priceType != ""
}

// Override returns a copy of m in which every mapped group emits under priceType. An empty
// priceType returns m unchanged.
func (m PriceTypeMapping) Override(priceType string) PriceTypeMapping {
	priceType = strings.TrimSpace(priceType)
	if priceType == "" {
		return m
	}
	out := PriceTypeMapping{
		CustomerGroups:  m.CustomerGroups,
		PriceTypes:      make(map[string]string, len(m.PriceTypes)),
		RetailPriceType: m.RetailPriceType,
	}
	for shortcut, code := range m.PriceTypes {
		if strings.TrimSpace(code) != "" {
			out.PriceTypes[shortcut] = priceType
		}
	}
	return out
}

// Entry is one price under a price type.
type Entry struct {
	Value      decimal.Decimal `json:"value"`
	ValidFrom  string          `json:"validFrom,omitempty"`
	ValidUntil string          `json:"validUntil,omitempty"`
}

// Sendable reports whether the entry may be transmitted. Non-positive prices are built but
// never sent.
func (e Entry) Sendable() bool {
	return e.Value.IsPositive()
}

// RetailEntry carries the recommended retail price (UPE).
type RetailEntry struct {
	PriceType string          `json:"priceType"`
	Gross     decimal.Decimal `json:"gross"`
	Net       decimal.Decimal `json:"net"`
	VAT       decimal.Decimal `json:"vat"`
}

// Sendable reports whether the gross retail price is positive.
func (r RetailEntry) Sendable() bool {
	return r.Gross.IsPositive()
}

// Payload is the endpoint-shaped price data of one product.
type Payload struct {
	Regular  map[string]Entry `json:"regular"`
	Special  map[string]Entry `json:"special"`
	Retail   *RetailEntry     `json:"retail,omitempty"`
	TaxClass string           `json:"taxClass"`
}

// Empty reports whether the payload has no price entries at all.
func (p Payload) Empty() bool {
	return len(p.Regular) == 0 && len(p.Special) == 0 && p.Retail == nil
}

// Transform builds the price payload of product. Within one kind the first item mapped to a
// price type wins; later items for the same price type are ignored.
func Transform(product *domain.Product, prices PriceTypeMapping, taxes TaxClassMapping) Payload {
	payload := Payload{
		Regular: map[string]Entry{},
		Special: map[string]Entry{},
	}
	if product == nil {
		payload.TaxClass = taxes.Resolve(decimal.Zero)
		return payload
	}
	payload.TaxClass = taxes.Resolve(product.VAT)

	for _, tier := range product.Prices {
		priceType, ok := prices.PriceTypeFor(tier.CustomerGroupID)
		if !ok {
			continue
		}
		for _, item := range tier.Items {
			if _, exists := payload.Regular[priceType]; exists {
				break
			}
			payload.Regular[priceType] = Entry{Value: item.NetPrice}
		}
	}

	for _, tier := range product.SpecialPrices {
		from := FormatTimestamp(tier.ActiveFrom)
		until := FormatTimestamp(tier.ActiveUntil)
		for _, item := range tier.Items {
			priceType, ok := prices.PriceTypeFor(item.CustomerGroupID)
			if !ok {
				continue
			}
			if _, exists := payload.Special[priceType]; exists {
				continue
			}
			payload.Special[priceType] = Entry{Value: item.PriceNet, ValidFrom: from, ValidUntil: until}
		}
	}

	if retailType := strings.TrimSpace(prices.RetailPriceType); retailType != "" && product.RecommendedRetailPrice != nil {
		net := *product.RecommendedRetailPrice
		payload.Retail = &RetailEntry{
			PriceType: retailType,
			Gross:     GrossPrice(net, product.VAT),
			Net:       net,
			VAT:       product.VAT,
		}
	}
	return payload
}

// GrossPrice applies vat (a percentage) to net and rounds to four decimal places.
func GrossPrice(net, vat decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(vat.Div(hundred))
	return net.Mul(factor).Round(4)
}

// FormatTimestamp renders t in UTC with millisecond precision and a Z suffix.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
