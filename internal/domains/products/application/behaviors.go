package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Apurer/product-sync-connector/internal/domains/products/domain"
	"github.com/Apurer/product-sync-connector/internal/domains/products/ports"
	"github.com/Apurer/product-sync-connector/internal/domains/products/pricing"
)

// StockLevelBody is the request body of a stock level update.
type StockLevelBody struct {
	ArticleNumber string  `json:"artikelNr"`
	StockLevel    float64 `json:"lagerbestand"`
}

// DeleteBody is the request body of a product deletion.
type DeleteBody struct {
	ArticleNumber string `json:"artikelNr"`
}

// StockLevelUpdate builds the stock level request of a resolved product.
type StockLevelUpdate struct {
	logger *slog.Logger
}

// NewStockLevelUpdate wires the stock level behavior.
func NewStockLevelUpdate(logger *slog.Logger) *StockLevelUpdate {
	return &StockLevelUpdate{logger: orDiscard(logger)}
}

// Build implements ports.UpdateBehavior.
func (u *StockLevelUpdate) Build(ctx context.Context, product *domain.Product) ([]ports.Request, error) {
	articleNumber := product.ID.Endpoint
	loggerFrom(ctx, u.logger).InfoContext(ctx, "updating product stock level",
		slog.String("sku", product.SKU),
		slog.Float64("stock_level", product.StockLevel),
	)
	return []ports.Request{{
		Operation:     ports.OperationStockLevel,
		HostID:        product.ID.Host,
		SKU:           product.SKU,
		ArticleNumber: articleNumber,
		Body:          StockLevelBody{ArticleNumber: articleNumber, StockLevel: product.StockLevel},
	}}, nil
}

// PriceUpdate builds one request per price row of a product. It backs both the price and
// the full product data operations. A price type configured on the operation replaces the
// mapped price types.
type PriceUpdate struct {
	operation ports.Operation
	endpoint  ports.Endpoint
	prices    pricing.PriceTypeMapping
	taxes     pricing.TaxClassMapping
	logger    *slog.Logger
}

// NewPriceUpdate wires a price-bearing behavior for operation. endpoint supplies the
// operation's configured price type.
func NewPriceUpdate(operation ports.Operation, endpoint ports.Endpoint, prices pricing.PriceTypeMapping, taxes pricing.TaxClassMapping, logger *slog.Logger) *PriceUpdate {
	return &PriceUpdate{
		operation: operation,
		endpoint:  endpoint,
		prices:    prices,
		taxes:     taxes,
		logger:    orDiscard(logger),
	}
}

// Build implements ports.UpdateBehavior. Rows with non-positive prices are logged and left
// out; a product without any sendable row is skipped.
func (u *PriceUpdate) Build(ctx context.Context, product *domain.Product) ([]ports.Request, error) {
	logger := loggerFrom(ctx, u.logger)
	logger.InfoContext(ctx, "updating product prices", slog.String("sku", product.SKU))
	settings, err := u.endpoint.Settings(u.operation)
	if err != nil {
		return nil, err
	}
	payload := pricing.Transform(product, u.prices.Override(settings.PriceType), u.taxes)
	if payload.Empty() {
		return nil, fmt.Errorf("%w: no price mapped for transfer", ports.ErrSkipped)
	}
	var requests []ports.Request
	for _, row := range pricing.Rows(payload, product.SKU) {
		if !row.Sendable() {
			logger.InfoContext(ctx, "price not positive; not sending",
				slog.String("sku", product.SKU),
				slog.String("price_type", row.Designation),
				slog.String("price_kind", string(row.Kind())),
			)
			continue
		}
		requests = append(requests, ports.Request{
			Operation:     u.operation,
			HostID:        product.ID.Host,
			SKU:           product.SKU,
			ArticleNumber: row.ArticleNumber,
			Body:          row,
		})
	}
	if len(requests) == 0 {
		return nil, fmt.Errorf("%w: every price was non-positive", ports.ErrSkipped)
	}
	return requests, nil
}

var (
	_ ports.UpdateBehavior = (*StockLevelUpdate)(nil)
	_ ports.UpdateBehavior = (*PriceUpdate)(nil)
)
