package connector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	endpointclient "github.com/Apurer/product-sync-connector/internal/clients/http/endpoint"
	endpointadapter "github.com/Apurer/product-sync-connector/internal/domains/products/adapters/external/endpoint"
	productsobs "github.com/Apurer/product-sync-connector/internal/domains/products/adapters/observability"
	productsapp "github.com/Apurer/product-sync-connector/internal/domains/products/application"
	"github.com/Apurer/product-sync-connector/internal/domains/products/ports"
	"github.com/Apurer/product-sync-connector/internal/domains/products/pricing"
	"github.com/Apurer/product-sync-connector/internal/platform/config"
	"github.com/Apurer/product-sync-connector/internal/platform/metrics"
	platformobservability "github.com/Apurer/product-sync-connector/internal/platform/observability"
)

const instrumentationName = "internal.products.application"

// BuildSyncService composes the endpoint client, gateway, controller, and instrumentation
// from the loaded configuration. registry may be nil.
func BuildSyncService(cfg *config.Config, instruments *platformobservability.Instruments, registry *metrics.Registry) (ports.SyncService, error) {
	logger := slog.Default()
	if instruments != nil && instruments.Logger != nil {
		logger = instruments.Logger
	}
	api := cfg.Endpoint.API

	clientOpts := []endpointclient.Option{
		endpointclient.WithTimeouts(api.Timeout, api.MaxDuration),
		endpointclient.WithRateLimit(api.RateLimit, api.RateBurst),
		endpointclient.WithLogger(logger),
	}
	if registry != nil {
		clientOpts = append(clientOpts, endpointclient.WithMetrics(registry))
	}
	client, err := endpointclient.NewClient(api.URL, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("build endpoint client: %w", err)
	}
	gateway := endpointadapter.NewGateway(client, api, endpointadapter.WithLogger(logger))

	prices, taxes := PricingFrom(cfg.Pricing)
	var instrumented *productsobs.Service
	core := productsapp.NewService(gateway,
		productsapp.WithLogger(logger),
		productsapp.WithPricing(prices, taxes),
		productsapp.WithOutcomeObserver(func(ctx context.Context, outcome ports.Outcome) {
			instrumented.RecordOutcome(ctx, outcome)
			registry.RecordItem(string(outcome.Operation), string(outcome.State))
		}),
	)
	instrumented = productsobs.New(core,
		productsobs.WithLogger(logger),
		productsobs.WithTracer(instruments.Tracer(instrumentationName)),
		productsobs.WithMeter(instruments.Meter(instrumentationName)),
	)
	return instrumented, nil
}

// PricingFrom converts the pricing section into transformer lookup tables.
func PricingFrom(p config.Pricing) (pricing.PriceTypeMapping, pricing.TaxClassMapping) {
	prices := pricing.PriceTypeMapping{
		CustomerGroups:  copyMap(p.CustomerGroups),
		PriceTypes:      copyMap(p.PriceTypes),
		RetailPriceType: p.RetailPriceType,
	}
	taxes := pricing.TaxClassMapping{Default: p.DefaultTaxClass}
	for _, tc := range p.TaxClasses {
		taxes.Classes = append(taxes.Classes, pricing.TaxClass{Rate: decimal.NewFromFloat(tc.Rate), Class: tc.Class})
	}
	return prices, taxes
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
