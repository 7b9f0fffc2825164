package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Apurer/product-sync-connector/internal/domains/products/domain"
	"github.com/Apurer/product-sync-connector/internal/domains/products/ports"
	"github.com/Apurer/product-sync-connector/internal/domains/products/pricing"
)

// OutcomeObserver is notified once per item when it reaches a terminal state.
type OutcomeObserver func(ctx context.Context, outcome ports.Outcome)

// Service orchestrates push and delete batches against the configured endpoint.
type Service struct {
	endpoint  ports.Endpoint
	resolver  ports.IdentityResolver
	prices    pricing.PriceTypeMapping
	taxes     pricing.TaxClassMapping
	behaviors map[ports.Operation]map[domain.Kind]ports.UpdateBehavior
	observers []OutcomeObserver
	logger    *slog.Logger
	now       func() time.Time
	batchID   func() string
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIdentityResolver replaces the SKU based endpoint id resolution.
func WithIdentityResolver(resolver ports.IdentityResolver) Option {
	return func(s *Service) {
		if resolver != nil {
			s.resolver = resolver
		}
	}
}

// WithPricing sets the price type and tax class mappings used by price-bearing operations.
func WithPricing(prices pricing.PriceTypeMapping, taxes pricing.TaxClassMapping) Option {
	return func(s *Service) {
		s.prices = prices
		s.taxes = taxes
	}
}

// WithBehavior registers behavior for op and kind, replacing the default.
func WithBehavior(op ports.Operation, kind domain.Kind, behavior ports.UpdateBehavior) Option {
	return func(s *Service) {
		if behavior == nil {
			return
		}
		if s.behaviors[op] == nil {
			s.behaviors[op] = make(map[domain.Kind]ports.UpdateBehavior)
		}
		s.behaviors[op][kind] = behavior
	}
}

// WithOutcomeObserver adds an observer of terminal item outcomes.
func WithOutcomeObserver(observer OutcomeObserver) Option {
	return func(s *Service) {
		if observer != nil {
			s.observers = append(s.observers, observer)
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the sync controller. Behaviors not registered through WithBehavior
// default to the product behaviors of the three push operations.
func NewService(endpoint ports.Endpoint, opts ...Option) *Service {
	s := &Service{
		endpoint:  endpoint,
		resolver:  SKUResolver(),
		prices:    pricing.DefaultPriceTypeMapping(),
		taxes:     pricing.DefaultTaxClasses(),
		behaviors: make(map[ports.Operation]map[domain.Kind]ports.UpdateBehavior),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
		batchID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	defaults := map[ports.Operation]ports.UpdateBehavior{
		ports.OperationProductData:  NewPriceUpdate(ports.OperationProductData, endpoint, s.prices, s.taxes, s.logger),
		ports.OperationStockLevel:   NewStockLevelUpdate(s.logger),
		ports.OperationProductPrice: NewPriceUpdate(ports.OperationProductPrice, endpoint, s.prices, s.taxes, s.logger),
	}
	for op, behavior := range defaults {
		if s.behaviors[op] == nil {
			s.behaviors[op] = make(map[domain.Kind]ports.UpdateBehavior)
		}
		if _, ok := s.behaviors[op][domain.KindProduct]; !ok {
			s.behaviors[op][domain.KindProduct] = behavior
		}
	}
	return s
}

// SKUResolver returns the default resolver: the endpoint id of a product is its SKU.
func SKUResolver() ports.IdentityResolver {
	return ports.IdentityResolverFunc(func(_ context.Context, sku string) (string, error) {
		return strings.TrimSpace(sku), nil
	})
}

// Push applies op to every item of the batch. Per-item failures are logged and the batch
// continues; only configuration errors abort the call.
func (s *Service) Push(ctx context.Context, op ports.Operation, items []domain.Model) ([]domain.Model, error) {
	byKind, ok := s.behaviors[op]
	if !ok {
		return items, fmt.Errorf("%w: %s", ports.ErrUnknownOperation, op)
	}
	if err := s.endpoint.Validate(); err != nil {
		return items, err
	}
	settings, err := s.endpoint.Settings(op)
	if err != nil {
		return items, err
	}

	ctx, logger := s.startBatch(ctx, op, len(items))
	started := s.now()
	tally := make(map[ports.State]int, 3)
	for i, item := range items {
		outcome := s.pushItem(ctx, logger, settings, byKind, i, item)
		s.finish(ctx, outcome)
		tally[outcome.State]++
		if errors.Is(outcome.Err, ports.ErrConfiguration) {
			logger.ErrorContext(ctx, "configuration error; aborting batch", slog.Any("error", outcome.Err))
			return items, outcome.Err
		}
	}
	s.logSummary(ctx, logger, tally, started)
	return items, nil
}

func (s *Service) pushItem(ctx context.Context, logger *slog.Logger, settings ports.OperationSettings, byKind map[domain.Kind]ports.UpdateBehavior, index int, item domain.Model) ports.Outcome {
	outcome := ports.NewOutcome(index, settings.Operation)

	product, behavior, err := s.dispatch(byKind, item)
	if item != nil {
		outcome.Kind = item.Kind()
	}
	if err != nil {
		logger.ErrorContext(ctx, "invalid model type",
			slog.Int("index", index),
			slog.String("expected", string(domain.KindProduct)),
			slog.String("kind", string(outcome.Kind)),
		)
		return failed(outcome, err)
	}
	outcome.SKU = product.SKU

	if !settings.Active {
		logger.InfoContext(ctx, "endpoint inactive; skipping item", slog.String("sku", product.SKU))
		return skipped(outcome, fmt.Errorf("%w: %s endpoint inactive", ports.ErrSkipped, settings.Operation))
	}

	if err := s.resolveIdentity(ctx, logger, product); err != nil {
		logger.ErrorContext(ctx, "endpoint id resolution failed",
			slog.String("sku", product.SKU),
			slog.Int64("host_id", product.ID.Host),
			slog.Any("error", err),
		)
		return failed(outcome, err)
	}
	outcome.Advance(ports.StateIdentityResolved)

	requests, err := behavior.Build(ctx, product)
	if err == nil && len(requests) == 0 {
		err = fmt.Errorf("%w: nothing to send", ports.ErrSkipped)
	}
	if err != nil {
		if errors.Is(err, ports.ErrSkipped) {
			logger.InfoContext(ctx, "item skipped", slog.String("sku", product.SKU), slog.String("reason", err.Error()))
			return skipped(outcome, err)
		}
		logger.ErrorContext(ctx, "building endpoint payload failed", slog.String("sku", product.SKU), slog.Any("error", err))
		return failed(outcome, err)
	}
	outcome.Advance(ports.StatePayloadBuilt)

	outcome.Advance(ports.StateDispatching)
	for _, req := range requests {
		if _, err := s.endpoint.Send(ctx, req); err != nil {
			logger.ErrorContext(ctx, "endpoint update failed",
				slog.String("sku", product.SKU),
				slog.String("endpoint_id", product.ID.Endpoint),
				slog.String("article_number", req.ArticleNumber),
				slog.Any("error", err),
			)
			return failed(outcome, err)
		}
	}
	outcome.Advance(ports.StateSucceeded)
	return outcome
}

func (s *Service) dispatch(byKind map[domain.Kind]ports.UpdateBehavior, item domain.Model) (*domain.Product, ports.UpdateBehavior, error) {
	if item == nil {
		return nil, nil, fmt.Errorf("%w: nil item", ports.ErrUnsupportedModel)
	}
	behavior, ok := byKind[item.Kind()]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ports.ErrUnsupportedModel, item.Kind())
	}
	product, ok := item.(*domain.Product)
	if !ok || product == nil {
		return nil, nil, fmt.Errorf("%w: %T", ports.ErrUnsupportedModel, item)
	}
	return product, behavior, nil
}

func (s *Service) resolveIdentity(ctx context.Context, logger *slog.Logger, product *domain.Product) error {
	if product.ID.HasEndpoint() {
		logger.InfoContext(ctx, "product already has identity",
			slog.Int64("host_id", product.ID.Host),
			slog.String("endpoint_id", product.ID.Endpoint),
		)
		return nil
	}
	endpointID, err := s.resolver.ResolveEndpointID(ctx, product.SKU)
	if err != nil {
		return fmt.Errorf("%w: %w", ports.ErrResolution, err)
	}
	if err := product.LinkEndpoint(endpointID); err != nil {
		return fmt.Errorf("%w: %w", ports.ErrResolution, err)
	}
	return nil
}

// Delete removes every product of the batch from the endpoint. A failed SKU lookup is the
// one per-item error returned to the caller; everything else is logged and the batch continues.
func (s *Service) Delete(ctx context.Context, items []domain.Model) ([]domain.Model, error) {
	if err := s.endpoint.Validate(); err != nil {
		return items, err
	}
	settings, err := s.endpoint.Settings(ports.OperationDelete)
	if err != nil {
		return items, err
	}

	ctx, logger := s.startBatch(ctx, ports.OperationDelete, len(items))
	started := s.now()
	tally := make(map[ports.State]int, 3)
	for i, item := range items {
		outcome, err := s.deleteItem(ctx, logger, settings, i, item)
		s.finish(ctx, outcome)
		tally[outcome.State]++
		if err != nil {
			return items, err
		}
	}
	s.logSummary(ctx, logger, tally, started)
	return items, nil
}

func (s *Service) deleteItem(ctx context.Context, logger *slog.Logger, settings ports.OperationSettings, index int, item domain.Model) (ports.Outcome, error) {
	outcome := ports.NewOutcome(index, ports.OperationDelete)
	if item != nil {
		outcome.Kind = item.Kind()
	}
	product, ok := item.(*domain.Product)
	if !ok || product == nil {
		logger.ErrorContext(ctx, "invalid model type",
			slog.Int("index", index),
			slog.String("expected", string(domain.KindProduct)),
			slog.String("kind", string(outcome.Kind)),
		)
		return failed(outcome, fmt.Errorf("%w: %T", ports.ErrUnsupportedModel, item)), nil
	}

	logger.InfoContext(ctx, "product delete requested",
		slog.Int64("host_id", product.ID.Host),
		slog.String("endpoint_id", product.ID.Endpoint),
	)
	if !settings.Active {
		logger.InfoContext(ctx, "delete endpoint inactive; skipping item", slog.Int64("host_id", product.ID.Host))
		return skipped(outcome, fmt.Errorf("%w: delete endpoint inactive", ports.ErrSkipped)), nil
	}

	sku, err := s.deleteSKU(ctx, product)
	if err != nil {
		logger.ErrorContext(ctx, "sku lookup failed",
			slog.Int64("host_id", product.ID.Host),
			slog.Any("error", err),
		)
		return failed(outcome, err), err
	}
	if sku == "" {
		logger.InfoContext(ctx, "sku absent; skipping delete", slog.Int64("host_id", product.ID.Host))
		return skipped(outcome, fmt.Errorf("%w: sku absent", ports.ErrSkipped)), nil
	}
	outcome.SKU = sku
	outcome.Advance(ports.StateIdentityResolved)
	req := ports.Request{
		Operation:     ports.OperationDelete,
		HostID:        product.ID.Host,
		SKU:           sku,
		ArticleNumber: sku,
		Body:          DeleteBody{ArticleNumber: sku},
	}

	outcome.Advance(ports.StatePayloadBuilt)

	outcome.Advance(ports.StateDispatching)
	if _, err := s.endpoint.Send(ctx, req); err != nil {
		logger.ErrorContext(ctx, "endpoint delete failed", slog.String("sku", sku), slog.Any("error", err))
		return failed(outcome, err), nil
	}
	outcome.Advance(ports.StateSucceeded)
	return outcome, nil
}

// deleteSKU prefers the product's SKU, then its endpoint id, then the lookup by host id.
func (s *Service) deleteSKU(ctx context.Context, product *domain.Product) (string, error) {
	if product.HasSKU() {
		return strings.TrimSpace(product.SKU), nil
	}
	if product.ID.HasEndpoint() {
		return product.ID.Endpoint, nil
	}
	sku, err := s.endpoint.LookupSKU(ctx, product.ID.Host)
	if err != nil {
		return "", fmt.Errorf("lookup sku for host id %d: %w", product.ID.Host, err)
	}
	return strings.TrimSpace(sku), nil
}

func (s *Service) startBatch(ctx context.Context, op ports.Operation, size int) (context.Context, *slog.Logger) {
	id := ports.CorrelationID(ctx)
	if id == "" {
		id = s.batchID()
		ctx = ports.WithCorrelationID(ctx, id)
	}
	logger := s.logger.With(slog.String("batch_id", id), slog.String("operation", string(op)))
	logger.InfoContext(ctx, "batch received", slog.Int("items", size))
	return withLogger(ctx, logger), logger
}

func (s *Service) logSummary(ctx context.Context, logger *slog.Logger, tally map[ports.State]int, started time.Time) {
	logger.InfoContext(ctx, "batch finished",
		slog.Int("succeeded", tally[ports.StateSucceeded]),
		slog.Int("skipped", tally[ports.StateSkipped]),
		slog.Int("failed", tally[ports.StateFailed]),
		slog.Duration("elapsed", s.now().Sub(started)),
	)
}

func (s *Service) finish(ctx context.Context, outcome ports.Outcome) {
	for _, observe := range s.observers {
		observe(ctx, outcome)
	}
}

func failed(outcome ports.Outcome, err error) ports.Outcome {
	outcome.Advance(ports.StateFailed)
	outcome.Err = err
	return outcome
}

func skipped(outcome ports.Outcome, err error) ports.Outcome {
	outcome.Advance(ports.StateSkipped)
	outcome.Err = err
	return outcome
}

type loggerKey struct{}

func withLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// loggerFrom prefers the batch logger carried by ctx over fallback.
func loggerFrom(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return fallback
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}

var _ ports.SyncService = (*Service)(nil)
