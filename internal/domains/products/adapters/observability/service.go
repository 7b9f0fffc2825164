package observability

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/product-sync-connector/internal/domains/products/domain"
	"github.com/Apurer/product-sync-connector/internal/domains/products/ports"
)

const tracerName = "github.com/Apurer/product-sync-connector/internal/domains/products/adapters/observability/service"

// Service decorates the sync port with tracing, logging, and metrics.
type Service struct {
	inner   ports.SyncService
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer injects a tracer implementation.
func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tr
	}
}

// WithMeter injects the meter used to create the batch and item counters.
func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.metrics = newServiceMetrics(m)
	}
}

// New wires a decorator around the sync controller.
func New(inner ports.SyncService, opts ...Option) *Service {
	s := &Service{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		logger:  defaultLogger(),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	if s.logger == nil {
		s.logger = defaultLogger()
	}
	return s
}

// Push forwards a push batch inside a span.
func (s *Service) Push(ctx context.Context, op ports.Operation, items []domain.Model) ([]domain.Model, error) {
	attrs := []attribute.KeyValue{
		attribute.String("sync.operation", string(op)),
		attribute.Int("sync.batch.size", len(items)),
	}
	ctx, span := s.startSpan(ctx, "SyncService.Push", attrs...)
	defer span.End()

	result, err := s.inner.Push(ctx, op, items)
	s.metrics.recordBatch(ctx, op, err)
	if err != nil {
		return result, s.handleError(ctx, span, err, "push batch aborted", slog.String("operation", string(op)))
	}
	s.logInfo(ctx, "push batch processed", slog.String("operation", string(op)), slog.Int("items", len(result)))
	return result, nil
}

// Delete forwards a delete batch inside a span.
func (s *Service) Delete(ctx context.Context, items []domain.Model) ([]domain.Model, error) {
	ctx, span := s.startSpan(ctx, "SyncService.Delete", attribute.Int("sync.batch.size", len(items)))
	defer span.End()

	result, err := s.inner.Delete(ctx, items)
	s.metrics.recordBatch(ctx, ports.OperationDelete, err)
	if err != nil {
		return result, s.handleError(ctx, span, err, "delete batch aborted")
	}
	s.logInfo(ctx, "delete batch processed", slog.Int("items", len(result)))
	return result, nil
}

// RecordOutcome counts a terminal item outcome and annotates the active span. It matches the
// controller's outcome observer signature.
func (s *Service) RecordOutcome(ctx context.Context, outcome ports.Outcome) {
	s.metrics.recordItem(ctx, outcome)
	span := trace.SpanFromContext(ctx)
	span.AddEvent("sync.item", trace.WithAttributes(
		attribute.Int("sync.item.index", outcome.Index),
		attribute.String("sync.item.sku", outcome.SKU),
		attribute.String("sync.item.state", string(outcome.State)),
	))
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := s.tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (s *Service) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func (s *Service) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if s.logger != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		s.logger.LogAttrs(ctx, slog.LevelWarn, msg, attrs...)
	}
	return err
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type serviceMetrics struct {
	batches metric.Int64Counter
	items   metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	batches, _ := m.Int64Counter("products.sync.batches", metric.WithDescription("Number of push and delete batches"))
	items, _ := m.Int64Counter("products.sync.items", metric.WithDescription("Number of batch items by terminal state"))
	return serviceMetrics{batches: batches, items: items}
}

func (m serviceMetrics) recordBatch(ctx context.Context, op ports.Operation, err error) {
	addCounter(ctx, m.batches, 1,
		attribute.String("sync.operation", string(op)),
		attribute.Bool("sync.aborted", err != nil),
	)
}

func (m serviceMetrics) recordItem(ctx context.Context, outcome ports.Outcome) {
	addCounter(ctx, m.items, 1,
		attribute.String("sync.operation", string(outcome.Operation)),
		attribute.String("sync.item.state", string(outcome.State)),
	)
}

func addCounter(ctx context.Context, counter metric.Int64Counter, value int64, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

var _ ports.SyncService = (*Service)(nil)
