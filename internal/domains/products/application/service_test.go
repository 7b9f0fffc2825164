package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/product-sync-connector/internal/domains/products/domain"
	"github.com/Apurer/product-sync-connector/internal/domains/products/ports"
	"github.com/Apurer/product-sync-connector/internal/domains/products/pricing"
)

type fakeEndpoint struct {
	mu          sync.Mutex
	validateErr error
	inactive    map[ports.Operation]bool
	sendErr     map[string]error
	lookupSKU   string
	lookupErr   error
	lookups     int
	sent        []ports.Request
	correlation []string
}

func newFakeEndpoint() *fakeEndpoint {
	return &fakeEndpoint{inactive: map[ports.Operation]bool{}, sendErr: map[string]error{}}
}

func (f *fakeEndpoint) Validate() error { return f.validateErr }

func (f *fakeEndpoint) Settings(op ports.Operation) (ports.OperationSettings, error) {
	return ports.OperationSettings{
		Operation: op,
		Method:    "POST",
		URL:       "https://shop.example/api/" + string(op),
		Active:    !f.inactive[op],
	}, nil
}

func (f *fakeEndpoint) Send(ctx context.Context, req ports.Request) (*ports.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	f.correlation = append(f.correlation, ports.CorrelationID(ctx))
	if err := f.sendErr[req.SKU]; err != nil {
		return nil, err
	}
	return &ports.Response{Status: 200, Body: map[string]any{"artikelNr": req.ArticleNumber}}, nil
}

func (f *fakeEndpoint) LookupSKU(context.Context, int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	return f.lookupSKU, f.lookupErr
}

func (f *fakeEndpoint) bodies(t *testing.T) []map[string]any {
	t.Helper()
	out := make([]map[string]any, 0, len(f.sent))
	for _, req := range f.sent {
		raw, err := json.Marshal(req.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		out = append(out, body)
	}
	return out
}

type logRecord struct {
	Level string `json:"level"`
	Msg   string `json:"msg"`
	Batch string `json:"batch_id"`
}

func captureLogs() (*slog.Logger, func(t *testing.T) []logRecord) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func(t *testing.T) []logRecord {
		t.Helper()
		var records []logRecord
		for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
			if line == "" {
				continue
			}
			var rec logRecord
			require.NoError(t, json.Unmarshal([]byte(line), &rec))
			records = append(records, rec)
		}
		return records
	}
}

func countLevel(records []logRecord, level string) int {
	n := 0
	for _, rec := range records {
		if rec.Level == level {
			n++
		}
	}
	return n
}

func b2cPrice(net string) []domain.PriceTier {
	return []domain.PriceTier{{
		CustomerGroupID: domain.Identity{Endpoint: pricing.CustomerGroupB2C},
		Items:           []domain.PriceItem{{Quantity: 1, NetPrice: decimal.RequireFromString(net)}},
	}}
}

func TestPushStockLevelSendsArticleNumberAndStock(t *testing.T) {
	endpoint := newFakeEndpoint()
	svc := NewService(endpoint)

	product := &domain.Product{SKU: "ABC123", ID: domain.NewIdentity(7), StockLevel: 42}
	out, err := svc.Push(context.Background(), ports.OperationStockLevel, []domain.Model{product})
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, domain.Identity{Host: 7, Endpoint: "ABC123"}, out[0].Identity())
	require.Len(t, endpoint.sent, 1)
	assert.Equal(t, map[string]any{"artikelNr": "ABC123", "lagerbestand": float64(42)}, endpoint.bodies(t)[0])
	assert.Equal(t, "ABC123", endpoint.sent[0].ArticleNumber)
}

func countingResolver() (ports.IdentityResolver, func() int) {
	var mu sync.Mutex
	calls := 0
	resolver := ports.IdentityResolverFunc(func(_ context.Context, sku string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return sku, nil
	})
	return resolver, func() int {
		mu.Lock()
		defer mu.Unlock()
		return calls
	}
}

func TestPushIsIdempotentForResolvedIdentities(t *testing.T) {
	endpoint := newFakeEndpoint()
	resolver, calls := countingResolver()
	svc := NewService(endpoint, WithIdentityResolver(resolver))
	product := &domain.Product{SKU: "ABC123", ID: domain.NewIdentity(7), StockLevel: 1}
	batch := []domain.Model{product}

	first, err := svc.Push(context.Background(), ports.OperationStockLevel, batch)
	require.NoError(t, err)
	second, err := svc.Push(context.Background(), ports.OperationStockLevel, first)
	require.NoError(t, err)

	assert.Equal(t, 1, calls())
	assert.Equal(t, first[0].Identity(), second[0].Identity())
	assert.Equal(t, "ABC123", second[0].Identity().Endpoint)
	require.Len(t, endpoint.sent, 2)
}

func TestPushNeverResolvesLinkedProducts(t *testing.T) {
	endpoint := newFakeEndpoint()
	resolver, calls := countingResolver()
	svc := NewService(endpoint, WithIdentityResolver(resolver))
	product := &domain.Product{SKU: "ABC123", ID: domain.Identity{Host: 7, Endpoint: "LEGACY-7"}, StockLevel: 1}

	out, err := svc.Push(context.Background(), ports.OperationStockLevel, []domain.Model{product})
	require.NoError(t, err)

	assert.Zero(t, calls())
	assert.Equal(t, domain.Identity{Host: 7, Endpoint: "LEGACY-7"}, out[0].Identity())
	require.Len(t, endpoint.sent, 1)
	assert.Equal(t, "LEGACY-7", endpoint.sent[0].ArticleNumber)
}

func collectOutcomes() (Option, func() []ports.Outcome) {
	var outcomes []ports.Outcome
	observe := WithOutcomeObserver(func(_ context.Context, outcome ports.Outcome) {
		outcomes = append(outcomes, outcome)
	})
	return observe, func() []ports.Outcome { return outcomes }
}

func TestPushWalksItemStates(t *testing.T) {
	endpoint := newFakeEndpoint()
	endpoint.sendErr["BAD"] = fmt.Errorf("%w: rejected", ports.ErrProtocol)
	observe, outcomes := collectOutcomes()
	svc := NewService(endpoint, observe)

	batch := []domain.Model{
		&domain.Product{SKU: "GOOD", ID: domain.NewIdentity(1), Prices: b2cPrice("9.99")},
		&domain.Product{SKU: "BAD", ID: domain.NewIdentity(2), Prices: b2cPrice("9.99")},
		&domain.Product{SKU: "FREE", ID: domain.NewIdentity(3), Prices: b2cPrice("0")},
	}
	_, err := svc.Push(context.Background(), ports.OperationProductPrice, batch)
	require.NoError(t, err)

	got := outcomes()
	require.Len(t, got, 3)
	assert.Equal(t, []ports.State{
		ports.StateReceived, ports.StateIdentityResolved, ports.StatePayloadBuilt, ports.StateDispatching, ports.StateSucceeded,
	}, got[0].Trail)
	assert.Equal(t, []ports.State{
		ports.StateReceived, ports.StateIdentityResolved, ports.StatePayloadBuilt, ports.StateDispatching, ports.StateFailed,
	}, got[1].Trail)
	assert.Equal(t, []ports.State{
		ports.StateReceived, ports.StateIdentityResolved, ports.StateSkipped,
	}, got[2].Trail)
	for _, outcome := range got {
		assert.True(t, outcome.State.Terminal())
	}
}

func TestDeleteWalksItemStates(t *testing.T) {
	endpoint := newFakeEndpoint()
	observe, outcomes := collectOutcomes()
	svc := NewService(endpoint, observe)

	_, err := svc.Delete(context.Background(), []domain.Model{&domain.Product{SKU: "ABC123", ID: domain.NewIdentity(5)}})
	require.NoError(t, err)

	got := outcomes()
	require.Len(t, got, 1)
	assert.Equal(t, []ports.State{
		ports.StateReceived, ports.StateIdentityResolved, ports.StatePayloadBuilt, ports.StateDispatching, ports.StateSucceeded,
	}, got[0].Trail)
}

func TestOutcomeIgnoresTransitionsAfterTerminalState(t *testing.T) {
	outcome := ports.NewOutcome(0, ports.OperationStockLevel)
	outcome.Advance(ports.StateSkipped)
	outcome.Advance(ports.StateSucceeded)

	assert.Equal(t, ports.StateSkipped, outcome.State)
	assert.Equal(t, []ports.State{ports.StateReceived, ports.StateSkipped}, outcome.Trail)
}

func TestPushContinuesAfterPerItemFailure(t *testing.T) {
	endpoint := newFakeEndpoint()
	logger, records := captureLogs()
	resolver := ports.IdentityResolverFunc(func(_ context.Context, sku string) (string, error) {
		if sku == "B" {
			return "", errors.New("unknown sku")
		}
		return sku, nil
	})
	var outcomes []ports.Outcome
	svc := NewService(endpoint,
		WithLogger(logger),
		WithIdentityResolver(resolver),
		WithOutcomeObserver(func(_ context.Context, o ports.Outcome) { outcomes = append(outcomes, o) }),
	)

	batch := []domain.Model{
		&domain.Product{SKU: "A", ID: domain.NewIdentity(1), StockLevel: 1},
		&domain.Product{SKU: "B", ID: domain.NewIdentity(2), StockLevel: 2},
		&domain.Product{SKU: "C", ID: domain.NewIdentity(3), StockLevel: 3},
	}
	out, err := svc.Push(context.Background(), ports.OperationStockLevel, batch)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "A", out[0].Identity().Endpoint)
	assert.Empty(t, out[1].Identity().Endpoint)
	assert.Equal(t, "C", out[2].Identity().Endpoint)
	assert.Len(t, endpoint.sent, 2)

	require.Len(t, outcomes, 3)
	assert.Equal(t, ports.StateSucceeded, outcomes[0].State)
	assert.Equal(t, ports.StateFailed, outcomes[1].State)
	assert.ErrorIs(t, outcomes[1].Err, ports.ErrResolution)
	assert.Equal(t, ports.StateSucceeded, outcomes[2].State)

	assert.Equal(t, 1, countLevel(records(t), "ERROR"))
}

func TestPushAttachesOneCorrelationIDPerBatch(t *testing.T) {
	endpoint := newFakeEndpoint()
	logger, records := captureLogs()
	svc := NewService(endpoint, WithLogger(logger))

	batch := []domain.Model{
		&domain.Product{SKU: "A", ID: domain.NewIdentity(1)},
		&domain.Product{SKU: "B", ID: domain.NewIdentity(2)},
	}
	_, err := svc.Push(context.Background(), ports.OperationStockLevel, batch)
	require.NoError(t, err)

	require.Len(t, endpoint.correlation, 2)
	id := endpoint.correlation[0]
	require.NotEmpty(t, id)
	assert.Equal(t, id, endpoint.correlation[1])
	for _, rec := range records(t) {
		assert.Equal(t, id, rec.Batch, rec.Msg)
	}
}

func TestPushFiltersNonProductModels(t *testing.T) {
	endpoint := newFakeEndpoint()
	logger, records := captureLogs()
	svc := NewService(endpoint, WithLogger(logger))

	payment := &domain.Payment{ID: domain.NewIdentity(9), TotalSum: 10}
	batch := []domain.Model{payment, &domain.Product{SKU: "A", ID: domain.NewIdentity(1)}}
	out, err := svc.Push(context.Background(), ports.OperationStockLevel, batch)
	require.NoError(t, err)

	assert.Same(t, payment, out[0])
	assert.Len(t, endpoint.sent, 1)
	assert.Equal(t, 1, countLevel(records(t), "ERROR"))
}

func TestPushPriceSkipsNonPositivePrices(t *testing.T) {
	endpoint := newFakeEndpoint()
	var outcomes []ports.Outcome
	svc := NewService(endpoint, WithOutcomeObserver(func(_ context.Context, o ports.Outcome) { outcomes = append(outcomes, o) }))

	product := &domain.Product{SKU: "P-0", ID: domain.NewIdentity(1), Prices: b2cPrice("0")}
	out, err := svc.Push(context.Background(), ports.OperationProductPrice, []domain.Model{product})
	require.NoError(t, err)

	assert.Empty(t, endpoint.sent)
	assert.Equal(t, "P-0", out[0].Identity().Endpoint)
	require.Len(t, outcomes, 1)
	assert.Equal(t, ports.StateSkipped, outcomes[0].State)
	assert.ErrorIs(t, outcomes[0].Err, ports.ErrSkipped)
}

func TestPushPriceSkipsProductWithoutMappedPrices(t *testing.T) {
	endpoint := newFakeEndpoint()
	observe, outcomes := collectOutcomes()
	svc := NewService(endpoint, observe)

	product := &domain.Product{SKU: "B2B-ONLY", ID: domain.NewIdentity(1), Prices: []domain.PriceTier{{
		CustomerGroupID: domain.Identity{Endpoint: pricing.CustomerGroupB2B},
		Items:           []domain.PriceItem{{Quantity: 1, NetPrice: decimal.RequireFromString("7.00")}},
	}}}
	_, err := svc.Push(context.Background(), ports.OperationProductPrice, []domain.Model{product})
	require.NoError(t, err)

	assert.Empty(t, endpoint.sent)
	require.Len(t, outcomes(), 1)
	assert.Equal(t, ports.StateSkipped, outcomes()[0].State)
	assert.ErrorContains(t, outcomes()[0].Err, "no price mapped")
}

func TestPushPriceSendsMappedRows(t *testing.T) {
	endpoint := newFakeEndpoint()
	svc := NewService(endpoint)

	product := &domain.Product{SKU: "P-1", ID: domain.NewIdentity(1), VAT: decimal.NewFromInt(19), Prices: b2cPrice("9.99")}
	_, err := svc.Push(context.Background(), ports.OperationProductPrice, []domain.Model{product})
	require.NoError(t, err)

	require.Len(t, endpoint.sent, 1)
	body := endpoint.bodies(t)[0]
	assert.Equal(t, "P-1", body["artikelNr"])
	assert.Equal(t, "VK21", body["bezeichnung"])
	assert.Equal(t, 9.99, body["stueckpreis"])
	assert.Equal(t, ports.OperationProductPrice, endpoint.sent[0].Operation)
}

func TestPushAbortsOnConfigurationError(t *testing.T) {
	endpoint := newFakeEndpoint()
	endpoint.validateErr = fmt.Errorf("%w: api key missing", ports.ErrConfiguration)
	svc := NewService(endpoint)

	product := &domain.Product{SKU: "A", ID: domain.NewIdentity(1)}
	out, err := svc.Push(context.Background(), ports.OperationStockLevel, []domain.Model{product})
	require.ErrorIs(t, err, ports.ErrConfiguration)
	assert.Len(t, out, 1)
	assert.Empty(t, endpoint.sent)
	assert.Empty(t, product.ID.Endpoint)
}

func TestPushRejectsUnknownOperation(t *testing.T) {
	svc := NewService(newFakeEndpoint())
	_, err := svc.Push(context.Background(), ports.OperationLookupSKU, nil)
	require.ErrorIs(t, err, ports.ErrUnknownOperation)
}

func TestPushKeepsFailedSendAsFailedItem(t *testing.T) {
	endpoint := newFakeEndpoint()
	endpoint.sendErr["A"] = fmt.Errorf("%w: status 500", ports.ErrProtocol)
	var outcomes []ports.Outcome
	svc := NewService(endpoint, WithOutcomeObserver(func(_ context.Context, o ports.Outcome) { outcomes = append(outcomes, o) }))

	batch := []domain.Model{
		&domain.Product{SKU: "A", ID: domain.NewIdentity(1)},
		&domain.Product{SKU: "B", ID: domain.NewIdentity(2)},
	}
	_, err := svc.Push(context.Background(), ports.OperationStockLevel, batch)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, ports.StateFailed, outcomes[0].State)
	assert.ErrorIs(t, outcomes[0].Err, ports.ErrProtocol)
	assert.Equal(t, ports.StateSucceeded, outcomes[1].State)
}

func TestPushUsesRegisteredBehavior(t *testing.T) {
	endpoint := newFakeEndpoint()
	behavior := behaviorFunc(func(_ context.Context, p *domain.Product) ([]ports.Request, error) {
		return []ports.Request{{
			Operation:     ports.OperationProductData,
			SKU:           p.SKU,
			ArticleNumber: p.ID.Endpoint,
			Body:          map[string]any{"artikelNr": p.ID.Endpoint, "custom": true},
		}}, nil
	})
	svc := NewService(endpoint, WithBehavior(ports.OperationProductData, domain.KindProduct, behavior))

	_, err := svc.Push(context.Background(), ports.OperationProductData, []domain.Model{&domain.Product{SKU: "X", ID: domain.NewIdentity(4)}})
	require.NoError(t, err)
	require.Len(t, endpoint.sent, 1)
	assert.Equal(t, map[string]any{"artikelNr": "X", "custom": true}, endpoint.bodies(t)[0])
}

func TestPushSkipsBehaviorWithoutRequests(t *testing.T) {
	endpoint := newFakeEndpoint()
	observe, outcomes := collectOutcomes()
	behavior := behaviorFunc(func(context.Context, *domain.Product) ([]ports.Request, error) { return nil, nil })
	svc := NewService(endpoint, observe, WithBehavior(ports.OperationProductData, domain.KindProduct, behavior))

	_, err := svc.Push(context.Background(), ports.OperationProductData, []domain.Model{&domain.Product{SKU: "X", ID: domain.NewIdentity(4)}})
	require.NoError(t, err)
	assert.Empty(t, endpoint.sent)
	require.Len(t, outcomes(), 1)
	assert.Equal(t, ports.StateSkipped, outcomes()[0].State)
}

type behaviorFunc func(ctx context.Context, p *domain.Product) ([]ports.Request, error)

func (f behaviorFunc) Build(ctx context.Context, p *domain.Product) ([]ports.Request, error) {
	return f(ctx, p)
}

func TestDeleteSkipsInactiveEndpointBeforeLookup(t *testing.T) {
	endpoint := newFakeEndpoint()
	endpoint.inactive[ports.OperationDelete] = true
	svc := NewService(endpoint)

	out, err := svc.Delete(context.Background(), []domain.Model{&domain.Product{ID: domain.NewIdentity(5)}})
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Zero(t, endpoint.lookups)
	assert.Empty(t, endpoint.sent)
}

func TestDeletePrefersSKU(t *testing.T) {
	endpoint := newFakeEndpoint()
	svc := NewService(endpoint)

	_, err := svc.Delete(context.Background(), []domain.Model{&domain.Product{SKU: "DEL-1", ID: domain.NewIdentity(5)}})
	require.NoError(t, err)
	assert.Zero(t, endpoint.lookups)
	require.Len(t, endpoint.sent, 1)
	assert.Equal(t, map[string]any{"artikelNr": "DEL-1"}, endpoint.bodies(t)[0])
}

func TestDeleteLooksUpSKUByHostID(t *testing.T) {
	endpoint := newFakeEndpoint()
	endpoint.lookupSKU = "FOUND-1"
	svc := NewService(endpoint)

	_, err := svc.Delete(context.Background(), []domain.Model{&domain.Product{ID: domain.NewIdentity(5)}})
	require.NoError(t, err)
	assert.Equal(t, 1, endpoint.lookups)
	require.Len(t, endpoint.sent, 1)
	assert.Equal(t, "FOUND-1", endpoint.sent[0].SKU)
}

func TestDeleteSkipsAbsentSKU(t *testing.T) {
	endpoint := newFakeEndpoint()
	var outcomes []ports.Outcome
	svc := NewService(endpoint, WithOutcomeObserver(func(_ context.Context, o ports.Outcome) { outcomes = append(outcomes, o) }))

	_, err := svc.Delete(context.Background(), []domain.Model{&domain.Product{ID: domain.NewIdentity(5)}})
	require.NoError(t, err)
	assert.Empty(t, endpoint.sent)
	require.Len(t, outcomes, 1)
	assert.Equal(t, ports.StateSkipped, outcomes[0].State)
}

func TestDeletePropagatesLookupFailure(t *testing.T) {
	endpoint := newFakeEndpoint()
	endpoint.lookupErr = fmt.Errorf("%w: host id 5", ports.ErrSkuNotFound)
	svc := NewService(endpoint)

	batch := []domain.Model{
		&domain.Product{ID: domain.NewIdentity(5)},
		&domain.Product{SKU: "NEXT", ID: domain.NewIdentity(6)},
	}
	out, err := svc.Delete(context.Background(), batch)
	require.ErrorIs(t, err, ports.ErrSkuNotFound)
	assert.Len(t, out, 2)
	assert.Empty(t, endpoint.sent)
}

func TestDeleteAbortsOnConfigurationError(t *testing.T) {
	endpoint := newFakeEndpoint()
	endpoint.validateErr = fmt.Errorf("%w: api key missing", ports.ErrConfiguration)
	svc := NewService(endpoint)

	_, err := svc.Delete(context.Background(), []domain.Model{&domain.Product{SKU: "A"}})
	require.ErrorIs(t, err, ports.ErrConfiguration)
	assert.Zero(t, endpoint.lookups)
	assert.Empty(t, endpoint.sent)
}
