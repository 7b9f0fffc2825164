package endpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	endpointclient "github.com/Apurer/product-sync-connector/internal/clients/http/endpoint"
	"github.com/Apurer/product-sync-connector/internal/domains/products/ports"
	"github.com/Apurer/product-sync-connector/internal/platform/config"
)

// Gateway implements the outbound endpoint port on top of the JSON HTTP client.
type Gateway struct {
	client  *endpointclient.Client
	api     config.API
	confirm Confirmation
	logger  *slog.Logger
}

// Option configures the Gateway.
type Option func(*Gateway)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGateway binds client to the endpoint section of the configuration.
func NewGateway(client *endpointclient.Client, api config.API, opts ...Option) *Gateway {
	g := &Gateway{
		client:  client,
		api:     api,
		confirm: ConfirmationFor(api.Confirmation),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Validate implements ports.Endpoint.
func (g *Gateway) Validate() error {
	if g == nil || g.client == nil {
		return fmt.Errorf("%w: endpoint client not configured", ports.ErrConfiguration)
	}
	if strings.TrimSpace(g.api.Key) == "" {
		return fmt.Errorf("%w: endpoint API key is not set", ports.ErrConfiguration)
	}
	return nil
}

// Settings implements ports.Endpoint.
func (g *Gateway) Settings(op ports.Operation) (ports.OperationSettings, error) {
	sub, ok := g.api.Endpoints[string(op)]
	if !ok {
		return ports.OperationSettings{}, fmt.Errorf("%w: no endpoint configured for %s", ports.ErrConfiguration, op)
	}
	method := strings.ToUpper(strings.TrimSpace(sub.Method))
	if method == "" {
		method = http.MethodPost
	}
	return ports.OperationSettings{
		Operation: op,
		Method:    method,
		URL:       sub.URL,
		Active:    sub.IsActive(),
		PriceType: sub.PriceType,
	}, nil
}

// Send implements ports.Endpoint. A nil error means the response passed the configured
// confirmation contract.
func (g *Gateway) Send(ctx context.Context, req ports.Request) (*ports.Response, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	settings, err := g.Settings(req.Operation)
	if err != nil {
		return nil, err
	}
	target, err := g.expand(settings, req.SKU, req.HostID)
	if err != nil {
		return nil, err
	}

	result, err := g.client.Do(ctx, g.call(settings, target, ports.CorrelationID(ctx), req.Body))
	if err != nil {
		return nil, translate(err)
	}
	if err := g.confirm.Check(result.Status, result.Body, req.ArticleNumber); err != nil {
		return nil, fmt.Errorf("%s %s: %w", settings.Method, target, err)
	}
	g.logger.InfoContext(ctx, "endpoint confirmed request",
		slog.String("operation", string(req.Operation)),
		slog.String("sku", req.SKU),
		slog.Duration("elapsed", result.Elapsed),
	)
	return &ports.Response{Status: result.Status, Body: result.Body}, nil
}

// LookupSKU implements ports.Endpoint. An inactive or unconfigured lookup endpoint yields an
// absent SKU; a missing SKU is absent only when ignoreMissingSku is set.
func (g *Gateway) LookupSKU(ctx context.Context, hostID int64) (string, error) {
	if err := g.Validate(); err != nil {
		return "", err
	}
	settings, err := g.Settings(ports.OperationLookupSKU)
	if err != nil || !settings.Active {
		g.logger.InfoContext(ctx, "sku lookup endpoint inactive", slog.Int64("host_id", hostID))
		return "", nil
	}
	target, err := g.expand(settings, "", hostID)
	if err != nil {
		return "", err
	}

	result, err := g.client.Do(ctx, g.call(settings, target, ports.CorrelationID(ctx), nil))
	if err != nil {
		var reqErr *endpointclient.RequestError
		if errors.As(err, &reqErr) && reqErr.Status == http.StatusNotFound {
			return g.missing(ctx, hostID)
		}
		return "", translate(err)
	}
	if result.Status != http.StatusOK {
		return "", fmt.Errorf("%w: sku lookup returned status %d", ports.ErrProtocol, result.Status)
	}
	if result.Body == nil {
		return "", fmt.Errorf("%w: sku lookup returned an undecodable body: %s", ports.ErrProtocol, endpointclient.Truncate(result.Raw, 128))
	}
	sku, found := lookupResult(result.Body)
	if !found {
		return g.missing(ctx, hostID)
	}
	return sku, nil
}

func (g *Gateway) missing(ctx context.Context, hostID int64) (string, error) {
	if g.api.IgnoreMissingSKU {
		g.logger.InfoContext(ctx, "sku not found; ignoring", slog.Int64("host_id", hostID))
		return "", nil
	}
	return "", fmt.Errorf("%w: host id %d", ports.ErrSkuNotFound, hostID)
}

func (g *Gateway) call(settings ports.OperationSettings, target, correlationID string, body any) endpointclient.Call {
	key, auth := g.credentials(settings.Operation)
	return endpointclient.Call{
		Operation:     string(settings.Operation),
		Method:        settings.Method,
		URL:           target,
		APIKey:        key,
		BasicAuth:     auth,
		CorrelationID: correlationID,
		Body:          body,
	}
}

// credentials prefers the sub-endpoint key and basic auth over the API-wide ones.
func (g *Gateway) credentials(op ports.Operation) (string, *endpointclient.BasicAuth) {
	key := g.api.Key
	auth := g.api.BasicAuth
	if sub, ok := g.api.Endpoints[string(op)]; ok {
		if k := strings.TrimSpace(sub.Key); k != "" {
			key = k
		}
		if sub.BasicAuth != nil {
			auth = sub.BasicAuth
		}
	}
	if auth == nil {
		return key, nil
	}
	return key, &endpointclient.BasicAuth{Username: auth.Username, Password: auth.Password}
}

func (g *Gateway) expand(settings ports.OperationSettings, sku string, hostID int64) (string, error) {
	values := map[string]string{
		"sku":          sku,
		"jtlId":        strconv.FormatInt(hostID, 10),
		"hostId":       strconv.FormatInt(hostID, 10),
		"endpointType": string(settings.Operation),
		"priceType":    settings.PriceType,
	}
	target, err := endpointclient.ExpandTemplate(settings.URL, values)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ports.ErrConfiguration, err)
	}
	return target, nil
}

// translate maps client failures onto the port's error taxonomy.
func translate(err error) error {
	switch {
	case errors.Is(err, endpointclient.ErrStatus):
		return fmt.Errorf("%w: %w", ports.ErrProtocol, err)
	case errors.Is(err, endpointclient.ErrTransport):
		return fmt.Errorf("%w: %w", ports.ErrTransport, err)
	default:
		return fmt.Errorf("%w: %w", ports.ErrTransport, err)
	}
}

func lookupResult(body map[string]any) (string, bool) {
	if body == nil {
		return "", false
	}
	if success, ok := body["success"].(bool); ok && !success {
		return "", false
	}
	for _, key := range []string{"sku", "artikelNr"} {
		if sku, ok := stringField(body, key); ok && sku != "" {
			return sku, true
		}
	}
	return "", false
}

var _ ports.Endpoint = (*Gateway)(nil)
