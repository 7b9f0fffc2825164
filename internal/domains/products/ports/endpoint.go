package ports

import (
	"context"
	"strings"
)

// Operation identifies a configured endpoint operation.
type Operation string

const (
	OperationProductData  Operation = "setProductData"
	OperationStockLevel   Operation = "setProductStockLevel"
	OperationProductPrice Operation = "setProductPrice"
	OperationDelete       Operation = "deleteProduct"
	OperationLookupSKU    Operation = "getSkuByJtlId"
)

// PushOperations lists the operations a push may target.
var PushOperations = []Operation{OperationProductData, OperationStockLevel, OperationProductPrice}

// ParseOperation accepts the configured operation names case-insensitively.
func ParseOperation(raw string) (Operation, bool) {
	raw = strings.TrimSpace(raw)
	for _, op := range []Operation{OperationProductData, OperationStockLevel, OperationProductPrice, OperationDelete, OperationLookupSKU} {
		if strings.EqualFold(raw, string(op)) {
			return op, true
		}
	}
	return "", false
}

// OperationSettings is the resolved, ready-to-dispatch view of one operation.
type OperationSettings struct {
	Operation Operation
	Method    string
	URL       string
	Active    bool
	PriceType string
}

// Request is one outbound call for one item.
type Request struct {
	Operation Operation
	HostID    int64
	SKU       string
	// ArticleNumber is the article number the endpoint has to echo back.
	ArticleNumber string
	Body          any
}

// Response is the decoded reply of a confirmed request.
type Response struct {
	Status int
	Body   map[string]any
}

// Endpoint is the outbound port to the external e-commerce endpoint.
type Endpoint interface {
	// Validate fails with ErrConfiguration when the endpoint cannot be called at all.
	Validate() error
	// Settings resolves method, URL, and activity of an operation.
	Settings(op Operation) (OperationSettings, error)
	// Send dispatches req once. A nil error means the endpoint confirmed the article number.
	Send(ctx context.Context, req Request) (*Response, error)
	// LookupSKU asks the read-only lookup endpoint for the SKU of a host id. An empty SKU
	// with a nil error means the SKU is absent and may be ignored.
	LookupSKU(ctx context.Context, hostID int64) (string, error)
}

// IdentityResolver determines the endpoint id of an unresolved product.
type IdentityResolver interface {
	ResolveEndpointID(ctx context.Context, sku string) (string, error)
}

// IdentityResolverFunc adapts a function to IdentityResolver.
type IdentityResolverFunc func(ctx context.Context, sku string) (string, error)

// ResolveEndpointID implements IdentityResolver.
func (f IdentityResolverFunc) ResolveEndpointID(ctx context.Context, sku string) (string, error) {
	return f(ctx, sku)
}
