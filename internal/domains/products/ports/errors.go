package ports

import "errors"

var (
	// ErrConfiguration is fatal: the whole operation is aborted before any request is sent.
	ErrConfiguration = errors.New("endpoint configuration error")
	// ErrResolution signals the endpoint id of an item could not be determined.
	ErrResolution = errors.New("endpoint id resolution failed")
	// ErrTransport signals a connection, timeout, or I/O failure talking to the endpoint.
	ErrTransport = errors.New("endpoint transport failure")
	// ErrProtocol signals a response that is not a confirmed success.
	ErrProtocol = errors.New("endpoint protocol error")
	// ErrSkipped marks items or requests that were deliberately not sent. It is not a failure.
	ErrSkipped = errors.New("skipped")
	// ErrSkuNotFound signals the SKU lookup by host id found nothing.
	ErrSkuNotFound = errors.New("sku not found for host id")
	// ErrUnsupportedModel signals a model kind the controller has no behavior for.
	ErrUnsupportedModel = errors.New("unsupported model kind")
	// ErrUnknownOperation signals an operation type without configuration or behavior.
	ErrUnknownOperation = errors.New("unknown operation")
)
