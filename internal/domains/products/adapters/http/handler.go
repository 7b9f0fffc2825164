// Package http exposes the sync controller over gin.
package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Apurer/product-sync-connector/internal/domains/products/adapters/http/mapper"
	"github.com/Apurer/product-sync-connector/internal/domains/products/domain"
	"github.com/Apurer/product-sync-connector/internal/domains/products/ports"
	apierrors "github.com/Apurer/product-sync-connector/internal/shared/errors"
)

// CorrelationHeader lets callers choose the batch correlation id; it is echoed on every response.
const CorrelationHeader = "X-Correlation-Id"

// Handler wires the push and delete routes to a sync service.
type Handler struct {
	service   ports.SyncService
	responder *apierrors.Responder
}

// NewHandler creates a Handler backed by service.
func NewHandler(service ports.SyncService) *Handler {
	return &Handler{service: service, responder: apierrors.NewResponder(ProblemFor)}
}

// Register mounts the routes on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/v1/products/push", h.Push)
	r.POST("/v1/products/delete", h.Delete)
}

// Post /v1/products/push?operation=setProductStockLevel
// Pushes a batch of products for one operation.
func (h *Handler) Push(c *gin.Context) {
	raw := c.Query("operation")
	op, ok := ports.ParseOperation(raw)
	if !ok || !isPushOperation(op) {
		h.responder.Respond(c, apierrors.ErrBadRequest.
			WithDetail("unknown push operation "+strings.TrimSpace(raw)).
			WithExtension("operations", ports.PushOperations))
		return
	}
	items, ok := h.bind(c)
	if !ok {
		return
	}
	ctx := ports.WithCorrelationID(c.Request.Context(), c.GetHeader(CorrelationHeader))
	result, err := h.service.Push(ctx, op, items)
	h.respond(c, result, err)
}

// Post /v1/products/delete
// Deletes a batch of products.
func (h *Handler) Delete(c *gin.Context) {
	items, ok := h.bind(c)
	if !ok {
		return
	}
	ctx := ports.WithCorrelationID(c.Request.Context(), c.GetHeader(CorrelationHeader))
	result, err := h.service.Delete(ctx, items)
	h.respond(c, result, err)
}

func (h *Handler) bind(c *gin.Context) ([]domain.Model, bool) {
	var batch mapper.Batch
	if err := c.ShouldBindJSON(&batch); err != nil {
		h.responder.BadRequest(c, err.Error())
		return nil, false
	}
	items, err := mapper.ToModels(batch)
	if err != nil {
		h.responder.BadRequest(c, err.Error())
		return nil, false
	}
	return items, true
}

func (h *Handler) respond(c *gin.Context, result []domain.Model, err error) {
	if id := c.GetHeader(CorrelationHeader); id != "" {
		c.Header(CorrelationHeader, id)
	}
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	batch, err := mapper.FromModels(result)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func isPushOperation(op ports.Operation) bool {
	for _, candidate := range ports.PushOperations {
		if candidate == op {
			return true
		}
	}
	return false
}

// ProblemFor maps the sync error taxonomy onto problem details.
func ProblemFor(err error) (apierrors.ProblemDetail, bool) {
	switch {
	case errors.Is(err, ports.ErrConfiguration):
		return apierrors.ErrConfiguration.WithDetail(err.Error()), true
	case errors.Is(err, ports.ErrSkuNotFound):
		return apierrors.ErrNotFound.WithDetail(err.Error()), true
	case errors.Is(err, ports.ErrUnknownOperation), errors.Is(err, ports.ErrUnsupportedModel):
		return apierrors.ErrBadRequest.WithDetail(err.Error()), true
	case errors.Is(err, ports.ErrTransport), errors.Is(err, ports.ErrProtocol):
		return apierrors.ErrUpstream.WithDetail(err.Error()), true
	}
	return apierrors.ProblemDetail{}, false
}
