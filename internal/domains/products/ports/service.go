package ports

import (
	"context"

	"github.com/Apurer/product-sync-connector/internal/domains/products/domain"
)

// State is a step of the per-item push/delete state machine.
type State string

const (
	StateReceived         State = "received"
	StateIdentityResolved State = "identity_resolved"
	StatePayloadBuilt     State = "payload_built"
	StateDispatching      State = "dispatching"
	StateSucceeded        State = "succeeded"
	StateSkipped          State = "skipped"
	StateFailed           State = "failed"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateSkipped || s == StateFailed
}

// Outcome describes how one item of a batch ended. Trail lists every state the item
// passed through, starting with StateReceived.
type Outcome struct {
	Index     int
	Kind      domain.Kind
	SKU       string
	Operation Operation
	State     State
	Trail     []State
	Err       error
}

// NewOutcome starts an item in StateReceived.
func NewOutcome(index int, op Operation) Outcome {
	return Outcome{Index: index, Operation: op, State: StateReceived, Trail: []State{StateReceived}}
}

// Advance moves the outcome to next. A terminal outcome no longer changes.
func (o *Outcome) Advance(next State) {
	if o.State.Terminal() {
		return
	}
	o.State = next
	o.Trail = append(o.Trail, next)
}

// UpdateBehavior builds the requests one operation sends for one product. Returning an
// error wrapping ErrSkipped ends the item as skipped instead of failed.
type UpdateBehavior interface {
	Build(ctx context.Context, product *domain.Product) ([]Request, error)
}

// SyncService is the inbound port used by transports to push and delete batches.
// The returned batch always has the input's length and order.
type SyncService interface {
	Push(ctx context.Context, op Operation, items []domain.Model) ([]domain.Model, error)
	Delete(ctx context.Context, items []domain.Model) ([]domain.Model, error)
}
