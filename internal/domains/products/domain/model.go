package domain

// Kind tags the concrete type behind a Model so controllers can dispatch without reflection.
type Kind string

const (
	KindProduct Kind = "product"
	KindPayment Kind = "payment"
)

// Model is implemented by every record the system of record can hand to a controller.
type Model interface {
	Kind() Kind
	Identity() Identity
}

// Payment is a non-product record that product controllers must filter out.
type Payment struct {
	ID              Identity `json:"id"`
	CustomerOrderID Identity `json:"customerOrderId"`
	PaymentModule   string   `json:"paymentModuleCode,omitempty"`
	TotalSum        float64  `json:"totalSum"`
}

// Kind implements Model.
func (p *Payment) Kind() Kind { return KindPayment }

// Identity implements Model.
func (p *Payment) Identity() Identity { return p.ID }
