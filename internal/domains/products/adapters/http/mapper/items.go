// Package mapper converts between the HTTP batch documents and domain models.
package mapper

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Apurer/product-sync-connector/internal/domains/products/domain"
)

// Batch is the request and response document of the push and delete routes.
type Batch struct {
	Items []json.RawMessage `json:"items"`
}

type kindProbe struct {
	Kind string `json:"kind"`
}

type productItem struct {
	Kind string `json:"kind"`
	*domain.Product
}

type paymentItem struct {
	Kind string `json:"kind"`
	*domain.Payment
}

// ToModels decodes every item by its kind field; items without a kind are products.
func ToModels(batch Batch) ([]domain.Model, error) {
	models := make([]domain.Model, 0, len(batch.Items))
	for i, raw := range batch.Items {
		model, err := toModel(raw)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		models = append(models, model)
	}
	return models, nil
}

func toModel(raw json.RawMessage) (domain.Model, error) {
	var probe kindProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	switch domain.Kind(strings.ToLower(strings.TrimSpace(probe.Kind))) {
	case "", domain.KindProduct:
		product := &domain.Product{}
		if err := json.Unmarshal(raw, &productItem{Product: product}); err != nil {
			return nil, err
		}
		return product, nil
	case domain.KindPayment:
		payment := &domain.Payment{}
		if err := json.Unmarshal(raw, &paymentItem{Payment: payment}); err != nil {
			return nil, err
		}
		return payment, nil
	default:
		return nil, fmt.Errorf("unknown item kind %q", probe.Kind)
	}
}

// FromModels encodes models in order, tagging each with its kind.
func FromModels(models []domain.Model) (Batch, error) {
	batch := Batch{Items: make([]json.RawMessage, 0, len(models))}
	for i, model := range models {
		var item any
		switch m := model.(type) {
		case *domain.Product:
			item = productItem{Kind: string(domain.KindProduct), Product: m}
		case *domain.Payment:
			item = paymentItem{Kind: string(domain.KindPayment), Payment: m}
		default:
			return Batch{}, fmt.Errorf("items[%d]: cannot encode %T", i, model)
		}
		raw, err := json.Marshal(item)
		if err != nil {
			return Batch{}, fmt.Errorf("items[%d]: %w", i, err)
		}
		batch.Items = append(batch.Items, raw)
	}
	return batch, nil
}
