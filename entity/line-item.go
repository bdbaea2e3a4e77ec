package entity

import "github.com/stripe/stripe-go/v76"

// Product is either fully resolved or only known by its ID.
type Product struct {
	ID       string            `json:"id" bson:"id"`
	Name     string            `json:"name,omitempty" bson:"name,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Resolved bool              `json:"resolved" bson:"resolved"`
}

type Price struct {
	ID       string            `json:"id" bson:"id"`
	Nickname string            `json:"nickname,omitempty" bson:"nickname,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Product  *Product          `json:"product,omitempty" bson:"product,omitempty"`
}

type LineItem struct {
	ID          string `json:"id" bson:"id"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
	Quantity    int64  `json:"quantity" bson:"quantity"`
	Price       *Price `json:"price,omitempty" bson:"price,omitempty"`
}

// ProductID returns the referenced product ID or an empty string.
func (li *LineItem) ProductID() string {
	if li == nil || li.Price == nil || li.Price.Product == nil {
		return ""
	}
	return li.Price.Product.ID
}

// NewProduct converts a stripe product. A product object carrying nothing
// but its ID is what stripe-go yields for an unexpanded reference.
func NewProduct(p *stripe.Product) *Product {
	if p == nil {
		return nil
	}
	return &Product{
		ID:       p.ID,
		Name:     p.Name,
		Metadata: p.Metadata,
		Resolved: p.Name != "" || p.Metadata != nil || p.Object != "",
	}
}

func NewLineItem(li *stripe.LineItem) LineItem {
	item := LineItem{
		ID:          li.ID,
		Description: li.Description,
		Quantity:    li.Quantity,
	}
	if li.Price != nil {
		item.Price = &Price{
			ID:       li.Price.ID,
			Nickname: li.Price.Nickname,
			Metadata: li.Price.Metadata,
			Product:  NewProduct(li.Price.Product),
		}
	}
	return item
}
