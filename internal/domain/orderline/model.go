package orderline

import (
	"github.com/cartloop/recurbill/internal/types"
	"github.com/shopspring/decimal"
)

// OrderLine is an originating order line item. Subscriptions derive their
// billing attributes from the line's selected product options; the line may
// later be deleted, which is why subscriptions snapshot what they need.
type OrderLine struct {
	ID         string `db:"id" json:"id"`
	OrderID    string `db:"order_id" json:"order_id"`
	CustomerID string `db:"customer_id" json:"customer_id"`

	// ProductName and ProductModel identify the purchased product
	ProductName  string `db:"product_name" json:"product_name"`
	ProductModel string `db:"product_model" json:"product_model"`

	// Price is the line price, used as the default billing amount
	Price    decimal.Decimal `db:"price" json:"price"`
	Currency string          `db:"currency" json:"currency"`

	// Attributes are the selected product option name/value pairs
	Attributes []Attribute `json:"attributes,omitempty"`

	types.BaseModel
}

// Attribute is one selected product option on an order line.
type Attribute struct {
	ID          string `db:"id" json:"id"`
	OrderLineID string `db:"order_line_id" json:"order_line_id"`
	Name        string `db:"name" json:"name"`
	Value       string `db:"value" json:"value"`
}

// TableName returns the table name for order lines
func (o *OrderLine) TableName() string {
	return "order_lines"
}
