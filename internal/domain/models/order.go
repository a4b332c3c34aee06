package models

import "time"

// Способы оплаты. Заказы с онлайн-оплатой считаются оплаченными в момент создания,
// наложенный платёж ("cod") остаётся неоплаченным до получения.
const (
	PaymentMethodOnline = "online"
	PaymentMethodCOD    = "cod"
)

// ShippingAddress — адрес доставки заказа.
type ShippingAddress struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// OrderItem представляет одну позицию заказа.
// Name и UnitPriceCents — денормализованные значения на момент покупки,
// чтобы заказ не менялся при редактировании каталога.
type OrderItem struct {
	ID             int64  `json:"id"`
	OrderID        int64  `json:"order_id"`
	ProductID      int64  `json:"product_id"`
	VariantID      *int64 `json:"variant_id,omitempty"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
}

// Order представляет заказ, созданный при оформлении корзины.
// Список позиций после создания неизменяем; заказ удаляется целиком
// только как компенсация при неудачном списании остатков.
type Order struct {
	ID              int64           `json:"id"`
	OrderNo         string          `json:"order_no"`
	UserID          int64           `json:"user_id"`
	Items           []OrderItem     `json:"items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	ItemsPriceCents int64           `json:"items_price_cents"`
	DiscountCents   int64           `json:"discount_cents"`
	TotalCents      int64           `json:"total_cents"`
	Paid            bool            `json:"paid"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
