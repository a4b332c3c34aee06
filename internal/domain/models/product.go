package models

import "time"

// Product представляет товар каталога с собственным остатком на складе.
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
	Variants    []Variant `json:"variants,omitempty"`
}

// Variant — вариант товара (размер, цвет и т.п.) со своим остатком.
type Variant struct {
	ID         int64  `json:"id"`
	ProductID  int64  `json:"product_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
}
