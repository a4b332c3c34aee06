package notify

import (
	"context"
	"time"
)

// OrderPlacedEvent — событие об успешно оформленном заказе.
// На него подписаны почтовые и realtime-потребители; сам сервис
// доставкой писем не занимается.
type OrderPlacedEvent struct {
	OrderNo    string    `json:"order_no"`
	UserID     int64     `json:"user_id"`
	TotalCents int64     `json:"total_cents"`
	Paid       bool      `json:"paid"`
	PlacedAt   time.Time `json:"placed_at"`
}

// Notifier отправляет уведомления о заказах. Вызывается вне критического
// пути оформления: ошибки логируются вызывающей стороной и не ретраятся.
type Notifier interface {
	OrderPlaced(ctx context.Context, event OrderPlacedEvent) error
}
