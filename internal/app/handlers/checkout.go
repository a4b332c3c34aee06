package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/storefront/internal/service"
)

// CheckoutItem — позиция корзины в запросе оформления.
// Идентификатор позиции клиент не передаёт — его назначает хранилище.
type CheckoutItem struct {
	ProductID      int64  `json:"product_id" validate:"required,gt=0"`
	VariantID      *int64 `json:"variant_id,omitempty"`
	Name           string `json:"name" validate:"required"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"gte=0"`
	Quantity       int    `json:"quantity" validate:"required,gte=1"`
}

// CheckoutRequest — вход POST /api/orders.
type CheckoutRequest struct {
	Items           []CheckoutItem         `json:"items" validate:"required,min=1,dive"`
	ShippingAddress models.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method" validate:"required,oneof=online cod"`
	ItemsPriceCents int64                  `json:"items_price_cents" validate:"gte=0"`
	DiscountCents   int64                  `json:"discount_cents" validate:"gte=0"`
	TotalCents      int64                  `json:"total_cents" validate:"gte=0"`
}

// CheckoutHandler обрабатывает запрос POST /api/orders.
// Ошибки нехватки остатков и неудачного списания — клиентские (409),
// каждая попытка оформления независима, ничего не ретраится.
func CheckoutHandler(log *slog.Logger, checkoutService service.CheckoutService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CheckoutHandler"
		logger := log.With(slog.String("op", op))

		var req CheckoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		// Извлекаем userID из контекста (установленный JWT middleware)
		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		placeReq := service.PlaceOrderRequest{
			ShippingAddress: req.ShippingAddress,
			PaymentMethod:   req.PaymentMethod,
			ItemsPriceCents: req.ItemsPriceCents,
			DiscountCents:   req.DiscountCents,
			TotalCents:      req.TotalCents,
		}
		for _, item := range req.Items {
			placeReq.Items = append(placeReq.Items, service.CartItem{
				ProductID:      item.ProductID,
				VariantID:      item.VariantID,
				Name:           item.Name,
				UnitPriceCents: item.UnitPriceCents,
				Quantity:       item.Quantity,
			})
		}

		order, err := checkoutService.PlaceOrder(r.Context(), userID, placeReq)
		if err != nil {
			var insufficientErr *service.InsufficientStockError
			var commitmentErr *service.CommitmentError
			switch {
			case errors.Is(err, service.ErrEmptyOrder):
				logger.Warn("empty order")
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.As(err, &insufficientErr):
				logger.Warn("insufficient stock", slog.String("details", insufficientErr.Error()))
				http.Error(w, insufficientErr.Error(), http.StatusConflict)
			case errors.As(err, &commitmentErr):
				logger.Warn("stock commitment failed", slog.Any("error", err))
				http.Error(w, commitmentErr.Error(), http.StatusConflict)
			default:
				logger.Error("failed to place order", slog.Any("error", err))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(order); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
		}
	}
}
