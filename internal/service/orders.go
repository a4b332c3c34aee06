package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/storage"
)

// OrderListService отдаёт покупателю его заказы.
type OrderListService interface {
	ListOrders(ctx context.Context, userID int64) ([]*models.Order, error)
}

type orderListService struct {
	log       *slog.Logger
	orderRepo storage.OrderStorage
}

func NewOrderListService(log *slog.Logger, orderRepo storage.OrderStorage) OrderListService {
	return &orderListService{log: log, orderRepo: orderRepo}
}

func (s *orderListService) ListOrders(ctx context.Context, userID int64) ([]*models.Order, error) {
	const op = "service.OrderListService.ListOrders"
	s.log.Info("listing orders", slog.String("op", op), slog.Int64("userID", userID))

	orders, err := s.orderRepo.GetOrdersByUserID(ctx, userID)
	if err != nil {
		s.log.Error("failed to get orders", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get orders: %w", op, err)
	}
	return orders, nil
}
