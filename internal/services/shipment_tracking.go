package services

import (
	"context"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/c2c-marketplace/backend/internal/models"
	"github.com/c2c-marketplace/backend/internal/repositories"
	"github.com/c2c-marketplace/backend/internal/tracking"
	"go.uber.org/zap"
)

// ShipmentTracker reads carrier tracking pages.
type ShipmentTracker interface {
	Supports(carrier string) bool
	Fetch(ctx context.Context, carrier, trackingNumber string) (*tracking.Status, error)
}

const shipmentPageSize = 100

// PollShipments marks shipped orders delivered when their carrier reports
// delivery. It returns how many orders moved.
func (s *OrderService) PollShipments(ctx context.Context, tracker ShipmentTracker) (int, error) {
	shipped, err := s.shippedOrders(ctx)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, o := range shipped {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		if o.ShippingCarrier == nil || o.TrackingNumber == nil || !tracker.Supports(*o.ShippingCarrier) {
			continue
		}

		st, err := tracker.Fetch(ctx, *o.ShippingCarrier, *o.TrackingNumber)
		if err != nil {
			s.log.Warn("tracking lookup failed",
				zap.String("order_id", o.ID.String()),
				zap.String("carrier", *o.ShippingCarrier),
				zap.Error(err),
			)
			continue
		}
		if !st.Delivered {
			continue
		}

		if _, err := s.MarkDelivered(ctx, SystemActor(), o.ID); err != nil {
			// A party may have marked it delivered or opened a dispute meanwhile.
			if apperr.IsPrecondition(err) || apperr.IsConflict(err) {
				continue
			}
			s.log.Error("failed to mark order delivered", zap.String("order_id", o.ID.String()), zap.Error(err))
			continue
		}
		s.log.Info("order delivered by carrier",
			zap.String("order_id", o.ID.String()),
			zap.String("carrier", st.Carrier),
			zap.String("status_text", st.StatusText),
		)
		delivered++
	}
	return delivered, nil
}

// shippedOrders reads every shipped order before any of them is moved, so
// deliveries during the poll do not shift later pages.
func (s *OrderService) shippedOrders(ctx context.Context) ([]models.Order, error) {
	status := models.OrderStatusShipped
	var all []models.Order
	for offset := 0; ; offset += shipmentPageSize {
		page, err := s.orders.List(ctx, repositories.OrderFilter{Status: &status, Limit: shipmentPageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < shipmentPageSize {
			return all, nil
		}
	}
}
