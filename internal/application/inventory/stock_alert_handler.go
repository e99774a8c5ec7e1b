package inventory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
)

// Alert type discriminators passed to the notification collaborator
const (
	AlertTypeLowStock   = "low_stock"
	AlertTypeOutOfStock = "out_of_stock"
	AlertTypeReorder    = "reorder"
)

// StockAlert is the payload handed to the notification collaborator
type StockAlert struct {
	ProductID       string `json:"product_id"`
	AlertType       string `json:"alert_type"`
	CurrentStock    int    `json:"current_stock"`
	Threshold       int    `json:"threshold,omitempty"`
	ReorderQuantity int    `json:"reorder_quantity,omitempty"`
}

// StockAlertNotifier is the interface for sending stock alerts.
// Implementations can support different channels (in-app, email, SMS, etc.)
type StockAlertNotifier interface {
	// SendAlert sends a stock alert notification
	SendAlert(ctx context.Context, alert StockAlert) error
}

// StockAlertHandler subscribes to stock status events and forwards them
// to the notification collaborator. Dispatch is fire-and-forget: a
// notifier failure is logged and never rolls back or blocks the
// inventory mutation that raised the event.
type StockAlertHandler struct {
	logger   *zap.Logger
	notifier StockAlertNotifier
}

// NewStockAlertHandler creates a new handler for stock status events
func NewStockAlertHandler(logger *zap.Logger) *StockAlertHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockAlertHandler{logger: logger}
}

// WithNotifier sets the notifier for sending alerts
func (h *StockAlertHandler) WithNotifier(notifier StockAlertNotifier) *StockAlertHandler {
	h.notifier = notifier
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *StockAlertHandler) EventTypes() []string {
	return []string{
		inventory.EventTypeLowStock,
		inventory.EventTypeOutOfStock,
		inventory.EventTypeReorderSuggested,
	}
}

// Handle converts a status event into an alert and dispatches it
func (h *StockAlertHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var alert StockAlert

	switch e := event.(type) {
	case *inventory.LowStockEvent:
		alert = StockAlert{
			ProductID:    e.ProductID.String(),
			AlertType:    AlertTypeLowStock,
			CurrentStock: e.CurrentStock,
			Threshold:    e.Threshold,
		}
		h.logger.Warn("stock below threshold detected",
			zap.String("product_id", alert.ProductID),
			zap.Int("current_stock", e.CurrentStock),
			zap.Int("threshold", e.Threshold),
		)
	case *inventory.OutOfStockEvent:
		alert = StockAlert{
			ProductID: e.ProductID.String(),
			AlertType: AlertTypeOutOfStock,
		}
		h.logger.Warn("product out of stock",
			zap.String("product_id", alert.ProductID),
		)
	case *inventory.ReorderSuggestedEvent:
		alert = StockAlert{
			ProductID:       e.ProductID.String(),
			AlertType:       AlertTypeReorder,
			CurrentStock:    e.CurrentStock,
			Threshold:       e.ReorderPoint,
			ReorderQuantity: e.ReorderQuantity,
		}
		h.logger.Info("reorder point reached",
			zap.String("product_id", alert.ProductID),
			zap.Int("current_stock", e.CurrentStock),
			zap.Int("reorder_quantity", e.ReorderQuantity),
		)
	default:
		h.logger.Error("unexpected event type",
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}

	if h.notifier != nil {
		if err := h.notifier.SendAlert(ctx, alert); err != nil {
			h.logger.Error("failed to send stock alert notification",
				zap.String("product_id", alert.ProductID),
				zap.String("alert_type", alert.AlertType),
				zap.Error(err),
			)
			// Notification failure must not fail the event handling
			return nil
		}
		h.logger.Info("stock alert notification sent",
			zap.String("product_id", alert.ProductID),
			zap.String("alert_type", alert.AlertType),
		)
	}

	return nil
}

// Ensure StockAlertHandler implements shared.EventHandler
var _ shared.EventHandler = (*StockAlertHandler)(nil)

// LoggingStockAlertNotifier is a simple notifier that logs alerts.
// This is useful for development and testing.
type LoggingStockAlertNotifier struct {
	logger *zap.Logger
}

// NewLoggingStockAlertNotifier creates a new logging notifier
func NewLoggingStockAlertNotifier(logger *zap.Logger) *LoggingStockAlertNotifier {
	return &LoggingStockAlertNotifier{logger: logger}
}

// SendAlert logs the stock alert
func (n *LoggingStockAlertNotifier) SendAlert(_ context.Context, alert StockAlert) error {
	n.logger.Warn("STOCK ALERT",
		zap.String("type", alert.AlertType),
		zap.String("product_id", alert.ProductID),
		zap.Int("current_stock", alert.CurrentStock),
		zap.Int("threshold", alert.Threshold),
	)
	return nil
}
