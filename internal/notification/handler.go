package notification

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/wa-storefront/internal/domain/order"
	"github.com/example/wa-storefront/internal/email"
)

// Handler consumes the order stream and sends confirmation mail.
type Handler struct {
	emailService *email.Service
}

func NewHandler(emailSvc *email.Service) *Handler {
	return &Handler{emailService: emailSvc}
}

// HandleEvent processes one OrderPlaced record from Kafka.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var placed order.OrderPlaced
	if err := json.Unmarshal(value, &placed); err != nil {
		log.Printf("[Notifier] Failed to unmarshal OrderPlaced record: %v", err)
		return err
	}

	if placed.CustomerEmail == "" {
		log.Printf("[Notifier] Order %s has no customer email, skipping confirmation", placed.OrderID)
		return nil
	}

	items := make([]email.OrderItem, 0, len(placed.Items))
	for _, it := range placed.Items {
		items = append(items, email.OrderItem{
			ProductID: it.ProductID,
			Name:      it.ProductName,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}

	if err := h.emailService.SendOrderConfirmation(placed.CustomerEmail, placed.OrderID, placed.Total, items); err != nil {
		log.Printf("[Notifier] Failed to send confirmation for order %s: %v", placed.OrderID, err)
		return err
	}

	log.Printf("[Notifier] Confirmation sent for order %s to %s", placed.OrderID, placed.CustomerEmail)
	return nil
}
