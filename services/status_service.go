package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/campusbites/campus-bites/models"
	"github.com/campusbites/campus-bites/realtime"
	"github.com/campusbites/campus-bites/utils"
)

// StatusService applies vendor-initiated order status transitions.
type StatusService struct {
	db *gorm.DB
}

func NewStatusService(db *gorm.DB) *StatusService {
	return &StatusService{db: db}
}

// UpdateStatus writes the target status onto an order, stamps the
// transition-specific timestamp, and appends exactly one notification to the
// buyer. The order/vendor lookups abort the whole operation before any
// mutation; a failed notification write is logged and lost, the status change
// stays authoritative.
//
// Edges are not validated here: the sanctioned handlers only offer the
// transitions consistent with the current status.
func (s *StatusService) UpdateStatus(orderID uint, target string) (*models.Order, error) {
	var order models.Order
	if err := s.db.First(&order, orderID).Error; err != nil {
		return nil, fmt.Errorf("order not found")
	}

	var vendor models.Vendor
	if err := s.db.First(&vendor, order.VendorID).Error; err != nil {
		return nil, fmt.Errorf("vendor not found for order %d", orderID)
	}

	now := time.Now()
	order.Status = target
	order.UpdatedAt = now
	switch target {
	case models.OrderStatusProcessing:
		order.TimeAccepted = &now
	case models.OrderStatusCollected:
		order.TimeCollected = &now
	}

	if err := s.db.Save(&order).Error; err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	s.notifyBuyer(&order, vendor, target)

	realtime.BroadcastOrderUpdate(order)

	return &order, nil
}

func (s *StatusService) notifyBuyer(order *models.Order, vendor models.Vendor, target string) {
	if order.BuyerID == nil {
		// Guest checkout: there is no account to address the message to.
		utils.InfoLogger.Printf("Order %d is a guest order, skipping status notification", order.ID)
		return
	}

	notif := models.Notification{
		SenderID:    &vendor.OwnerID,
		RecipientID: *order.BuyerID,
		Message:     statusMessage(vendor.Name, order.ID, target),
		CreatedAt:   time.Now(),
	}
	if err := s.db.Create(&notif).Error; err != nil {
		// Best-effort: the status write is authoritative, the notification
		// is simply lost.
		utils.ErrorLogger.Printf("Failed to write status notification for order %d: %v", order.ID, err)
		return
	}
	realtime.SendNotification(notif)
}

func statusMessage(vendorName string, orderID uint, target string) string {
	switch target {
	case models.OrderStatusProcessing:
		return fmt.Sprintf("%s accepted your order #%d and is preparing it", vendorName, orderID)
	case models.OrderStatusReady:
		return fmt.Sprintf("Your order #%d from %s is ready for pickup", orderID, vendorName)
	case models.OrderStatusCollected:
		return fmt.Sprintf("Order #%d from %s marked as collected. Enjoy!", orderID, vendorName)
	case models.OrderStatusRejected:
		return fmt.Sprintf("%s rejected your order #%d", vendorName, orderID)
	case models.OrderStatusCancelled:
		return fmt.Sprintf("Your order #%d from %s was cancelled", orderID, vendorName)
	default:
		return fmt.Sprintf("Order #%d from %s is now %s", orderID, vendorName, target)
	}
}
