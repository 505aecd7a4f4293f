package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/campusbites/campus-bites/models"
	"github.com/campusbites/campus-bites/realtime"
	"github.com/campusbites/campus-bites/utils"
)

// OrderItemInput is one (menu item, quantity) pair of a checkout request.
type OrderItemInput struct {
	MenuItemID uint `json:"menu_item_id" binding:"required"`
	Quantity   int  `json:"quantity" binding:"required,min=1"`
}

// OrderService persists order headers and their line items.
type OrderService struct {
	db *gorm.DB
}

func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{db: db}
}

// PricedCart is the server-priced snapshot of a checkout request. The same
// snapshot drives both the charge and the stored order, so a menu edit
// between the two can never make them diverge.
type PricedCart struct {
	VendorID uint
	Items    []OrderItemInput
	Total    float64
	MenuByID map[uint]models.MenuItem
}

// PriceOrder computes the total for a set of items from current menu prices.
// It validates that every item exists, belongs to the vendor and is in stock.
// The client-side cart total is never trusted.
func (s *OrderService) PriceOrder(vendorID uint, items []OrderItemInput) (*PricedCart, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("order must contain at least one item")
	}

	menuByID := make(map[uint]models.MenuItem, len(items))
	var total float64
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("quantity must be positive for menu item %d", item.MenuItemID)
		}
		var menu models.MenuItem
		if err := s.db.First(&menu, item.MenuItemID).Error; err != nil {
			return nil, fmt.Errorf("menu item %d not found", item.MenuItemID)
		}
		if menu.VendorID != vendorID {
			return nil, fmt.Errorf("menu item %d does not belong to this vendor", item.MenuItemID)
		}
		if !menu.InStock {
			return nil, fmt.Errorf("%s is out of stock", menu.Name)
		}
		menuByID[menu.ID] = menu
		total += float64(item.Quantity) * menu.Price
	}

	return &PricedCart{
		VendorID: vendorID,
		Items:    items,
		Total:    total,
		MenuByID: menuByID,
	}, nil
}

// CreateOrder inserts the order header with status pending, then one
// OrderItem per pair, using the prices captured in the cart at pricing time.
// If an item insert fails after the header succeeded, the header is marked
// invalid rather than being left as a silent orphan. The vendor notification
// at the end is best-effort.
func (s *OrderService) CreateOrder(buyerID *uint, guestPhone string, slotID uint, cart *PricedCart) (*models.Order, error) {
	var vendor models.Vendor
	if err := s.db.First(&vendor, cart.VendorID).Error; err != nil {
		return nil, fmt.Errorf("vendor not found")
	}
	if !vendor.Open {
		return nil, fmt.Errorf("%s is currently closed", vendor.Name)
	}

	var slot models.TimeSlot
	if err := s.db.First(&slot, slotID).Error; err != nil {
		return nil, fmt.Errorf("timeslot not found")
	}

	order := models.Order{
		BuyerID:     buyerID,
		GuestPhone:  guestPhone,
		VendorID:    cart.VendorID,
		TimeSlotID:  slotID,
		Status:      models.OrderStatusPending,
		TotalAmount: cart.Total,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.db.Create(&order).Error; err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	for _, item := range cart.Items {
		menu := cart.MenuByID[item.MenuItemID]
		orderItem := models.OrderItem{
			OrderID:    order.ID,
			MenuItemID: menu.ID,
			Quantity:   item.Quantity,
			Price:      menu.Price,
			CreatedAt:  time.Now(),
			UpdatedAt:  time.Now(),
		}
		if err := s.db.Create(&orderItem).Error; err != nil {
			// Compensation: the header is already committed, so mark it
			// invalid instead of leaving an orphan with missing items.
			s.invalidateOrder(&order)
			return nil, fmt.Errorf("failed to create order items: %w", err)
		}
	}

	// Vendor notification is best-effort: losing it never fails the order.
	notif := models.Notification{
		SenderID:    buyerID,
		RecipientID: vendor.OwnerID,
		Message:     fmt.Sprintf("New order #%d for %s (%s)", order.ID, vendor.Name, utils.FormatCurrencyKES(cart.Total)),
		CreatedAt:   time.Now(),
	}
	if err := s.db.Create(&notif).Error; err != nil {
		utils.ErrorLogger.Printf("Failed to write order notification for order %d: %v", order.ID, err)
	} else {
		realtime.SendNotification(notif)
	}

	if err := s.db.Preload("OrderItems").Preload("TimeSlot").First(&order, order.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload order: %w", err)
	}

	realtime.BroadcastOrderCreated(order)

	return &order, nil
}

func (s *OrderService) invalidateOrder(order *models.Order) {
	order.Status = models.OrderStatusInvalid
	order.UpdatedAt = time.Now()
	if err := s.db.Save(order).Error; err != nil {
		utils.ErrorLogger.Printf("Failed to invalidate order %d: %v", order.ID, err)
	}
}

// RateOrder records a buyer's 1-5 rating on a collected order, once.
func (s *OrderService) RateOrder(orderID uint, buyerID uint, rating int) (*models.Order, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("rating must be between 1 and 5")
	}

	var order models.Order
	if err := s.db.First(&order, orderID).Error; err != nil {
		return nil, fmt.Errorf("order not found")
	}
	if order.BuyerID == nil || *order.BuyerID != buyerID {
		return nil, fmt.Errorf("order does not belong to this buyer")
	}
	if order.Status != models.OrderStatusCollected {
		return nil, fmt.Errorf("only collected orders can be rated")
	}
	if order.Rating != nil {
		return nil, fmt.Errorf("order already rated")
	}

	order.Rating = &rating
	order.UpdatedAt = time.Now()
	if err := s.db.Save(&order).Error; err != nil {
		return nil, fmt.Errorf("failed to save rating: %w", err)
	}
	return &order, nil
}
