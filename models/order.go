package models

import "time"

type Order struct {
	ID      uint  `gorm:"primaryKey" json:"id"`
	BuyerID *uint `gorm:"index" json:"buyer_id,omitempty"`
	Buyer   *User `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
	// GuestPhone identifies a guest checkout when BuyerID is nil.
	GuestPhone    string      `gorm:"type:varchar(20)" json:"guest_phone,omitempty"`
	VendorID      uint        `gorm:"not null;index" json:"vendor_id"`
	Vendor        Vendor      `gorm:"foreignKey:VendorID" json:"vendor"`
	Status        string      `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	TotalAmount   float64     `gorm:"type:decimal(10,2);not null;default:0.00" json:"total_amount"`
	TimeSlotID    uint        `gorm:"not null;index" json:"time_slot_id"`
	TimeSlot      TimeSlot    `gorm:"foreignKey:TimeSlotID" json:"time_slot"`
	Rating        *int        `json:"rating,omitempty"`
	TimeAccepted  *time.Time  `json:"time_accepted,omitempty"`
	TimeCollected *time.Time  `json:"time_collected,omitempty"`
	CreatedAt     time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"not null" json:"updated_at"`
	OrderItems    []OrderItem `gorm:"foreignKey:OrderID" json:"order_items"`
}

// Order statuses. Transitions run pending -> processing -> ready -> collected;
// rejected and cancelled are terminal edges out of pending/processing.
// "invalid" marks a header whose item inserts failed (see order service).
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusReady      = "ready"
	OrderStatusCollected  = "collected"
	OrderStatusRejected   = "rejected"
	OrderStatusCancelled  = "cancelled"
	OrderStatusInvalid    = "invalid"
)

// NonTerminalStatuses are the statuses that still occupy a pickup slot.
var NonTerminalStatuses = []string{OrderStatusPending, OrderStatusProcessing, OrderStatusReady}

// IsTerminal reports whether a status never transitions again.
func IsTerminal(status string) bool {
	switch status {
	case OrderStatusCollected, OrderStatusRejected, OrderStatusCancelled, OrderStatusInvalid:
		return true
	}
	return false
}
