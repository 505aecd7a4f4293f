package models

import "time"

// Payment represents one push-payment attempt against the mobile-money
// provider. A row is created as soon as the provider acknowledges the STK
// push; the asynchronous callback settles it later.
type Payment struct {
	ID                uint       `json:"id" gorm:"primaryKey"`
	OrderID           *uint      `json:"order_id" gorm:"index"`
	Order             *Order     `json:"order,omitempty" gorm:"foreignKey:OrderID"`
	PhoneNumber       string     `json:"phone_number" gorm:"type:varchar(20);not null"`
	Amount            float64    `json:"amount" gorm:"type:decimal(10,2);not null"`
	Status            string     `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	CheckoutRequestID string     `json:"checkout_request_id" gorm:"type:varchar(100);index"`
	MerchantRequestID string     `json:"merchant_request_id" gorm:"type:varchar(100)"`
	AccountReference  string     `json:"account_reference" gorm:"type:varchar(50)"`
	ReceiptNumber     string     `json:"receipt_number" gorm:"type:varchar(50)"` // provider receipt from the callback
	ResultDesc        string     `json:"result_desc" gorm:"type:varchar(255)"`
	PaymentTime       *time.Time `json:"payment_time"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

const (
	PaymentStatusPending = "pending"
	PaymentStatusSuccess = "success"
	PaymentStatusFailed  = "failed"
	PaymentStatusExpired = "expired"
)
