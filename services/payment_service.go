package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/campusbites/campus-bites/models"
	"github.com/campusbites/campus-bites/realtime"
	"github.com/campusbites/campus-bites/utils"
)

// paymentExpiry is how long a pending payment may wait for its callback
// before the timeout checker writes it off.
const paymentExpiry = 2 * time.Hour

// PaymentService persists and settles push-payment records.
type PaymentService struct {
	db *gorm.DB
}

func NewPaymentService(db *gorm.DB) *PaymentService {
	return &PaymentService{db: db}
}

func (s *PaymentService) CreatePayment(payment *models.Payment) error {
	if err := s.db.Create(payment).Error; err != nil {
		return err
	}
	realtime.BroadcastPaymentPending(*payment)
	return nil
}

func (s *PaymentService) GetPaymentByOrderID(orderID uint) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.Where("order_id = ?", orderID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *PaymentService) GetPaymentByCheckoutRequestID(checkoutRequestID string) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.Where("checkout_request_id = ?", checkoutRequestID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// SettlePayment applies the provider's asynchronous result: result code 0
// settles the payment, anything else fails it and cancels the linked order.
// Payment and order move together in one transaction.
func (s *PaymentService) SettlePayment(checkoutRequestID string, resultCode int, resultDesc, receiptNumber string) (*models.Payment, error) {
	tx := s.db.Begin()

	var payment models.Payment
	if err := tx.Where("checkout_request_id = ?", checkoutRequestID).First(&payment).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("payment not found for checkout request %s: %w", checkoutRequestID, err)
	}

	if payment.Status != models.PaymentStatusPending {
		// Already settled: duplicate callback deliveries are no-ops.
		tx.Rollback()
		return &payment, nil
	}

	now := time.Now()
	payment.ResultDesc = resultDesc
	payment.UpdatedAt = now
	if resultCode == 0 {
		payment.Status = models.PaymentStatusSuccess
		payment.ReceiptNumber = receiptNumber
		payment.PaymentTime = &now
	} else {
		payment.Status = models.PaymentStatusFailed
	}

	if err := tx.Save(&payment).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	// A failed charge cancels the order placed against it.
	if resultCode != 0 && payment.OrderID != nil {
		var order models.Order
		if err := tx.First(&order, *payment.OrderID).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to find order %d: %w", *payment.OrderID, err)
		}
		if !models.IsTerminal(order.Status) {
			order.Status = models.OrderStatusCancelled
			order.UpdatedAt = now
			if err := tx.Save(&order).Error; err != nil {
				tx.Rollback()
				return nil, fmt.Errorf("failed to cancel order %d: %w", order.ID, err)
			}
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}

	if payment.Status == models.PaymentStatusSuccess {
		realtime.BroadcastPaymentSuccess(payment)
	} else {
		realtime.BroadcastPaymentUpdate(payment)
	}

	return &payment, nil
}

// LinkOrder attaches a created order to the payment row opened at STK
// acceptance time.
func (s *PaymentService) LinkOrder(paymentID, orderID uint) error {
	return s.db.Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Update("order_id", orderID).Error
}

// StartTimeoutChecker runs the expiry sweep in the background.
func (s *PaymentService) StartTimeoutChecker() {
	go s.paymentTimeoutChecker()
	utils.InfoLogger.Println("Payment timeout checker started")
}

func (s *PaymentService) paymentTimeoutChecker() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.CheckExpiredPayments()
	}
}

// CheckExpiredPayments writes off pending payments whose callback never
// arrived within the expiry window, cancelling their orders.
func (s *PaymentService) CheckExpiredPayments() {
	var payments []models.Payment
	cutoff := time.Now().Add(-paymentExpiry)
	if err := s.db.Where("status = ? AND created_at < ?", models.PaymentStatusPending, cutoff).Find(&payments).Error; err != nil {
		utils.ErrorLogger.Printf("Error checking expired payments: %v", err)
		return
	}

	for i := range payments {
		payment := &payments[i]
		payment.Status = models.PaymentStatusExpired
		payment.UpdatedAt = time.Now()
		if err := s.db.Save(payment).Error; err != nil {
			utils.ErrorLogger.Printf("Error expiring payment %d: %v", payment.ID, err)
			continue
		}

		if payment.OrderID != nil {
			var order models.Order
			if err := s.db.First(&order, *payment.OrderID).Error; err != nil {
				utils.ErrorLogger.Printf("Error finding order %d for expired payment: %v", *payment.OrderID, err)
				continue
			}
			if !models.IsTerminal(order.Status) {
				order.Status = models.OrderStatusCancelled
				order.UpdatedAt = time.Now()
				if err := s.db.Save(&order).Error; err != nil {
					utils.ErrorLogger.Printf("Error cancelling order %d for expired payment: %v", order.ID, err)
					continue
				}
			}
		}

		realtime.BroadcastPaymentUpdate(*payment)
		utils.InfoLogger.Printf("Payment %d expired", payment.ID)
	}
}
