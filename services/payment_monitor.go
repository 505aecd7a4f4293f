package services

import (
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/campusbites/campus-bites/models"
	"github.com/campusbites/campus-bites/utils"
)

// PaymentMetrics tracks settlement outcomes.
type PaymentMetrics struct {
	TotalTransactions  int64
	SuccessfulPayments int64
	FailedPayments     int64
	PendingPayments    int64
}

// PaymentMonitor reconciles payments whose callback went missing by querying
// the provider directly.
type PaymentMonitor struct {
	db            *gorm.DB
	daraja        *DarajaService
	payments      *PaymentService
	metrics       PaymentMetrics
	retryQueue    []uint
	retryInterval time.Duration
	mutex         sync.Mutex
}

func NewPaymentMonitor(db *gorm.DB, daraja *DarajaService) *PaymentMonitor {
	return &PaymentMonitor{
		db:            db,
		daraja:        daraja,
		payments:      NewPaymentService(db),
		retryQueue:    make([]uint, 0),
		retryInterval: 5 * time.Minute,
	}
}

// Start launches the retry loop.
func (pm *PaymentMonitor) Start() {
	go pm.processRetryQueue()
	utils.InfoLogger.Println("Payment monitor started")
}

// AddToRetryQueue schedules a payment for provider-side reconciliation.
func (pm *PaymentMonitor) AddToRetryQueue(paymentID uint) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	for _, id := range pm.retryQueue {
		if id == paymentID {
			return
		}
	}
	pm.retryQueue = append(pm.retryQueue, paymentID)
	utils.InfoLogger.Printf("Added payment %d to retry queue", paymentID)
}

// stalePaymentAge is how long a payment may sit pending before the monitor
// stops waiting for the callback and asks the provider directly.
const stalePaymentAge = 10 * time.Minute

func (pm *PaymentMonitor) processRetryQueue() {
	ticker := time.NewTicker(pm.retryInterval)
	defer ticker.Stop()

	for range ticker.C {
		pm.sweepStalePendings()

		pm.mutex.Lock()
		if len(pm.retryQueue) == 0 {
			pm.mutex.Unlock()
			continue
		}
		queue := make([]uint, len(pm.retryQueue))
		copy(queue, pm.retryQueue)
		pm.retryQueue = pm.retryQueue[:0]
		pm.mutex.Unlock()

		utils.InfoLogger.Printf("Processing retry queue with %d payments", len(queue))
		for _, paymentID := range queue {
			pm.reconcilePayment(paymentID)
		}
	}
}

// sweepStalePendings enqueues every pending payment whose callback is
// overdue, so the next drain reconciles it against the provider.
func (pm *PaymentMonitor) sweepStalePendings() {
	var ids []uint
	cutoff := time.Now().Add(-stalePaymentAge)
	if err := pm.db.Model(&models.Payment{}).
		Where("status = ? AND created_at < ?", models.PaymentStatusPending, cutoff).
		Pluck("id", &ids).Error; err != nil {
		utils.ErrorLogger.Printf("Error sweeping stale payments: %v", err)
		return
	}
	for _, id := range ids {
		pm.AddToRetryQueue(id)
	}
}

// reconcilePayment pulls the provider's view of a pending payment and settles
// it if the provider has already decided the outcome.
func (pm *PaymentMonitor) reconcilePayment(paymentID uint) {
	var payment models.Payment
	if err := pm.db.First(&payment, paymentID).Error; err != nil {
		utils.ErrorLogger.Printf("Error finding payment %d for retry: %v", paymentID, err)
		return
	}

	if payment.Status != models.PaymentStatusPending {
		return
	}

	status, err := pm.daraja.QuerySTKStatus(payment.CheckoutRequestID)
	if err != nil {
		utils.ErrorLogger.Printf("Error querying payment %d status: %v", paymentID, err)
		pm.AddToRetryQueue(paymentID)
		return
	}

	switch status {
	case models.PaymentStatusSuccess:
		if _, err := pm.payments.SettlePayment(payment.CheckoutRequestID, 0, "Reconciled via status query", ""); err != nil {
			utils.ErrorLogger.Printf("Error settling reconciled payment %d: %v", paymentID, err)
			pm.AddToRetryQueue(paymentID)
			return
		}
	case models.PaymentStatusFailed:
		if _, err := pm.payments.SettlePayment(payment.CheckoutRequestID, 1, "Reconciled via status query", ""); err != nil {
			utils.ErrorLogger.Printf("Error failing reconciled payment %d: %v", paymentID, err)
			pm.AddToRetryQueue(paymentID)
			return
		}
	default:
		// Still pending provider-side; try again next tick.
		pm.AddToRetryQueue(paymentID)
		return
	}

	pm.updateMetrics(status)
	utils.InfoLogger.Printf("Reconciled payment %d to %s", paymentID, status)
}

func (pm *PaymentMonitor) updateMetrics(status string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	pm.metrics.TotalTransactions++
	switch status {
	case models.PaymentStatusSuccess:
		pm.metrics.SuccessfulPayments++
	case models.PaymentStatusFailed, models.PaymentStatusExpired:
		pm.metrics.FailedPayments++
	case models.PaymentStatusPending:
		pm.metrics.PendingPayments++
	}
}

// GetMetrics returns a copy of the current counters.
func (pm *PaymentMonitor) GetMetrics() PaymentMetrics {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	return pm.metrics
}
