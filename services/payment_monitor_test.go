package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/campusbites/campus-bites/models"
	"github.com/campusbites/campus-bites/utils"
)

func openMonitorDB(t *testing.T, name string) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&models.Order{}, &models.Payment{}))
	return db
}

// newQueryStub answers the OAuth handshake and the push-status query.
func newQueryStub(t *testing.T, resultCode string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			json.NewEncoder(w).Encode(map[string]string{
				"access_token": "stub-token",
				"expires_in":   "3599",
			})
		case "/mpesa/stkpushquery/v1/query":
			assert.Equal(t, "Bearer stub-token", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(map[string]string{
				"ResponseCode": "0",
				"ResultCode":   resultCode,
				"ResultDesc":   "stub result",
			})
		default:
			t.Errorf("unexpected provider call: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestSweepStalePendingsEnqueuesOverduePayments(t *testing.T) {
	utils.InitLogger()
	db := openMonitorDB(t, "monitor_sweep")

	stale := models.Payment{
		PhoneNumber:       "254712345678",
		Amount:            150.00,
		Status:            models.PaymentStatusPending,
		CheckoutRequestID: "ws_CO_stale",
		CreatedAt:         time.Now().Add(-time.Hour),
	}
	fresh := models.Payment{
		PhoneNumber:       "254712345678",
		Amount:            80.00,
		Status:            models.PaymentStatusPending,
		CheckoutRequestID: "ws_CO_fresh",
		CreatedAt:         time.Now(),
	}
	settled := models.Payment{
		PhoneNumber:       "254712345678",
		Amount:            200.00,
		Status:            models.PaymentStatusSuccess,
		CheckoutRequestID: "ws_CO_settled",
		CreatedAt:         time.Now().Add(-2 * time.Hour),
	}
	assert.NoError(t, db.Create(&stale).Error)
	assert.NoError(t, db.Create(&fresh).Error)
	assert.NoError(t, db.Create(&settled).Error)

	pm := NewPaymentMonitor(db, NewDarajaService(testConfig("")))
	pm.sweepStalePendings()

	assert.Equal(t, []uint{stale.ID}, pm.retryQueue,
		"only the overdue pending payment should be queued")

	// A second sweep must not double-enqueue.
	pm.sweepStalePendings()
	assert.Equal(t, []uint{stale.ID}, pm.retryQueue)
}

func TestReconcilePaymentSettlesViaStatusQuery(t *testing.T) {
	utils.InitLogger()
	db := openMonitorDB(t, "monitor_reconcile_success")

	payment := models.Payment{
		PhoneNumber:       "254712345678",
		Amount:            120.00,
		Status:            models.PaymentStatusPending,
		CheckoutRequestID: "ws_CO_reconcile_ok",
		CreatedAt:         time.Now().Add(-time.Hour),
	}
	assert.NoError(t, db.Create(&payment).Error)

	provider := newQueryStub(t, "0")
	defer provider.Close()

	pm := NewPaymentMonitor(db, NewDarajaService(testConfig(provider.URL)))
	pm.reconcilePayment(payment.ID)

	assert.NoError(t, db.First(&payment, payment.ID).Error)
	assert.Equal(t, models.PaymentStatusSuccess, payment.Status)

	metrics := pm.GetMetrics()
	assert.EqualValues(t, 1, metrics.TotalTransactions)
	assert.EqualValues(t, 1, metrics.SuccessfulPayments)
	assert.Empty(t, pm.retryQueue, "settled payments leave the queue")
}

func TestReconcilePaymentFailureCancelsLinkedOrder(t *testing.T) {
	utils.InitLogger()
	db := openMonitorDB(t, "monitor_reconcile_failed")

	order := models.Order{VendorID: 1, TimeSlotID: 1, Status: models.OrderStatusPending, TotalAmount: 120.00}
	assert.NoError(t, db.Create(&order).Error)
	payment := models.Payment{
		OrderID:           &order.ID,
		PhoneNumber:       "254712345678",
		Amount:            120.00,
		Status:            models.PaymentStatusPending,
		CheckoutRequestID: "ws_CO_reconcile_fail",
		CreatedAt:         time.Now().Add(-time.Hour),
	}
	assert.NoError(t, db.Create(&payment).Error)

	provider := newQueryStub(t, "1032")
	defer provider.Close()

	pm := NewPaymentMonitor(db, NewDarajaService(testConfig(provider.URL)))
	pm.reconcilePayment(payment.ID)

	assert.NoError(t, db.First(&payment, payment.ID).Error)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)

	assert.NoError(t, db.First(&order, order.ID).Error)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)

	metrics := pm.GetMetrics()
	assert.EqualValues(t, 1, metrics.TotalTransactions)
	assert.EqualValues(t, 1, metrics.FailedPayments)
}

func TestReconcilePaymentStillPendingRequeues(t *testing.T) {
	utils.InitLogger()
	db := openMonitorDB(t, "monitor_reconcile_pending")

	payment := models.Payment{
		PhoneNumber:       "254712345678",
		Amount:            60.00,
		Status:            models.PaymentStatusPending,
		CheckoutRequestID: "ws_CO_reconcile_wait",
		CreatedAt:         time.Now().Add(-time.Hour),
	}
	assert.NoError(t, db.Create(&payment).Error)

	// The provider answers "still processing" with the documented error code.
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "stub-token", "expires_in": "3599"})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"errorCode":    "500.001.1001",
			"errorMessage": "The transaction is being processed",
		})
	}))
	defer provider.Close()

	pm := NewPaymentMonitor(db, NewDarajaService(testConfig(provider.URL)))
	pm.reconcilePayment(payment.ID)

	assert.NoError(t, db.First(&payment, payment.ID).Error)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Equal(t, []uint{payment.ID}, pm.retryQueue, "undecided payments go back on the queue")
}
