package Controllers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/campusbites/campus-bites/controllers"
	"github.com/campusbites/campus-bites/middlewares"
	"github.com/campusbites/campus-bites/models"
	"github.com/campusbites/campus-bites/services"
	"github.com/campusbites/campus-bites/utils"
)

func callbackPayload(checkoutRequestID string, resultCode int, receipt string) []byte {
	stk := map[string]interface{}{
		"MerchantRequestID": "merchant-1",
		"CheckoutRequestID": checkoutRequestID,
		"ResultCode":        resultCode,
		"ResultDesc":        "stub result",
	}
	if receipt != "" {
		stk["CallbackMetadata"] = map[string]interface{}{
			"Item": []map[string]interface{}{
				{"Name": "MpesaReceiptNumber", "Value": receipt},
			},
		}
	}
	body, _ := json.Marshal(map[string]interface{}{"Body": map[string]interface{}{"stkCallback": stk}})
	return body
}

func postCallback(r *gin.Engine, payload []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/payments/daraja/callback", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func callbackRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	daraja := darajaFor("http://127.0.0.1:1")
	paymentCtrl := controllers.NewPaymentController(db, daraja, services.NewPaymentMonitor(db, daraja))
	r := gin.New()
	r.POST("/payments/daraja/callback", paymentCtrl.HandleDarajaCallback)
	return r
}

func TestCallbackSettlesPayment(t *testing.T) {
	utils.InitLogger()

	db := openTestDB(t, "callback_success")
	vendor, _, slot := seedVendorWithMenu(t, db)

	order := models.Order{VendorID: vendor.ID, TimeSlotID: slot.ID, Status: models.OrderStatusPending, TotalAmount: 380.00}
	assert.NoError(t, db.Create(&order).Error)
	payment := models.Payment{
		OrderID:           &order.ID,
		PhoneNumber:       "254712345678",
		Amount:            380.00,
		Status:            models.PaymentStatusPending,
		CheckoutRequestID: "ws_CO_cb_success",
	}
	assert.NoError(t, db.Create(&payment).Error)

	r := callbackRouter(db)
	w := postCallback(r, callbackPayload("ws_CO_cb_success", 0, "RBK12XYZ34"))
	assert.Equal(t, http.StatusOK, w.Code)

	var ack map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.EqualValues(t, 0, ack["ResultCode"])

	assert.NoError(t, db.First(&payment, payment.ID).Error)
	assert.Equal(t, models.PaymentStatusSuccess, payment.Status)
	assert.Equal(t, "RBK12XYZ34", payment.ReceiptNumber)
	assert.NotNil(t, payment.PaymentTime)

	// A successful charge leaves the order alone.
	assert.NoError(t, db.First(&order, order.ID).Error)
	assert.Equal(t, models.OrderStatusPending, order.Status)
}

func TestCallbackFailureCancelsOrder(t *testing.T) {
	utils.InitLogger()

	db := openTestDB(t, "callback_failed")
	vendor, _, slot := seedVendorWithMenu(t, db)

	order := models.Order{VendorID: vendor.ID, TimeSlotID: slot.ID, Status: models.OrderStatusPending, TotalAmount: 200.00}
	assert.NoError(t, db.Create(&order).Error)
	payment := models.Payment{
		OrderID:           &order.ID,
		PhoneNumber:       "254712345678",
		Amount:            200.00,
		Status:            models.PaymentStatusPending,
		CheckoutRequestID: "ws_CO_cb_failed",
	}
	assert.NoError(t, db.Create(&payment).Error)

	r := callbackRouter(db)
	// 1032 is the payer-cancelled result.
	w := postCallback(r, callbackPayload("ws_CO_cb_failed", 1032, ""))
	assert.Equal(t, http.StatusOK, w.Code)

	assert.NoError(t, db.First(&payment, payment.ID).Error)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)

	assert.NoError(t, db.First(&order, order.ID).Error)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)
}

func TestDuplicateCallbackIsNoOp(t *testing.T) {
	utils.InitLogger()

	db := openTestDB(t, "callback_dup")

	payment := models.Payment{
		PhoneNumber:       "254712345678",
		Amount:            150.00,
		Status:            models.PaymentStatusPending,
		CheckoutRequestID: "ws_CO_cb_dup",
	}
	assert.NoError(t, db.Create(&payment).Error)

	r := callbackRouter(db)
	assert.Equal(t, http.StatusOK, postCallback(r, callbackPayload("ws_CO_cb_dup", 0, "RBK11AAA11")).Code)

	// A replayed failure callback must not flip a settled payment.
	assert.Equal(t, http.StatusOK, postCallback(r, callbackPayload("ws_CO_cb_dup", 1032, "")).Code)

	assert.NoError(t, db.First(&payment, payment.ID).Error)
	assert.Equal(t, models.PaymentStatusSuccess, payment.Status)
	assert.Equal(t, "RBK11AAA11", payment.ReceiptNumber)
}

func TestPaymentMetricsEndpoint(t *testing.T) {
	utils.InitLogger()
	gin.SetMode(gin.TestMode)

	db := openTestDB(t, "metrics")
	daraja := darajaFor("http://127.0.0.1:1")
	paymentCtrl := controllers.NewPaymentController(db, daraja, services.NewPaymentMonitor(db, daraja))

	r := gin.New()
	admin := r.Group("/admin", asUser(1, "admin"), middlewares.RequireRole("admin"))
	admin.GET("/payments/metrics", paymentCtrl.GetPaymentMetrics)

	req := httptest.NewRequest(http.MethodGet, "/admin/payments/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "TotalTransactions")

	// The dashboard is admin-only.
	r2 := gin.New()
	admin2 := r2.Group("/admin", asUser(2, "student"), middlewares.RequireRole("admin"))
	admin2.GET("/payments/metrics", paymentCtrl.GetPaymentMetrics)

	w2 := httptest.NewRecorder()
	r2.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/admin/payments/metrics", nil))
	assert.Equal(t, http.StatusForbidden, w2.Code)
}

func TestCallbackForUnknownPaymentStillAcks(t *testing.T) {
	utils.InitLogger()

	db := openTestDB(t, "callback_unknown")
	r := callbackRouter(db)

	w := postCallback(r, callbackPayload("ws_CO_missing", 0, "RBK99ZZZ99"))
	assert.Equal(t, http.StatusOK, w.Code)

	var ack map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.EqualValues(t, 0, ack["ResultCode"], "the provider must never see a retryable error")
}
