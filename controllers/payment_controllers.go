package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/campusbites/campus-bites/models"
	"github.com/campusbites/campus-bites/services"
	"github.com/campusbites/campus-bites/utils"
)

type PaymentController struct {
	DB       *gorm.DB
	payments *services.PaymentService
	daraja   *services.DarajaService
	monitor  *services.PaymentMonitor
}

func NewPaymentController(db *gorm.DB, daraja *services.DarajaService, monitor *services.PaymentMonitor) *PaymentController {
	return &PaymentController{
		DB:       db,
		payments: services.NewPaymentService(db),
		daraja:   daraja,
		monitor:  monitor,
	}
}

// GetPaymentMetrics -> settlement counters for the admin dashboard
func (pc *PaymentController) GetPaymentMetrics(c *gin.Context) {
	utils.RespondJSON(c, http.StatusOK, "Payment metrics", pc.monitor.GetMetrics())
}

// HandleDarajaCallback receives the provider's asynchronous result and
// settles the payment (result code 0 = payer authorized the charge). The
// provider expects a ResultCode/ResultDesc acknowledgement body.
func (pc *PaymentController) HandleDarajaCallback(c *gin.Context) {
	var cb services.STKCallback
	if err := c.ShouldBindJSON(&cb); err != nil {
		utils.ErrorLogger.Printf("Malformed payment callback: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"ResultCode": 1, "ResultDesc": "Malformed payload"})
		return
	}

	stk := cb.Body.StkCallback
	utils.InfoLogger.Printf("Payment callback: checkout_request_id=%s result=%d (%s)",
		stk.CheckoutRequestID, stk.ResultCode, stk.ResultDesc)

	payment, err := pc.payments.SettlePayment(stk.CheckoutRequestID, stk.ResultCode, stk.ResultDesc, cb.ReceiptNumber())
	if err != nil {
		utils.ErrorLogger.Printf("Failed to settle payment for %s: %v", stk.CheckoutRequestID, err)
		// Acknowledge anyway: the provider retries on non-zero codes and the
		// monitor reconciles missed settlements.
		c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
		return
	}

	utils.InfoLogger.Printf("Payment %d settled as %s", payment.ID, payment.Status)
	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}

// GetPaymentByOrder -> the payment attached to one order
func (pc *PaymentController) GetPaymentByOrder(c *gin.Context) {
	orderID, _ := strconv.Atoi(c.Param("order_id"))

	payment, err := pc.payments.GetPaymentByOrderID(uint(orderID))
	if err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment detail", payment)
}

// CheckPaymentStatus queries the provider for a pending payment's outcome
// and settles it if the provider has decided.
func (pc *PaymentController) CheckPaymentStatus(c *gin.Context) {
	orderID, _ := strconv.Atoi(c.Param("order_id"))

	payment, err := pc.payments.GetPaymentByOrderID(uint(orderID))
	if err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	if payment.Status != models.PaymentStatusPending {
		utils.RespondJSON(c, http.StatusOK, "Payment status", payment)
		return
	}

	status, err := pc.daraja.QuerySTKStatus(payment.CheckoutRequestID)
	if err != nil {
		utils.RespondError(c, http.StatusBadGateway, err)
		return
	}

	switch status {
	case models.PaymentStatusSuccess:
		payment, err = pc.payments.SettlePayment(payment.CheckoutRequestID, 0, "Settled via status check", "")
	case models.PaymentStatusFailed:
		payment, err = pc.payments.SettlePayment(payment.CheckoutRequestID, 1, "Failed via status check", "")
	}
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment status", payment)
}
