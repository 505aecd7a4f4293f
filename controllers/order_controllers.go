package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusbites/campus-bites/models"
	"github.com/campusbites/campus-bites/services"
	"github.com/campusbites/campus-bites/utils"
)

type OrderController struct {
	DB       *gorm.DB
	orders   *services.OrderService
	status   *services.StatusService
	payments *services.PaymentService
	daraja   *services.DarajaService
}

func NewOrderController(db *gorm.DB, daraja *services.DarajaService) *OrderController {
	return &OrderController{
		DB:       db,
		orders:   services.NewOrderService(db),
		status:   services.NewStatusService(db),
		payments: services.NewPaymentService(db),
		daraja:   daraja,
	}
}

// Checkout runs the order placement workflow: push-payment first, then the
// order record. A provider failure means no order row is created. The STK
// callback settles the payment later; order creation does not wait for it.
func (oc *OrderController) Checkout(c *gin.Context) {
	type request struct {
		VendorID   uint                      `json:"vendor_id" binding:"required"`
		TimeSlotID uint                      `json:"time_slot_id" binding:"required"`
		Phone      string                    `json:"phone" binding:"required"`
		Items      []services.OrderItemInput `json:"items" binding:"required,dive"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	phone, err := services.NormalizePhone(req.Phone)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	cart, err := oc.orders.PriceOrder(req.VendorID, req.Items)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	accountRef := "CB-" + uuid.New().String()[:8]
	pushResp, err := oc.daraja.InitiateSTKPush(phone, cart.Total, accountRef, "Campus Bites order")
	if err != nil {
		utils.ErrorLogger.Printf("STK push failed for %s: %v", phone, err)
		utils.RespondError(c, http.StatusBadGateway, errors.New("payment could not be initiated, please try again"))
		return
	}

	payment := models.Payment{
		PhoneNumber:       phone,
		Amount:            cart.Total,
		Status:            models.PaymentStatusPending,
		CheckoutRequestID: pushResp.CheckoutRequestID,
		MerchantRequestID: pushResp.MerchantRequestID,
		AccountReference:  accountRef,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	if err := oc.payments.CreatePayment(&payment); err != nil {
		utils.ErrorLogger.Printf("Failed to record payment for %s: %v", pushResp.CheckoutRequestID, err)
	}

	// Guest checkout: no buyer account, the payer phone identifies the order.
	var buyerID *uint
	guestPhone := phone
	if id, ok := currentUserID(c); ok {
		buyerID = &id
		guestPhone = ""
	}

	order, err := oc.orders.CreateOrder(buyerID, guestPhone, req.TimeSlotID, cart)
	if err != nil {
		// Payment was already initiated; the unlinked pending payment row is
		// left for the monitor to reconcile.
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if payment.ID != 0 {
		if err := oc.payments.LinkOrder(payment.ID, order.ID); err != nil {
			utils.ErrorLogger.Printf("Failed to link payment %d to order %d: %v", payment.ID, order.ID, err)
		}
	}

	utils.RespondJSON(c, http.StatusCreated, "Order placed, confirm the payment prompt on your phone", gin.H{
		"order":               order,
		"checkout_request_id": pushResp.CheckoutRequestID,
		"customer_message":    pushResp.CustomerMessage,
	})
}

// GetOrderByID -> detail of one order with items
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("order_id"))

	var order models.Order
	if err := oc.DB.Preload("OrderItems").Preload("OrderItems.MenuItem").Preload("TimeSlot").First(&order, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

// GetMyOrders -> the authenticated student's order history, newest first
func (oc *OrderController) GetMyOrders(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return
	}

	var orders []models.Order
	if err := oc.DB.Preload("OrderItems").Preload("TimeSlot").
		Where("buyer_id = ?", userID).
		Order("created_at desc").
		Find(&orders).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Your orders", orders)
}

// GetVendorOrders -> the vendor's order queue; ?status= filters, default is
// the active (non-terminal) queue
func (oc *OrderController) GetVendorOrders(c *gin.Context) {
	vendor, ok := oc.callerVendor(c)
	if !ok {
		return
	}

	query := oc.DB.Preload("OrderItems").Preload("OrderItems.MenuItem").Preload("TimeSlot").
		Where("vendor_id = ?", vendor.ID).
		Order("created_at asc")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	} else {
		query = query.Where("status IN ?", models.NonTerminalStatuses)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Vendor orders", orders)
}

/*
========================================
 STATUS TRANSITIONS (vendor actions)
========================================
*/

// AcceptOrder -> pending => processing, stamps time_accepted
func (oc *OrderController) AcceptOrder(c *gin.Context) {
	oc.transition(c, models.OrderStatusProcessing, "Order accepted")
}

// MarkOrderReady -> processing => ready
func (oc *OrderController) MarkOrderReady(c *gin.Context) {
	oc.transition(c, models.OrderStatusReady, "Order ready")
}

// CollectOrder -> ready => collected, stamps time_collected
func (oc *OrderController) CollectOrder(c *gin.Context) {
	oc.transition(c, models.OrderStatusCollected, "Order collected")
}

// RejectOrder -> pending/processing => rejected
func (oc *OrderController) RejectOrder(c *gin.Context) {
	oc.transition(c, models.OrderStatusRejected, "Order rejected")
}

// CancelOrder -> processing => cancelled
func (oc *OrderController) CancelOrder(c *gin.Context) {
	oc.transition(c, models.OrderStatusCancelled, "Order cancelled")
}

// transition checks the caller owns the order's vendor, then delegates to the
// status service. The UI only offers buttons consistent with the current
// status; the server does not re-validate the edge.
func (oc *OrderController) transition(c *gin.Context, target, message string) {
	vendor, ok := oc.callerVendor(c)
	if !ok {
		return
	}

	orderID, _ := strconv.Atoi(c.Param("order_id"))
	var order models.Order
	if err := oc.DB.First(&order, orderID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	if order.VendorID != vendor.ID {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	updated, err := oc.status.UpdateStatus(order.ID, target)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, message, updated)
}

// RateOrder -> buyer rates a collected order 1-5
func (oc *OrderController) RateOrder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return
	}

	orderID, _ := strconv.Atoi(c.Param("order_id"))

	var req struct {
		Rating int `json:"rating" binding:"required,min=1,max=5"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.orders.RateOrder(uint(orderID), userID, req.Rating)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, fmt.Sprintf("Order rated %d/5", req.Rating), order)
}

// callerVendor resolves the vendor profile owned by the authenticated user.
func (oc *OrderController) callerVendor(c *gin.Context) (*models.Vendor, bool) {
	if role := currentRole(c); role != "vendor" && role != "admin" {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return nil, false
	}

	userID, _ := currentUserID(c)
	var vendor models.Vendor
	if err := oc.DB.Where("owner_id = ?", userID).First(&vendor).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, ErrNotVendor)
		return nil, false
	}
	return &vendor, true
}
