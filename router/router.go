package router

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/campusbites/campus-bites/controllers"
	"github.com/campusbites/campus-bites/feed"
	"github.com/campusbites/campus-bites/middlewares"
	"github.com/campusbites/campus-bites/services"
)

func SetupRouter(db *gorm.DB, daraja *services.DarajaService, feeds *feed.Manager, paymentMonitor *services.PaymentMonitor) *gin.Engine {
	r := gin.Default()

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.LoggerMiddleware())

	userCtrl := controllers.NewUserController(db)
	vendorCtrl := controllers.NewVendorController(db)
	menuCtrl := controllers.NewMenuController(db)
	orderCtrl := controllers.NewOrderController(db, daraja)
	paymentCtrl := controllers.NewPaymentController(db, daraja, paymentMonitor)
	notificationCtrl := controllers.NewNotificationController(db, feeds)
	timeSlotCtrl := controllers.NewTimeSlotController(db)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	// Browsing needs no account.
	r.GET("/vendors", vendorCtrl.GetAllVendors)
	r.GET("/vendors/:vendor_id", vendorCtrl.GetVendorByID)
	r.GET("/vendors/:vendor_id/menu", menuCtrl.GetMenuByVendor)
	r.GET("/timeslots", timeSlotCtrl.GetAllTimeSlots)
	r.GET("/timeslots/available", timeSlotCtrl.GetAvailableTimeSlots)

	// Checkout works for guests too; a valid token attaches the order
	// to the buyer account.
	r.POST("/checkout", middlewares.OptionalAuthMiddleware(), orderCtrl.Checkout)

	// Payment provider callback. Must stay unauthenticated.
	r.POST("/payments/daraja/callback", paymentCtrl.HandleDarajaCallback)

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := r.Group("/")
	auth.Use(middlewares.AuthMiddleware())
	{
		auth.GET("/profile", userCtrl.GetProfile)
		auth.POST("/logout", userCtrl.Logout)

		auth.GET("/orders", orderCtrl.GetMyOrders)
		auth.GET("/orders/:order_id", orderCtrl.GetOrderByID)
		auth.POST("/orders/:order_id/rate", orderCtrl.RateOrder)

		auth.GET("/orders/:order_id/payment", paymentCtrl.GetPaymentByOrder)
		auth.GET("/orders/:order_id/payment/check", paymentCtrl.CheckPaymentStatus)

		auth.GET("/notifications", notificationCtrl.GetMyNotifications)
		auth.POST("/notifications/refresh", notificationCtrl.RefreshNotifications)
		auth.PATCH("/notifications/:notif_id/read", notificationCtrl.MarkNotificationRead)
	}

	// Vendor management and the fulfilment queue.
	vendor := r.Group("/vendor")
	vendor.Use(middlewares.AuthMiddleware(), middlewares.RequireRole("vendor", "admin"))
	{
		vendor.POST("/", vendorCtrl.CreateVendor)
		vendor.PATCH("/:vendor_id", vendorCtrl.UpdateVendor)
		vendor.PATCH("/:vendor_id/availability", vendorCtrl.SetAvailability)

		vendor.POST("/menu", menuCtrl.CreateMenuItem)
		vendor.PATCH("/menu/:item_id", menuCtrl.UpdateMenuItem)
		vendor.DELETE("/menu/:item_id", menuCtrl.DeleteMenuItem)

		vendor.GET("/orders", orderCtrl.GetVendorOrders)
		vendor.POST("/orders/:order_id/accept", orderCtrl.AcceptOrder)
		vendor.POST("/orders/:order_id/ready", orderCtrl.MarkOrderReady)
		vendor.POST("/orders/:order_id/collect", orderCtrl.CollectOrder)
		vendor.POST("/orders/:order_id/reject", orderCtrl.RejectOrder)
		vendor.POST("/orders/:order_id/cancel", orderCtrl.CancelOrder)
	}

	admin := r.Group("/admin")
	admin.Use(middlewares.AuthMiddleware(), middlewares.RequireRole("admin"))
	{
		admin.GET("/payments/metrics", paymentCtrl.GetPaymentMetrics)
	}

	// WebSocket endpoint with its own token handling (browsers cannot
	// set headers on the upgrade request).
	wsGroup := r.Group("/ws")
	wsGroup.Use(middlewares.WebSocketAuthMiddleware())
	{
		wsGroup.GET("/feed", controllers.FeedHandler)
	}

	return r
}
