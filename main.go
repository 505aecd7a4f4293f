package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/campusbites/campus-bites/config"
	"github.com/campusbites/campus-bites/database"
	"github.com/campusbites/campus-bites/feed"
	"github.com/campusbites/campus-bites/middlewares"
	"github.com/campusbites/campus-bites/models"
	"github.com/campusbites/campus-bites/router"
	"github.com/campusbites/campus-bites/services"
	"github.com/campusbites/campus-bites/utils"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or error loading: %v", err)
	}

	utils.InitLogger()
}

func main() {
	db, err := config.InitDB()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}

	utils.InitDB(db)

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	autoMigrate(db)
	seedTimeSlots(db)

	daraja := services.GetDarajaService()
	if err := daraja.ValidateConfig(); err != nil {
		utils.ErrorLogger.Printf("Daraja configuration incomplete: %v", err)
	}

	feeds := feed.NewManager(db)
	feeds.StartPolling(30 * time.Second)
	defer feeds.StopPolling()

	monitor := services.NewChangeMonitor(db, feeds)
	monitor.Interval = 500 * time.Millisecond
	monitor.Start()
	defer monitor.Stop()

	paymentMonitor := services.NewPaymentMonitor(db, daraja)
	paymentMonitor.Start()

	paymentService := services.NewPaymentService(db)
	paymentService.StartTimeoutChecker()

	rateLimiter := middlewares.NewRateLimiter(50, 1)

	r := router.SetupRouter(db, daraja, feeds, paymentMonitor)
	r.Use(rateLimiter.RateLimit())

	r.SetTrustedProxies([]string{"127.0.0.1", "localhost"})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	utils.InfoLogger.Printf("Listening on port %s", port)
	if err := r.Run(":" + port); err != nil {
		utils.ErrorLogger.Fatal(err)
	}
}

func autoMigrate(db *gorm.DB) {
	err := db.AutoMigrate(
		&models.User{},
		&models.Vendor{},
		&models.Tag{},
		&models.MenuItem{},
		&models.TimeSlot{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
		&models.Notification{},
		&models.DBChange{},
	)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")

	if err := database.ExecuteTriggers(db); err != nil {
		utils.ErrorLogger.Printf("Error setting up triggers: %v", err)
	}
}

// seedTimeSlots installs the fixed half-hour pickup grid on first boot.
func seedTimeSlots(db *gorm.DB) {
	var count int64
	db.Model(&models.TimeSlot{}).Count(&count)
	if count > 0 {
		return
	}

	for hour := 8; hour <= 20; hour++ {
		for _, min := range []int{0, 30} {
			slot := models.TimeSlot{TimeOfDay: formatSlot(hour, min)}
			if err := db.Create(&slot).Error; err != nil {
				utils.ErrorLogger.Printf("Error seeding time slot %s: %v", slot.TimeOfDay, err)
			}
		}
	}
	utils.InfoLogger.Println("Seeded pickup time slots.")
}

func formatSlot(hour, min int) string {
	return time.Date(2000, 1, 1, hour, min, 0, 0, time.UTC).Format("15:04")
}
