package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/campusbites/campus-bites/feed"
	"github.com/campusbites/campus-bites/models"
	"github.com/campusbites/campus-bites/realtime"
	"github.com/campusbites/campus-bites/utils"
)

// ChangeMonitor drains the db_changes table (filled by SQL triggers) and
// turns rows into realtime events. This is what makes writes from any
// process instance visible to every connected client.
type ChangeMonitor struct {
	DB       *gorm.DB
	Feeds    *feed.Manager
	StopChan chan struct{}
	Interval time.Duration
}

func NewChangeMonitor(db *gorm.DB, feeds *feed.Manager) *ChangeMonitor {
	return &ChangeMonitor{
		DB:       db,
		Feeds:    feeds,
		StopChan: make(chan struct{}),
		Interval: 1 * time.Second,
	}
}

func (cm *ChangeMonitor) Start() {
	go func() {
		ticker := time.NewTicker(cm.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cm.checkChanges()
			case <-cm.StopChan:
				return
			}
		}
	}()
}

func (cm *ChangeMonitor) Stop() {
	close(cm.StopChan)
}

func (cm *ChangeMonitor) checkChanges() {
	var changes []models.DBChange

	tx := cm.DB.Begin()

	if err := tx.Where("processed = ?", false).
		Order("changed_at ASC").
		Limit(100).
		Find(&changes).Error; err != nil {
		tx.Rollback()
		utils.ErrorLogger.Printf("Error fetching changes: %v", err)
		return
	}

	for _, change := range changes {
		switch change.TableName {
		case "orders":
			cm.processOrderChange(change)
		case "payments":
			cm.processPaymentChange(change)
		case "notifications":
			cm.processNotificationChange(change)
		case "vendors":
			cm.processVendorChange(change)
		}

		if err := tx.Model(&models.DBChange{}).
			Where("id = ?", change.ID).
			Update("processed", true).Error; err != nil {
			tx.Rollback()
			utils.ErrorLogger.Printf("Error marking change as processed: %v", err)
			return
		}
	}

	if err := tx.Commit().Error; err != nil {
		utils.ErrorLogger.Printf("Error committing change batch: %v", err)
		return
	}

	if len(changes) > 0 {
		utils.InfoLogger.Printf("Processed %d change-feed rows", len(changes))
	}
}

func (cm *ChangeMonitor) processOrderChange(change models.DBChange) {
	var order models.Order
	if err := cm.DB.First(&order, change.RecordID).Error; err != nil {
		utils.ErrorLogger.Printf("Error fetching order %d: %v", change.RecordID, err)
		return
	}

	switch change.ActionType {
	case "INSERT":
		realtime.BroadcastOrderCreated(order)
	case "UPDATE":
		realtime.BroadcastOrderUpdate(order)
	}
}

func (cm *ChangeMonitor) processPaymentChange(change models.DBChange) {
	var payment models.Payment
	if err := cm.DB.First(&payment, change.RecordID).Error; err != nil {
		utils.ErrorLogger.Printf("Error fetching payment %d: %v", change.RecordID, err)
		return
	}

	switch change.ActionType {
	case "INSERT":
		realtime.BroadcastPaymentPending(payment)
	case "UPDATE":
		if payment.Status == models.PaymentStatusSuccess {
			realtime.BroadcastPaymentSuccess(payment)
		} else {
			realtime.BroadcastPaymentUpdate(payment)
		}
	}
}

func (cm *ChangeMonitor) processNotificationChange(change models.DBChange) {
	var notif models.Notification
	if err := cm.DB.First(&notif, change.RecordID).Error; err != nil {
		utils.ErrorLogger.Printf("Error fetching notification %d: %v", change.RecordID, err)
		return
	}

	switch change.ActionType {
	case "INSERT":
		cm.Feeds.ApplyInsert(notif)
		realtime.SendNotification(notif)
	case "UPDATE":
		cm.Feeds.ApplyUpdate(notif)
		realtime.SendNotificationUpdate(notif)
	}
}

func (cm *ChangeMonitor) processVendorChange(change models.DBChange) {
	var vendor models.Vendor
	if err := cm.DB.First(&vendor, change.RecordID).Error; err != nil {
		utils.ErrorLogger.Printf("Error fetching vendor %d: %v", change.RecordID, err)
		return
	}

	if change.ActionType == "UPDATE" {
		realtime.BroadcastVendorUpdate(vendor)
	}
}
