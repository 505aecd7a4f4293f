package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/campusbites/campus-bites/feed"
	"github.com/campusbites/campus-bites/models"
	"github.com/campusbites/campus-bites/realtime"
	"github.com/campusbites/campus-bites/utils"
)

type NotificationController struct {
	DB    *gorm.DB
	Feeds *feed.Manager
}

func NewNotificationController(db *gorm.DB, feeds *feed.Manager) *NotificationController {
	return &NotificationController{DB: db, Feeds: feeds}
}

// GetMyNotifications -> the caller's feed, newest first
func (nc *NotificationController) GetMyNotifications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return
	}

	f, err := nc.Feeds.ForRecipient(userID)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Your notifications", gin.H{
		"notifications": f.List(),
		"unread":        f.UnreadCount(),
	})
}

// MarkNotificationRead -> sets the read flag; marking an already-read
// notification is a no-op
func (nc *NotificationController) MarkNotificationRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return
	}

	notifID, _ := strconv.Atoi(c.Param("notif_id"))

	var notif models.Notification
	if err := nc.DB.First(&notif, notifID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	if notif.RecipientID != userID {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	if !notif.Read {
		if err := nc.DB.Model(&notif).Update("read", true).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		notif.Read = true

		if f, err := nc.Feeds.ForRecipient(userID); err == nil {
			f.MarkRead(notif.ID)
		}
		realtime.SendNotificationUpdate(notif)
	}

	utils.RespondJSON(c, http.StatusOK, "Notification read", notif)
}

// RefreshNotifications -> manual poll path: refetch the backlog wholesale.
// Used by clients that do not trust realtime delivery.
func (nc *NotificationController) RefreshNotifications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return
	}

	if err := nc.Feeds.Refresh(userID); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	f, err := nc.Feeds.ForRecipient(userID)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Notifications refreshed", gin.H{
		"notifications": f.List(),
		"unread":        f.UnreadCount(),
	})
}
