package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/campusbites/campus-bites/models"
	"github.com/campusbites/campus-bites/services"
	"github.com/campusbites/campus-bites/utils"
)

type TimeSlotController struct {
	DB   *gorm.DB
	gate *services.TimeslotGate
}

func NewTimeSlotController(db *gorm.DB) *TimeSlotController {
	return &TimeSlotController{DB: db, gate: services.NewTimeslotGate(db)}
}

// GetAllTimeSlots -> the raw reference data
func (tc *TimeSlotController) GetAllTimeSlots(c *gin.Context) {
	var slots []models.TimeSlot
	if err := tc.DB.Order("time_of_day asc").Find(&slots).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Time slots", slots)
}

// GetAvailableTimeSlots -> slots annotated with busy/too_soon/selectable for
// one vendor. Advisory only: checkout does not re-check.
func (tc *TimeSlotController) GetAvailableTimeSlots(c *gin.Context) {
	vendorID, err := strconv.Atoi(c.Query("vendor_id"))
	if err != nil || vendorID <= 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("vendor_id query parameter is required"))
		return
	}

	slots, err := tc.gate.SelectableSlots(uint(vendorID))
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Available time slots", slots)
}
