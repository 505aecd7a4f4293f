package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/campusbites/campus-bites/models"
	"github.com/campusbites/campus-bites/realtime"
	"github.com/campusbites/campus-bites/utils"
)

type VendorController struct {
	DB *gorm.DB
}

func NewVendorController(db *gorm.DB) *VendorController {
	return &VendorController{DB: db}
}

// GetAllVendors -> list vendors; ?open=true filters to vendors taking orders
func (vc *VendorController) GetAllVendors(c *gin.Context) {
	query := vc.DB.Order("name asc")
	if c.Query("open") == "true" {
		query = query.Where("open = ?", true)
	}

	var vendors []models.Vendor
	if err := query.Find(&vendors).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of vendors", vendors)
}

// GetVendorByID -> vendor detail
func (vc *VendorController) GetVendorByID(c *gin.Context) {
	idStr := c.Param("vendor_id")
	id, _ := strconv.Atoi(idStr)

	var vendor models.Vendor
	if err := vc.DB.First(&vendor, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Vendor detail", vendor)
}

// CreateVendor -> a vendor-role user opens their stall profile
func (vc *VendorController) CreateVendor(c *gin.Context) {
	if currentRole(c) != "vendor" && currentRole(c) != "admin" {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}
	userID, _ := currentUserID(c)

	type request struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		Phone       string `json:"phone"`
		Email       string `json:"email"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	vendor := models.Vendor{
		OwnerID:     userID,
		Name:        req.Name,
		Description: req.Description,
		Phone:       req.Phone,
		Email:       req.Email,
		Open:        true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := vc.DB.Create(&vendor).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Vendor created", vendor)
}

// UpdateVendor -> owner edits profile fields
func (vc *VendorController) UpdateVendor(c *gin.Context) {
	vendor, ok := vc.ownedVendor(c)
	if !ok {
		return
	}

	type request struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Phone       *string `json:"phone"`
		Email       *string `json:"email"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if req.Name != nil {
		vendor.Name = *req.Name
	}
	if req.Description != nil {
		vendor.Description = *req.Description
	}
	if req.Phone != nil {
		vendor.Phone = *req.Phone
	}
	if req.Email != nil {
		vendor.Email = *req.Email
	}
	vendor.UpdatedAt = time.Now()

	if err := vc.DB.Save(vendor).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	realtime.BroadcastVendorUpdate(*vendor)
	utils.RespondJSON(c, http.StatusOK, "Vendor updated", vendor)
}

// SetAvailability -> owner opens/closes the stall
func (vc *VendorController) SetAvailability(c *gin.Context) {
	vendor, ok := vc.ownedVendor(c)
	if !ok {
		return
	}

	var req struct {
		Open *bool `json:"open" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	vendor.Open = *req.Open
	vendor.UpdatedAt = time.Now()
	if err := vc.DB.Save(vendor).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	realtime.BroadcastVendorUpdate(*vendor)
	utils.RespondJSON(c, http.StatusOK, "Vendor availability updated", vendor)
}

// ownedVendor resolves the :vendor_id param and checks the caller owns it
// (admins pass). Writes the error response itself on failure.
func (vc *VendorController) ownedVendor(c *gin.Context) (*models.Vendor, bool) {
	idStr := c.Param("vendor_id")
	id, _ := strconv.Atoi(idStr)

	var vendor models.Vendor
	if err := vc.DB.First(&vendor, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return nil, false
	}

	userID, _ := currentUserID(c)
	if vendor.OwnerID != userID && currentRole(c) != "admin" {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return nil, false
	}
	return &vendor, true
}
