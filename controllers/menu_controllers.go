package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/campusbites/campus-bites/models"
	"github.com/campusbites/campus-bites/utils"
)

type MenuController struct {
	DB *gorm.DB
}

func NewMenuController(db *gorm.DB) *MenuController {
	return &MenuController{DB: db}
}

// GetMenuByVendor -> a vendor's menu, optionally filtered by ?tag=
func (mc *MenuController) GetMenuByVendor(c *gin.Context) {
	vendorID, _ := strconv.Atoi(c.Param("vendor_id"))

	query := mc.DB.Preload("Tags").Where("vendor_id = ?", vendorID).Order("name asc")
	if tag := c.Query("tag"); tag != "" {
		query = query.
			Joins("JOIN menu_item_tags ON menu_item_tags.menu_item_id = menu_items.id").
			Joins("JOIN tags ON tags.id = menu_item_tags.tag_id").
			Where("tags.name = ?", tag)
	}

	var items []models.MenuItem
	if err := query.Find(&items).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Vendor menu", items)
}

// CreateMenuItem -> vendor adds a dish
func (mc *MenuController) CreateMenuItem(c *gin.Context) {
	vendor, ok := mc.ownedVendor(c)
	if !ok {
		return
	}

	type request struct {
		Name        string   `json:"name" binding:"required"`
		Price       float64  `json:"price" binding:"required,gt=0"`
		Description string   `json:"description"`
		InStock     *bool    `json:"in_stock"`
		Tags        []string `json:"tags"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	item := models.MenuItem{
		VendorID:    vendor.ID,
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		InStock:     true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if req.InStock != nil {
		item.InStock = *req.InStock
	}

	if err := mc.DB.Create(&item).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if len(req.Tags) > 0 {
		if err := mc.attachTags(&item, req.Tags); err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
	}

	utils.RespondJSON(c, http.StatusCreated, "Menu item created", item)
}

// UpdateMenuItem -> vendor edits price, stock flag, tags
func (mc *MenuController) UpdateMenuItem(c *gin.Context) {
	vendor, ok := mc.ownedVendor(c)
	if !ok {
		return
	}

	itemID, _ := strconv.Atoi(c.Param("item_id"))
	var item models.MenuItem
	if err := mc.DB.First(&item, itemID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	if item.VendorID != vendor.ID {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	type request struct {
		Name        *string  `json:"name"`
		Price       *float64 `json:"price"`
		Description *string  `json:"description"`
		InStock     *bool    `json:"in_stock"`
		Tags        []string `json:"tags"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if req.Name != nil {
		item.Name = *req.Name
	}
	if req.Price != nil {
		item.Price = *req.Price
	}
	if req.Description != nil {
		item.Description = *req.Description
	}
	if req.InStock != nil {
		item.InStock = *req.InStock
	}
	item.UpdatedAt = time.Now()

	if err := mc.DB.Save(&item).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if req.Tags != nil {
		if err := mc.attachTags(&item, req.Tags); err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
	}

	utils.RespondJSON(c, http.StatusOK, "Menu item updated", item)
}

// DeleteMenuItem
func (mc *MenuController) DeleteMenuItem(c *gin.Context) {
	vendor, ok := mc.ownedVendor(c)
	if !ok {
		return
	}

	itemID, _ := strconv.Atoi(c.Param("item_id"))
	var item models.MenuItem
	if err := mc.DB.First(&item, itemID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	if item.VendorID != vendor.ID {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	if err := mc.DB.Delete(&item).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Menu item deleted", gin.H{"item_id": item.ID})
}

// attachTags replaces the item's tag set, creating missing tags by name.
func (mc *MenuController) attachTags(item *models.MenuItem, names []string) error {
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		var tag models.Tag
		if err := mc.DB.Where("name = ?", name).FirstOrCreate(&tag, models.Tag{Name: name}).Error; err != nil {
			return err
		}
		tags = append(tags, tag)
	}
	return mc.DB.Model(item).Association("Tags").Replace(tags)
}

// ownedVendor resolves the caller's vendor profile from :vendor_id.
func (mc *MenuController) ownedVendor(c *gin.Context) (*models.Vendor, bool) {
	vendorID, _ := strconv.Atoi(c.Param("vendor_id"))

	var vendor models.Vendor
	if err := mc.DB.First(&vendor, vendorID).Error; err != nil {
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
