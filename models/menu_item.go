package models

import "time"

type MenuItem struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	VendorID    uint      `gorm:"not null;index" json:"vendor_id"`
	Vendor      Vendor    `gorm:"foreignKey:VendorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Price       float64   `gorm:"type:decimal(10,2);not null" json:"price"`
	InStock     bool      `gorm:"not null;default:true" json:"in_stock"`
	Description string    `gorm:"type:text" json:"description"`
	Tags        []Tag     `gorm:"many2many:menu_item_tags;" json:"tags"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}
