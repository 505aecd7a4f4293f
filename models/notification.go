package models

import "time"

type Notification struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	SenderID    *uint  `json:"sender_id,omitempty"`
	Sender      *User  `gorm:"foreignKey:SenderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	RecipientID uint   `gorm:"not null;index" json:"recipient_id"`
	Recipient   User   `gorm:"foreignKey:RecipientID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Message     string `gorm:"type:text;not null" json:"message"`
	// Read is monotonic: once true it never goes back to false.
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
