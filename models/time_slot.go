package models

// TimeSlot is read-only reference data: a discrete pickup time offered at
// order time. TimeOfDay is stored as "HH:MM" on a 24h clock.
type TimeSlot struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	TimeOfDay string `gorm:"type:varchar(5);not null;unique" json:"time_of_day"`
}
