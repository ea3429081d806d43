package models

import (
	"time"

	"crew-scheduler/internal/clock"
)

// DayMarker records that the business day was advanced to Date.
type DayMarker struct {
	Date       clock.Date `gorm:"column:day;type:varchar(10);primaryKey" json:"date"`
	AdvancedAt time.Time  `gorm:"not null" json:"advanced_at"`
}

func (DayMarker) TableName() string {
	return "day_markers"
}
