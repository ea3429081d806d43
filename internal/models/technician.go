package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

type Technician struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Code      string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"code"`
	Name      string    `gorm:"type:varchar(120);not null" json:"name"`
	Initials  string    `gorm:"type:varchar(2);not null" json:"initials"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Technician) TableName() string {
	return "technicians"
}

// DisplayInitials falls back to the first letter of the name, then the code.
func (t *Technician) DisplayInitials() string {
	if t.Initials != "" {
		return strings.ToUpper(t.Initials)
	}
	if r, _ := utf8.DecodeRuneInString(strings.TrimSpace(t.Name)); r != utf8.RuneError {
		return strings.ToUpper(string(r))
	}
	if t.Code != "" {
		return strings.ToUpper(t.Code)
	}
	return "?"
}

// IsValid checks required fields.
func (t *Technician) IsValid() bool {
	if t.ID == "" || strings.TrimSpace(t.Code) == "" || strings.TrimSpace(t.Name) == "" {
		return false
	}
	return utf8.RuneCountInString(t.Initials) <= 2
}
