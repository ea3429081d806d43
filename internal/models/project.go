package models

import (
	"strings"
	"time"

	"crew-scheduler/internal/clock"
)

// Progress-facing status.
const (
	StatusOngoing   = "ongoing"
	StatusCompleted = "completed"
	StatusOverdue   = "overdue"
)

// Assignment-facing status.
const (
	ProjectStatusUnassigned = "unassigned"
	ProjectStatusOngoing    = "ongoing"
	ProjectStatusPending    = "pending"
)

type Project struct {
	ID            string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	JobID         string     `gorm:"type:varchar(40);uniqueIndex;not null" json:"job_id"`
	Name          string     `gorm:"type:varchar(200);not null" json:"name"`
	Location      string     `gorm:"type:varchar(200)" json:"lokasi"`
	SalesName     string     `gorm:"type:varchar(120)" json:"sales_name"`
	PresalesName  string     `gorm:"type:varchar(120)" json:"presales_name"`
	StartDate     clock.Date `gorm:"column:tanggal_mulai;type:varchar(10);not null;index" json:"tanggal_mulai"`
	Deadline      clock.Date `gorm:"column:tanggal_deadline;type:varchar(10)" json:"tanggal_deadline"`
	SigmaTeknisi  int        `gorm:"not null;default:0" json:"sigma_teknisi"`
	SigmaHari     int        `gorm:"not null;default:0" json:"sigma_hari"`
	SigmaManDays  int        `gorm:"not null;default:0" json:"sigma_man_days"`
	Status        string     `gorm:"type:varchar(20);not null;default:'ongoing';index" json:"status"`
	ProjectStatus string     `gorm:"type:varchar(20);not null;default:'unassigned';index" json:"project_status"`
	PendingReason *string    `gorm:"type:varchar(300)" json:"pending_reason"`
	PendingSince  *time.Time `json:"pending_since"`
	PausedDays    int        `gorm:"not null;default:0" json:"paused_days"`
	ClosedAt      *time.Time `json:"closed_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Project) TableName() string {
	return "projects"
}

// IsPending treats a stored pending reason as pending even if the status
// column was reset by something else.
func (p *Project) IsPending() bool {
	return p.ProjectStatus == ProjectStatusPending ||
		(p.PendingReason != nil && strings.TrimSpace(*p.PendingReason) != "")
}

func (p *Project) IsCompleted() bool {
	return p.Status == StatusCompleted || p.ClosedAt != nil
}

// IsLocked reports whether assignment changes must be refused.
func (p *Project) IsLocked() bool {
	return p.IsPending() || p.IsCompleted()
}

// IsActiveOn reports whether the project takes part in rollover on date d.
func (p *Project) IsActiveOn(d clock.Date) bool {
	if p.IsLocked() {
		return false
	}
	return !p.StartDate.After(d)
}

// IsValid checks required fields.
func (p *Project) IsValid() bool {
	if p.ID == "" || p.JobID == "" || strings.TrimSpace(p.Name) == "" {
		return false
	}
	if p.StartDate.IsZero() {
		return false
	}
	if !p.Deadline.IsZero() && p.Deadline.Before(p.StartDate) {
		return false
	}
	if p.SigmaTeknisi < 0 || p.SigmaHari < 0 || p.SigmaManDays < 0 {
		return false
	}
	switch p.ProjectStatus {
	case ProjectStatusUnassigned, ProjectStatusOngoing, ProjectStatusPending:
	default:
		return false
	}
	return true
}

// ProjectPause is one finished pending period. FirstDay through LastDay are the
// effective days that do not count towards the project's elapsed days.
type ProjectPause struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	ProjectID string     `gorm:"type:varchar(36);not null;index" json:"project_id"`
	FirstDay  clock.Date `gorm:"type:varchar(10);not null" json:"first_day"`
	LastDay   clock.Date `gorm:"type:varchar(10);not null" json:"last_day"`
	Reason    string     `gorm:"type:varchar(300)" json:"reason"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (ProjectPause) TableName() string { return "project_pauses" }

// Days is the length of the pause in effective days.
func (p ProjectPause) Days() int {
	return clock.DaysInclusive(p.FirstDay, p.LastDay)
}
