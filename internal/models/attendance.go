package models

import (
	"time"

	"crew-scheduler/internal/clock"
)

// Attendance records that a technician worked on a project on one date.
type Attendance struct {
	ProjectID    string     `gorm:"type:varchar(36);primaryKey" json:"project_id"`
	TechnicianID string     `gorm:"type:varchar(36);primaryKey" json:"technician_id"`
	WorkDate     clock.Date `gorm:"type:varchar(10);primaryKey;index" json:"work_date"`
	IsLeader     bool       `gorm:"column:project_leader;not null;default:false" json:"project_leader"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (Attendance) TableName() string {
	return "attendance"
}

func (a Attendance) Key() string {
	return PairKey(a.ProjectID, a.TechnicianID)
}

func (a *Attendance) IsValid() bool {
	return a.ProjectID != "" && a.TechnicianID != "" && !a.WorkDate.IsZero()
}

// AttendanceSubmission marks that a project's row set for a date was written
// explicitly, even when every technician was left out.
type AttendanceSubmission struct {
	ProjectID   string     `gorm:"type:varchar(36);primaryKey" json:"project_id"`
	WorkDate    clock.Date `gorm:"type:varchar(10);primaryKey" json:"work_date"`
	SubmittedAt time.Time  `gorm:"autoCreateTime" json:"submitted_at"`
}

func (AttendanceSubmission) TableName() string {
	return "attendance_submissions"
}
