package models

import "time"

// Membership is an active technician-in-project row. The composite primary key
// makes "at most one active pair" a storage guarantee; removed rows live in
// MembershipHistory instead of carrying a nullable removal timestamp.
type Membership struct {
	ProjectID    string    `gorm:"type:varchar(36);primaryKey" json:"project_id"`
	TechnicianID string    `gorm:"type:varchar(36);primaryKey;index" json:"technician_id"`
	IsLeader     bool      `gorm:"not null;default:false" json:"is_leader"`
	AssignedAt   time.Time `gorm:"not null" json:"assigned_at"`
}

func (Membership) TableName() string {
	return "project_memberships"
}

func (m Membership) Key() string {
	return PairKey(m.ProjectID, m.TechnicianID)
}

// MembershipHistory is the append-only log of removed memberships.
type MembershipHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ProjectID    string    `gorm:"type:varchar(36);not null;index" json:"project_id"`
	TechnicianID string    `gorm:"type:varchar(36);not null;index" json:"technician_id"`
	WasLeader    bool      `gorm:"not null;default:false" json:"was_leader"`
	AssignedAt   time.Time `gorm:"not null" json:"assigned_at"`
	RemovedAt    time.Time `gorm:"not null" json:"removed_at"`
}

func (MembershipHistory) TableName() string {
	return "project_membership_history"
}

// Retire turns an active membership into its history record.
func (m Membership) Retire(at time.Time) MembershipHistory {
	return MembershipHistory{
		ProjectID:    m.ProjectID,
		TechnicianID: m.TechnicianID,
		WasLeader:    m.IsLeader,
		AssignedAt:   m.AssignedAt,
		RemovedAt:    at,
	}
}

// PairKey is the project::technician key used by the ledgers.
func PairKey(projectID, technicianID string) string {
	return projectID + "::" + technicianID
}
