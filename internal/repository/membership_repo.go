package repository

import (
	"context"
	"time"

	"crew-scheduler/internal/logger"
	"crew-scheduler/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SyncResult summarises one membership reconciliation.
type SyncResult struct {
	Added   int
	Removed int
	Kept    int
}

type MembershipRepository interface {
	WithTx(tx *gorm.DB) MembershipRepository
	ListActive(ctx context.Context, projectIDs []string) ([]models.Membership, error)
	ListActiveByTechnician(ctx context.Context, technicianID string) ([]models.Membership, error)
	Sync(ctx context.Context, projectID string, desired []string, at time.Time) (SyncResult, error)
	SetLeader(ctx context.Context, projectID string, candidates []string) (string, error)
	RemoveAll(ctx context.Context, projectID string, at time.Time) (int, error)
	RemoveTechnician(ctx context.Context, technicianID string, at time.Time) (int, error)
	History(ctx context.Context, projectID string) ([]models.MembershipHistory, error)
}

type GormMembershipRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormMembershipRepository(db *gorm.DB, log *logrus.Logger) (*GormMembershipRepository, error) {
	log = logger.OrDefault(log)

	if err := db.AutoMigrate(&models.Membership{}, &models.MembershipHistory{}); err != nil {
		log.WithError(err).Error("Failed to auto-migrate membership tables")
		return nil, err
	}

	// at most one leader among the active members of a project
	err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uq_project_memberships_leader
		ON project_memberships (project_id) WHERE is_leader`).Error
	if err != nil {
		log.WithError(err).Error("Failed to create leader index")
		return nil, err
	}

	log.Debug("Membership repository initialized")

	return &GormMembershipRepository{db: db, logger: log}, nil
}

func (r *GormMembershipRepository) WithTx(tx *gorm.DB) MembershipRepository {
	return &GormMembershipRepository{db: tx, logger: r.logger}
}

// ListActive returns active memberships; an empty projectIDs means all projects.
func (r *GormMembershipRepository) ListActive(ctx context.Context, projectIDs []string) ([]models.Membership, error) {
	var rows []models.Membership
	q := r.db.WithContext(ctx).Order("project_id, assigned_at, technician_id")
	if len(projectIDs) > 0 {
		q = q.Where("project_id IN ?", projectIDs)
	}
	if err := q.Find(&rows).Error; err != nil {
		r.logger.WithError(err).Error("Failed to list active memberships")
		return nil, err
	}

	r.logger.WithField("count", len(rows)).Debug("Retrieved active memberships")
	return rows, nil
}

func (r *GormMembershipRepository) ListActiveByTechnician(ctx context.Context, technicianID string) ([]models.Membership, error) {
	var rows []models.Membership
	err := r.db.WithContext(ctx).
		Where("technician_id = ?", technicianID).
		Order("assigned_at DESC").
		Find(&rows).Error
	if err != nil {
		r.logger.WithError(err).Error("Failed to list memberships by technician")
		return nil, err
	}
	return rows, nil
}

// Sync makes the active member set of projectID equal to desired. Rows that
// are no longer desired move to history with removal time at; missing ones
// are inserted with assignment time at. Existing rows are left untouched.
func (r *GormMembershipRepository) Sync(ctx context.Context, projectID string, desired []string, at time.Time) (SyncResult, error) {
	var res SyncResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active []models.Membership
		if err := tx.Where("project_id = ?", projectID).Find(&active).Error; err != nil {
			return err
		}

		want := make(map[string]bool, len(desired))
		for _, id := range desired {
			want[id] = true
		}

		have := make(map[string]bool, len(active))
		var retired []models.MembershipHistory
		var retiredIDs []string
		for _, m := range active {
			if want[m.TechnicianID] {
				have[m.TechnicianID] = true
				res.Kept++
				continue
			}
			retired = append(retired, m.Retire(at))
			retiredIDs = append(retiredIDs, m.TechnicianID)
		}

		if len(retired) > 0 {
			if err := tx.Create(&retired).Error; err != nil {
				return err
			}
			if err := tx.Where("project_id = ? AND technician_id IN ?", projectID, retiredIDs).
				Delete(&models.Membership{}).Error; err != nil {
				return err
			}
			res.Removed = len(retired)
		}

		var added []models.Membership
		for _, id := range desired {
			if have[id] {
				continue
			}
			have[id] = true
			added = append(added, models.Membership{
				ProjectID:    projectID,
				TechnicianID: id,
				AssignedAt:   at,
			})
		}
		if len(added) > 0 {
			if err := tx.Create(&added).Error; err != nil {
				return err
			}
			res.Added = len(added)
		}
		return nil
	})
	if err != nil {
		r.logger.WithError(err).WithField("project_id", projectID).Error("Failed to sync memberships")
		return SyncResult{}, err
	}

	r.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"added":      res.Added,
		"removed":    res.Removed,
		"kept":       res.Kept,
	}).Info("Memberships synced")
	return res, nil
}

// SetLeader clears every leader flag of the project and then sets it on the
// first candidate that is an active member. Returns the chosen technician, or
// "" when no candidate is active.
func (r *GormMembershipRepository) SetLeader(ctx context.Context, projectID string, candidates []string) (string, error) {
	var leader string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Membership{}).
			Where("project_id = ? AND is_leader = ?", projectID, true).
			Update("is_leader", false).Error; err != nil {
			return err
		}

		for _, id := range candidates {
			result := tx.Model(&models.Membership{}).
				Where("project_id = ? AND technician_id = ?", projectID, id).
				Update("is_leader", true)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected > 0 {
				leader = id
				return nil
			}
		}
		return nil
	})
	if err != nil {
		r.logger.WithError(err).WithField("project_id", projectID).Error("Failed to set leader")
		return "", err
	}

	r.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"leader":     leader,
	}).Info("Leader synced")
	return leader, nil
}

// RemoveAll retires every active membership of the project.
func (r *GormMembershipRepository) RemoveAll(ctx context.Context, projectID string, at time.Time) (int, error) {
	return r.retireWhere(ctx, at, "project_id = ?", projectID)
}

// RemoveTechnician retires every active membership held by the technician.
func (r *GormMembershipRepository) RemoveTechnician(ctx context.Context, technicianID string, at time.Time) (int, error) {
	return r.retireWhere(ctx, at, "technician_id = ?", technicianID)
}

func (r *GormMembershipRepository) retireWhere(ctx context.Context, at time.Time, query string, arg interface{}) (int, error) {
	var removed int

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active []models.Membership
		if err := tx.Where(query, arg).Find(&active).Error; err != nil {
			return err
		}
		if len(active) == 0 {
			return nil
		}

		history := make([]models.MembershipHistory, 0, len(active))
		for _, m := range active {
			history = append(history, m.Retire(at))
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}
		if err := tx.Where(query, arg).Delete(&models.Membership{}).Error; err != nil {
			return err
		}
		removed = len(active)
		return nil
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to retire memberships")
		return 0, err
	}

	r.logger.WithFields(logrus.Fields{
		"filter":  query,
		"value":   arg,
		"removed": removed,
	}).Info("Memberships retired")
	return removed, nil
}

func (r *GormMembershipRepository) History(ctx context.Context, projectID string) ([]models.MembershipHistory, error) {
	var rows []models.MembershipHistory
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("removed_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		r.logger.WithError(err).Error("Failed to get membership history")
		return nil, err
	}
	return rows, nil
}
