package repository

import (
	"context"
	"errors"

	"crew-scheduler/internal/clock"
	"crew-scheduler/internal/logger"
	"crew-scheduler/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ProjectRepository interface {
	WithTx(tx *gorm.DB) ProjectRepository
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id string) (*models.Project, error)
	ListByIDs(ctx context.Context, ids []string) (map[string]*models.Project, error)
	ListActiveOn(ctx context.Context, date clock.Date) ([]*models.Project, error)
	ListOpen(ctx context.Context, date clock.Date) ([]*models.Project, error)
	SetProjectStatus(ctx context.Context, id, status string) error
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	AddPause(ctx context.Context, pause *models.ProjectPause) error
	ListPauses(ctx context.Context, projectIDs []string) (map[string][]models.ProjectPause, error)
}

type GormProjectRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormProjectRepository(db *gorm.DB, log *logrus.Logger) (*GormProjectRepository, error) {
	log = logger.OrDefault(log)

	if err := db.AutoMigrate(&models.Project{}, &models.ProjectPause{}); err != nil {
		log.WithError(err).Error("Failed to auto-migrate projects table")
		return nil, err
	}

	log.Debug("Project repository initialized")

	return &GormProjectRepository{db: db, logger: log}, nil
}

func (r *GormProjectRepository) WithTx(tx *gorm.DB) ProjectRepository {
	return &GormProjectRepository{db: tx, logger: r.logger}
}

func (r *GormProjectRepository) Create(ctx context.Context, project *models.Project) error {
	if !project.IsValid() {
		r.logger.WithField("name", project.Name).Warn("Invalid project data")
		return ErrInvalidRecord
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Project{}).
		Where("job_id = ?", project.JobID).
		Count(&count).Error; err != nil {
		r.logger.WithError(err).Error("Failed to check job code")
		return err
	}
	if count > 0 {
		r.logger.WithField("job_id", project.JobID).Warn("Job code already exists")
		return ErrDuplicate
	}

	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		r.logger.WithError(err).Error("Failed to create project")
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"id":            project.ID,
		"job_id":        project.JobID,
		"tanggal_mulai": project.StartDate.String(),
	}).Info("Project created")
	return nil
}

func (r *GormProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.logger.WithField("id", id).Debug("Project not found")
		return nil, nil
	}
	if err != nil {
		r.logger.WithError(err).Error("Failed to get project by ID")
		return nil, err
	}

	return &project, nil
}

func (r *GormProjectRepository) ListByIDs(ctx context.Context, ids []string) (map[string]*models.Project, error) {
	result := make(map[string]*models.Project, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var projects []*models.Project
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&projects).Error; err != nil {
		r.logger.WithError(err).Error("Failed to list projects by IDs")
		return nil, err
	}

	for _, p := range projects {
		result[p.ID] = p
	}
	return result, nil
}

// ListActiveOn returns the projects that take part in rollover on date:
// started, not closed, not completed and not pending.
func (r *GormProjectRepository) ListActiveOn(ctx context.Context, date clock.Date) ([]*models.Project, error) {
	var projects []*models.Project
	err := r.db.WithContext(ctx).
		Where("tanggal_mulai <= ?", date.String()).
		Where("closed_at IS NULL").
		Where("status <> ?", models.StatusCompleted).
		Where("project_status <> ?", models.ProjectStatusPending).
		Where("(pending_reason IS NULL OR pending_reason = '')").
		Find(&projects).Error
	if err != nil {
		r.logger.WithError(err).Error("Failed to list active projects")
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"date":  date.String(),
		"count": len(projects),
	}).Debug("Retrieved active projects")
	return projects, nil
}

// ListOpen returns every started, not yet completed project, newest first.
func (r *GormProjectRepository) ListOpen(ctx context.Context, date clock.Date) ([]*models.Project, error) {
	var projects []*models.Project
	err := r.db.WithContext(ctx).
		Where("tanggal_mulai <= ?", date.String()).
		Where("status <> ?", models.StatusCompleted).
		Order("created_at DESC").
		Find(&projects).Error
	if err != nil {
		r.logger.WithError(err).Error("Failed to list open projects")
		return nil, err
	}

	return projects, nil
}

func (r *GormProjectRepository) SetProjectStatus(ctx context.Context, id, status string) error {
	return r.Update(ctx, id, map[string]interface{}{"project_status": status})
}

func (r *GormProjectRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to update project")
		return result.Error
	}
	if result.RowsAffected == 0 {
		r.logger.WithField("id", id).Warn("Project not found for update")
		return ErrNotFound
	}

	r.logger.WithFields(logrus.Fields{
		"id":     id,
		"fields": len(fields),
	}).Debug("Project updated")
	return nil
}

func (r *GormProjectRepository) AddPause(ctx context.Context, pause *models.ProjectPause) error {
	if err := r.db.WithContext(ctx).Create(pause).Error; err != nil {
		r.logger.WithError(err).Error("Failed to record project pause")
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"project_id": pause.ProjectID,
		"first_day":  pause.FirstDay.String(),
		"last_day":   pause.LastDay.String(),
	}).Debug("Project pause recorded")
	return nil
}

// ListPauses returns the recorded pauses per project, oldest first.
func (r *GormProjectRepository) ListPauses(ctx context.Context, projectIDs []string) (map[string][]models.ProjectPause, error) {
	result := make(map[string][]models.ProjectPause, len(projectIDs))
	if len(projectIDs) == 0 {
		return result, nil
	}

	var pauses []models.ProjectPause
	err := r.db.WithContext(ctx).
		Where("project_id IN ?", projectIDs).
		Order("first_day ASC").
		Find(&pauses).Error
	if err != nil {
		r.logger.WithError(err).Error("Failed to list project pauses")
		return nil, err
	}

	for _, p := range pauses {
		result[p.ProjectID] = append(result[p.ProjectID], p)
	}
	return result, nil
}
