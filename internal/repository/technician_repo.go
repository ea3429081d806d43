package repository

import (
	"context"
	"errors"

	"crew-scheduler/internal/logger"
	"crew-scheduler/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type TechnicianRepository interface {
	WithTx(tx *gorm.DB) TechnicianRepository
	Create(ctx context.Context, technician *models.Technician) error
	GetByID(ctx context.Context, id string) (*models.Technician, error)
	GetByCode(ctx context.Context, code string) (*models.Technician, error)
	ListByIDs(ctx context.Context, ids []string) (map[string]*models.Technician, error)
	List(ctx context.Context) ([]*models.Technician, error)
	Update(ctx context.Context, technician *models.Technician) error
	Delete(ctx context.Context, id string) error
}

type GormTechnicianRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormTechnicianRepository(db *gorm.DB, log *logrus.Logger) (*GormTechnicianRepository, error) {
	log = logger.OrDefault(log)

	if err := db.AutoMigrate(&models.Technician{}); err != nil {
		log.WithError(err).Error("Failed to auto-migrate technicians table")
		return nil, err
	}

	log.Debug("Technician repository initialized")

	return &GormTechnicianRepository{db: db, logger: log}, nil
}

func (r *GormTechnicianRepository) WithTx(tx *gorm.DB) TechnicianRepository {
	return &GormTechnicianRepository{db: tx, logger: r.logger}
}

func (r *GormTechnicianRepository) Create(ctx context.Context, technician *models.Technician) error {
	if !technician.IsValid() {
		r.logger.WithField("code", technician.Code).Warn("Invalid technician data")
		return ErrInvalidRecord
	}

	existing, err := r.GetByCode(ctx, technician.Code)
	if err != nil {
		return err
	}
	if existing != nil {
		r.logger.WithField("code", technician.Code).Warn("Technician code already exists")
		return ErrDuplicate
	}

	if err := r.db.WithContext(ctx).Create(technician).Error; err != nil {
		r.logger.WithError(err).Error("Failed to create technician")
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"id":   technician.ID,
		"code": technician.Code,
	}).Info("Technician created")
	return nil
}

func (r *GormTechnicianRepository) GetByID(ctx context.Context, id string) (*models.Technician, error) {
	var technician models.Technician
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&technician).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.logger.WithField("id", id).Debug("Technician not found")
		return nil, nil
	}
	if err != nil {
		r.logger.WithError(err).Error("Failed to get technician by ID")
		return nil, err
	}

	return &technician, nil
}

func (r *GormTechnicianRepository) GetByCode(ctx context.Context, code string) (*models.Technician, error) {
	var technician models.Technician
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&technician).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.logger.WithError(err).Error("Failed to get technician by code")
		return nil, err
	}

	return &technician, nil
}

func (r *GormTechnicianRepository) ListByIDs(ctx context.Context, ids []string) (map[string]*models.Technician, error) {
	result := make(map[string]*models.Technician, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var technicians []*models.Technician
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&technicians).Error; err != nil {
		r.logger.WithError(err).Error("Failed to list technicians by IDs")
		return nil, err
	}

	for _, t := range technicians {
		result[t.ID] = t
	}
	return result, nil
}

func (r *GormTechnicianRepository) List(ctx context.Context) ([]*models.Technician, error) {
	var technicians []*models.Technician
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&technicians).Error; err != nil {
		r.logger.WithError(err).Error("Failed to list technicians")
		return nil, err
	}

	r.logger.WithField("count", len(technicians)).Debug("Retrieved technicians")
	return technicians, nil
}

func (r *GormTechnicianRepository) Update(ctx context.Context, technician *models.Technician) error {
	if !technician.IsValid() {
		r.logger.WithField("id", technician.ID).Warn("Invalid technician data for update")
		return ErrInvalidRecord
	}

	result := r.db.WithContext(ctx).Model(&models.Technician{}).
		Where("id = ?", technician.ID).
		Updates(map[string]interface{}{
			"name":     technician.Name,
			"initials": technician.Initials,
		})
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to update technician")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	r.logger.WithField("id", technician.ID).Info("Technician updated")
	return nil
}

func (r *GormTechnicianRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Technician{})
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to delete technician")
		return result.Error
	}
	if result.RowsAffected == 0 {
		r.logger.WithField("id", id).Warn("Technician not found for deletion")
		return ErrNotFound
	}

	r.logger.WithField("id", id).Info("Technician deleted")
	return nil
}
