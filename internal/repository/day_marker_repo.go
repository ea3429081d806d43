package repository

import (
	"context"
	"errors"
	"time"

	"crew-scheduler/internal/clock"
	"crew-scheduler/internal/logger"
	"crew-scheduler/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DayMarkerRepository interface {
	MarkAdvanced(ctx context.Context, date clock.Date, at time.Time) (bool, error)
	Latest(ctx context.Context) (*models.DayMarker, error)
}

type GormDayMarkerRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormDayMarkerRepository(db *gorm.DB, log *logrus.Logger) (*GormDayMarkerRepository, error) {
	log = logger.OrDefault(log)

	if err := db.AutoMigrate(&models.DayMarker{}); err != nil {
		log.WithError(err).Error("Failed to auto-migrate day_markers table")
		return nil, err
	}

	return &GormDayMarkerRepository{db: db, logger: log}, nil
}

// MarkAdvanced inserts the marker for date. It reports true only for the
// call that actually created it; later calls for the same date are no-ops.
func (r *GormDayMarkerRepository) MarkAdvanced(ctx context.Context, date clock.Date, at time.Time) (bool, error) {
	marker := models.DayMarker{Date: date, AdvancedAt: at}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "day"}}, DoNothing: true}).
		Create(&marker)
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to write day marker")
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *GormDayMarkerRepository) Latest(ctx context.Context) (*models.DayMarker, error) {
	var marker models.DayMarker
	err := r.db.WithContext(ctx).Order("day DESC").First(&marker).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.logger.WithError(err).Error("Failed to get latest day marker")
		return nil, err
	}

	return &marker, nil
}
