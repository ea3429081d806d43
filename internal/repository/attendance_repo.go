package repository

import (
	"context"

	"crew-scheduler/internal/clock"
	"crew-scheduler/internal/logger"
	"crew-scheduler/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AttendanceSummary aggregates a project's attendance up to a date.
type AttendanceSummary struct {
	ProjectID string
	ManDays   int
	LastDate  clock.Date
}

type AttendanceRepository interface {
	WithTx(tx *gorm.DB) AttendanceRepository
	Replace(ctx context.Context, date clock.Date, projectIDs []string, rows []models.Attendance) (int, error)
	ListByDate(ctx context.Context, date clock.Date, projectIDs []string) ([]models.Attendance, error)
	ListSubmitted(ctx context.Context, date clock.Date, projectIDs []string) (map[string]bool, error)
	CountByDate(ctx context.Context, date clock.Date, projectID string) (int64, error)
	Summaries(ctx context.Context, upTo clock.Date, projectIDs []string) (map[string]AttendanceSummary, error)
}

type GormAttendanceRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormAttendanceRepository(db *gorm.DB, log *logrus.Logger) (*GormAttendanceRepository, error) {
	log = logger.OrDefault(log)

	if err := db.AutoMigrate(&models.Attendance{}, &models.AttendanceSubmission{}); err != nil {
		log.WithError(err).Error("Failed to auto-migrate attendance table")
		return nil, err
	}

	err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_attendance_project_date
		ON attendance (project_id, work_date)`).Error
	if err != nil {
		log.WithError(err).Error("Failed to create attendance index")
		return nil, err
	}

	log.Debug("Attendance repository initialized")

	return &GormAttendanceRepository{db: db, logger: log}, nil
}

func (r *GormAttendanceRepository) WithTx(tx *gorm.DB) AttendanceRepository {
	return &GormAttendanceRepository{db: tx, logger: r.logger}
}

// Replace deletes the date's rows for exactly projectIDs and inserts rows,
// deduplicated by (project, technician). Rows of other projects on the same
// date are never touched; rows outside projectIDs are ignored. Every project in
// projectIDs is marked as submitted for the date, so an empty set stays explicit.
func (r *GormAttendanceRepository) Replace(ctx context.Context, date clock.Date, projectIDs []string, rows []models.Attendance) (int, error) {
	if len(projectIDs) == 0 {
		return 0, nil
	}

	scope := make(map[string]bool, len(projectIDs))
	for _, id := range projectIDs {
		scope[id] = true
	}

	marks := make([]models.AttendanceSubmission, 0, len(projectIDs))
	for id := range scope {
		marks = append(marks, models.AttendanceSubmission{ProjectID: id, WorkDate: date})
	}

	seen := make(map[string]bool, len(rows))
	insert := make([]models.Attendance, 0, len(rows))
	for _, row := range rows {
		row.WorkDate = date
		if !scope[row.ProjectID] || !row.IsValid() || seen[row.Key()] {
			continue
		}
		seen[row.Key()] = true
		insert = append(insert, row)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("work_date = ? AND project_id IN ?", date.String(), projectIDs).
			Delete(&models.Attendance{}).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&marks).Error; err != nil {
			return err
		}
		if len(insert) > 0 {
			return tx.Create(&insert).Error
		}
		return nil
	})
	if err != nil {
		r.logger.WithError(err).WithField("date", date.String()).Error("Failed to replace attendance")
		return 0, err
	}

	r.logger.WithFields(logrus.Fields{
		"date":     date.String(),
		"projects": len(projectIDs),
		"rows":     len(insert),
	}).Info("Attendance replaced")
	return len(insert), nil
}

// ListByDate returns raw rows for the date; an empty projectIDs means all projects.
func (r *GormAttendanceRepository) ListByDate(ctx context.Context, date clock.Date, projectIDs []string) ([]models.Attendance, error) {
	var rows []models.Attendance
	q := r.db.WithContext(ctx).
		Where("work_date = ?", date.String()).
		Order("project_id, technician_id")
	if len(projectIDs) > 0 {
		q = q.Where("project_id IN ?", projectIDs)
	}
	if err := q.Find(&rows).Error; err != nil {
		r.logger.WithError(err).Error("Failed to list attendance by date")
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"date":  date.String(),
		"count": len(rows),
	}).Debug("Retrieved attendance")
	return rows, nil
}

// ListSubmitted reports which of projectIDs had their row set for date
// written explicitly.
func (r *GormAttendanceRepository) ListSubmitted(ctx context.Context, date clock.Date, projectIDs []string) (map[string]bool, error) {
	submitted := make(map[string]bool, len(projectIDs))
	if len(projectIDs) == 0 {
		return submitted, nil
	}

	var ids []string
	err := r.db.WithContext(ctx).Model(&models.AttendanceSubmission{}).
		Where("work_date = ? AND project_id IN ?", date.String(), projectIDs).
		Pluck("project_id", &ids).Error
	if err != nil {
		r.logger.WithError(err).Error("Failed to list attendance submissions")
		return nil, err
	}

	for _, id := range ids {
		submitted[id] = true
	}
	return submitted, nil
}

func (r *GormAttendanceRepository) CountByDate(ctx context.Context, date clock.Date, projectID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Attendance{}).
		Where("work_date = ? AND project_id = ?", date.String(), projectID).
		Count(&count).Error
	if err != nil {
		r.logger.WithError(err).Error("Failed to count attendance")
		return 0, err
	}
	return count, nil
}

func (r *GormAttendanceRepository) Summaries(ctx context.Context, upTo clock.Date, projectIDs []string) (map[string]AttendanceSummary, error) {
	result := make(map[string]AttendanceSummary, len(projectIDs))
	if len(projectIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		ProjectID string
		ManDays   int64
		LastDate  string
	}
	err := r.db.WithContext(ctx).Model(&models.Attendance{}).
		Select("project_id, COUNT(*) AS man_days, MAX(work_date) AS last_date").
		Where("work_date <= ? AND project_id IN ?", upTo.String(), projectIDs).
		Group("project_id").
		Scan(&rows).Error
	if err != nil {
		r.logger.WithError(err).Error("Failed to summarise attendance")
		return nil, err
	}

	for _, row := range rows {
		summary := AttendanceSummary{ProjectID: row.ProjectID, ManDays: int(row.ManDays)}
		if d, err := clock.ParseDate(row.LastDate); err == nil {
			summary.LastDate = d
		}
		result[row.ProjectID] = summary
	}
	return result, nil
}
