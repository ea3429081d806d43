package service

import (
	"time"

	"crew-scheduler/internal/clock"
	"crew-scheduler/internal/logger"
	"crew-scheduler/internal/metrics"
	"crew-scheduler/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Repositories struct {
	Technicians repository.TechnicianRepository
	Projects    repository.ProjectRepository
	Memberships repository.MembershipRepository
	Attendance  repository.AttendanceRepository
	DayMarkers  repository.DayMarkerRepository
}

// NewRepositories builds every gorm repository, migrating their tables.
func NewRepositories(db *gorm.DB, log *logrus.Logger) (Repositories, error) {
	var repos Repositories

	technicians, err := repository.NewGormTechnicianRepository(db, log)
	if err != nil {
		return repos, err
	}
	projects, err := repository.NewGormProjectRepository(db, log)
	if err != nil {
		return repos, err
	}
	memberships, err := repository.NewGormMembershipRepository(db, log)
	if err != nil {
		return repos, err
	}
	attendance, err := repository.NewGormAttendanceRepository(db, log)
	if err != nil {
		return repos, err
	}
	markers, err := repository.NewGormDayMarkerRepository(db, log)
	if err != nil {
		return repos, err
	}

	repos.Technicians = technicians
	repos.Projects = projects
	repos.Memberships = memberships
	repos.Attendance = attendance
	repos.DayMarkers = markers
	return repos, nil
}

// Services bundles everything the transports need.
type Services struct {
	Assignments *AssignmentService
	Projects    *ProjectService
	Technicians *TechnicianService
	Days        *DayService
	Clock       clock.Authority
}

// Options carries the optional collaborators of New.
type Options struct {
	Metrics *metrics.Metrics
	Logger  *logrus.Logger
	Now     func() time.Time
}

func New(db *gorm.DB, repos Repositories, auth clock.Authority, opts Options) *Services {
	log := logger.OrDefault(opts.Logger)
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	locks := NewProjectLocks()

	assignments := NewAssignmentService(db, repos, auth, locks, opts.Metrics, log)

	projects := NewProjectService(db, repos, auth, locks, opts.Metrics, log)
	projects.Now = now

	technicians := NewTechnicianService(db, repos, log)
	technicians.Now = now

	days := NewDayService(repos.DayMarkers, assignments, auth, opts.Metrics, log)
	days.Now = now

	return &Services{
		Assignments: assignments,
		Projects:    projects,
		Technicians: technicians,
		Days:        days,
		Clock:       auth,
	}
}
