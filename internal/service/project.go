package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"crew-scheduler/internal/clock"
	"crew-scheduler/internal/logger"
	"crew-scheduler/internal/metrics"
	"crew-scheduler/internal/models"
	"crew-scheduler/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Target of an explicit status edit. Completed is not a projectStatus value
// but closes the project.
const TargetCompleted = "completed"

const (
	minPendingReason = 5
	maxPendingReason = 300
)

type ProjectInput struct {
	JobID        string
	Name         string
	Location     string
	SalesName    string
	PresalesName string
	StartDate    clock.Date
	Deadline     clock.Date
	SigmaTeknisi int
	SigmaHari    int
	SigmaManDays int
}

// ProjectView is a project as listed for a reference date.
type ProjectView struct {
	ID              string     `json:"id"`
	JobID           string     `json:"job_id"`
	Name            string     `json:"name"`
	Location        string     `json:"lokasi"`
	SalesName       string     `json:"sales_name"`
	PresalesName    string     `json:"presales_name"`
	Status          string     `json:"status"`
	ProjectStatus   string     `json:"project_status"`
	PendingReason   *string    `json:"pending_reason"`
	StartDate       clock.Date `json:"tanggal_mulai"`
	Deadline        clock.Date `json:"tanggal_deadline"`
	SigmaTeknisi    int        `json:"sigma_teknisi"`
	SigmaHari       int        `json:"sigma_hari"`
	SigmaManDays    int        `json:"sigma_man_days"`
	DaysElapsed     int        `json:"days_elapsed"`
	PausedDays      int        `json:"paused_days"`
	ActualManDays   int        `json:"actual_man_days"`
	AssignmentCount int        `json:"assignment_count"`
	LeaderCount     int        `json:"leader_count"`
	CreatedAt       time.Time  `json:"created_at"`
}

type ProjectService struct {
	db    *gorm.DB
	repos Repositories
	clock clock.Authority
	locks *ProjectLocks

	metrics *metrics.Metrics
	logger  *logrus.Logger

	Now func() time.Time
}

func NewProjectService(
	db *gorm.DB,
	repos Repositories,
	auth clock.Authority,
	locks *ProjectLocks,
	m *metrics.Metrics,
	log *logrus.Logger,
) *ProjectService {
	if locks == nil {
		locks = NewProjectLocks()
	}
	return &ProjectService{
		db:      db,
		repos:   repos,
		clock:   auth,
		locks:   locks,
		metrics: m,
		logger:  logger.OrDefault(log),
		Now:     time.Now,
	}
}

func (s *ProjectService) Create(ctx context.Context, in ProjectInput) (*ProjectView, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, validation("name", "is required")
	}
	if in.StartDate.IsZero() {
		return nil, validation("tanggal_mulai", "is required")
	}
	if in.Deadline.IsZero() {
		return nil, validation("tanggal_deadline", "is required")
	}
	if in.Deadline.Before(in.StartDate) {
		return nil, validation("tanggal_deadline", "must not be before tanggal_mulai")
	}
	if in.SigmaTeknisi < 0 || in.SigmaHari < 0 || in.SigmaManDays < 0 {
		return nil, validation("sigma", "targets must not be negative")
	}

	id := uuid.NewString()
	jobID := strings.TrimSpace(in.JobID)
	if jobID == "" {
		jobID = generateJobID(in.StartDate, id)
	}

	project := &models.Project{
		ID:            id,
		JobID:         jobID,
		Name:          in.Name,
		Location:      strings.TrimSpace(in.Location),
		SalesName:     strings.TrimSpace(in.SalesName),
		PresalesName:  strings.TrimSpace(in.PresalesName),
		StartDate:     in.StartDate,
		Deadline:      in.Deadline,
		SigmaTeknisi:  in.SigmaTeknisi,
		SigmaHari:     in.SigmaHari,
		SigmaManDays:  in.SigmaManDays,
		Status:        models.StatusOngoing,
		ProjectStatus: models.ProjectStatusUnassigned,
	}

	if err := s.repos.Projects.Create(ctx, project); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, validation("job_id", "%q already exists", jobID)
		case errors.Is(err, repository.ErrInvalidRecord):
			return nil, validation("project", "is invalid")
		}
		return nil, persistence("create project", err)
	}

	s.logger.WithFields(logrus.Fields{
		"id":     project.ID,
		"job_id": project.JobID,
	}).Info("Project registered")

	view := s.view(project, nil, s.clock.EffectiveDate(s.Now()), repository.AttendanceSummary{}, nil)
	return &view, nil
}

// generateJobID derives a readable code from the start date and the id.
func generateJobID(start clock.Date, id string) string {
	compact := strings.ReplaceAll(start.String(), "-", "")
	return fmt.Sprintf("JOB-%s-%s", compact, strings.ToUpper(id[:6]))
}

// List returns open projects for the reference date, newest first.
func (s *ProjectService) List(ctx context.Context, on clock.Date) ([]ProjectView, error) {
	if on.IsZero() {
		return nil, validation("date", "is required")
	}

	projects, err := s.repos.Projects.ListOpen(ctx, on)
	if err != nil {
		return nil, persistence("list projects", err)
	}
	if len(projects) == 0 {
		return []ProjectView{}, nil
	}

	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}

	summaries, err := s.repos.Attendance.Summaries(ctx, on, ids)
	if err != nil {
		return nil, persistence("summarise attendance", err)
	}
	memberships, err := s.repos.Memberships.ListActive(ctx, ids)
	if err != nil {
		return nil, persistence("list memberships", err)
	}
	pauses, err := s.repos.Projects.ListPauses(ctx, ids)
	if err != nil {
		return nil, persistence("list project pauses", err)
	}
	crew := make(map[string][]models.Membership, len(projects))
	for _, m := range memberships {
		crew[m.ProjectID] = append(crew[m.ProjectID], m)
	}

	views := make([]ProjectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, s.view(p, pauses[p.ID], on, summaries[p.ID], crew[p.ID]))
	}
	return views, nil
}

// Get returns one project as seen on the reference date.
func (s *ProjectService) Get(ctx context.Context, id string, on clock.Date) (*ProjectView, error) {
	project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	summaries, err := s.repos.Attendance.Summaries(ctx, on, []string{id})
	if err != nil {
		return nil, persistence("summarise attendance", err)
	}
	crew, err := s.repos.Memberships.ListActive(ctx, []string{id})
	if err != nil {
		return nil, persistence("list memberships", err)
	}

	pauses, err := s.repos.Projects.ListPauses(ctx, []string{id})
	if err != nil {
		return nil, persistence("list project pauses", err)
	}

	view := s.view(project, pauses[id], on, summaries[id], crew)
	return &view, nil
}

func (s *ProjectService) view(p *models.Project, pauses []models.ProjectPause, on clock.Date, summary repository.AttendanceSummary, crew []models.Membership) ProjectView {
	elapsed := ElapsedDays(p, pauses, on, summary.LastDate, s.clock)

	leaders := 0
	for _, m := range crew {
		if m.IsLeader {
			leaders++
		}
	}

	return ProjectView{
		ID:              p.ID,
		JobID:           p.JobID,
		Name:            p.Name,
		Location:        p.Location,
		SalesName:       p.SalesName,
		PresalesName:    p.PresalesName,
		Status:          ProgressStatus(p, elapsed, on),
		ProjectStatus:   p.ProjectStatus,
		PendingReason:   p.PendingReason,
		StartDate:       p.StartDate,
		Deadline:        p.Deadline,
		SigmaTeknisi:    p.SigmaTeknisi,
		SigmaHari:       p.SigmaHari,
		SigmaManDays:    p.SigmaManDays,
		DaysElapsed:     elapsed,
		PausedDays:      p.PausedDays,
		ActualManDays:   summary.ManDays,
		AssignmentCount: len(crew),
		LeaderCount:     leaders,
		CreatedAt:       p.CreatedAt,
	}
}

// SetProjectStatus is the manual status override. Pending needs a reason and
// stops elapsed-day counting; leaving pending books the paused days. Completed
// closes the project and retires its memberships.
func (s *ProjectService) SetProjectStatus(ctx context.Context, projectID, status, reason string) error {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return validation("projectId", "is required")
	}

	reason = strings.TrimSpace(reason)
	switch status {
	case models.ProjectStatusUnassigned, models.ProjectStatusOngoing, TargetCompleted:
	case models.ProjectStatusPending:
		n := utf8.RuneCountInString(reason)
		if n < minPendingReason || n > maxPendingReason {
			return validation("reason", "must be %d to %d characters", minPendingReason, maxPendingReason)
		}
	default:
		return validation("status", "unknown status %q", status)
	}

	unlock := s.locks.Lock(projectID)
	defer unlock()

	now := s.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		projects := s.repos.Projects.WithTx(tx)

		project, err := projects.GetByID(ctx, projectID)
		if err != nil {
			return err
		}
		if project == nil {
			return &NotFoundError{Entity: "project", ID: projectID}
		}
		if project.IsCompleted() {
			return &ConflictError{ProjectID: projectID, Reason: "completed"}
		}

		fields := map[string]interface{}{}
		if project.IsPending() && status != models.ProjectStatusPending {
			if pause, ok := s.closePause(project, now); ok {
				if err := projects.AddPause(ctx, &pause); err != nil {
					return err
				}
				fields["paused_days"] = project.PausedDays + pause.Days()
			}
		}

		switch status {
		case TargetCompleted:
			fields["status"] = models.StatusCompleted
			fields["project_status"] = models.ProjectStatusUnassigned
			fields["pending_reason"] = nil
			fields["pending_since"] = nil
			fields["closed_at"] = now
			removed, err := s.repos.Memberships.WithTx(tx).RemoveAll(ctx, projectID, now)
			if err != nil {
				return err
			}
			s.logger.WithFields(logrus.Fields{
				"project_id": projectID,
				"removed":    removed,
			}).Info("Project sealed")
		case models.ProjectStatusPending:
			fields["project_status"] = models.ProjectStatusPending
			fields["pending_reason"] = reason
			if !project.IsPending() || project.PendingSince == nil {
				fields["pending_since"] = now
			}
		default:
			fields["project_status"] = status
			fields["pending_reason"] = nil
			fields["pending_since"] = nil
		}

		return projects.Update(ctx, projectID, fields)
	})
	if err != nil {
		var notFound *NotFoundError
		var conflict *ConflictError
		if errors.As(err, &notFound) || errors.As(err, &conflict) {
			return err
		}
		s.logger.WithError(err).WithField("project_id", projectID).Error("Failed to set project status")
		return persistence("set project status", err)
	}

	s.metrics.StatusChanged(status)
	s.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"status":     status,
	}).Info("Project status set")
	return nil
}

// closePause turns the running pending period into a pause covering the
// effective days from entering pending up to the day before now.
func (s *ProjectService) closePause(p *models.Project, now time.Time) (models.ProjectPause, bool) {
	if p.PendingSince == nil {
		return models.ProjectPause{}, false
	}
	first := s.clock.EffectiveDate(*p.PendingSince)
	last := s.clock.EffectiveDate(now).AddDays(-1)
	if last.Before(first) {
		return models.ProjectPause{}, false
	}

	pause := models.ProjectPause{ProjectID: p.ID, FirstDay: first, LastDay: last}
	if p.PendingReason != nil {
		pause.Reason = *p.PendingReason
	}
	return pause, true
}

// ReportRef returns the job code the report generator needs.
func (s *ProjectService) ReportRef(ctx context.Context, projectID string) (string, error) {
	project, err := s.load(ctx, projectID)
	if err != nil {
		return "", err
	}
	return project.JobID, nil
}

// History lists the removed memberships of a project, most recent first.
func (s *ProjectService) History(ctx context.Context, projectID string) ([]models.MembershipHistory, error) {
	if _, err := s.load(ctx, projectID); err != nil {
		return nil, err
	}
	rows, err := s.repos.Memberships.History(ctx, projectID)
	if err != nil {
		return nil, persistence("list membership history", err)
	}
	return rows, nil
}

func (s *ProjectService) load(ctx context.Context, projectID string) (*models.Project, error) {
	project, err := s.repos.Projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, persistence("get project", err)
	}
	if project == nil {
		return nil, &NotFoundError{Entity: "project", ID: projectID}
	}
	return project, nil
}
