package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"crew-scheduler/internal/clock"
	"crew-scheduler/internal/logger"
	"crew-scheduler/internal/metrics"
	"crew-scheduler/internal/models"
	"crew-scheduler/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Reasons a project is left untouched by a submission.
const (
	SkipLocked   = "locked"
	SkipNotFound = "not_found"
)

// EffectiveAssignment is one selected cell of the day's assignment grid.
type EffectiveAssignment struct {
	ProjectID      string `json:"projectId"`
	TechnicianID   string `json:"technicianId"`
	TechnicianCode string `json:"technicianCode"`
	TechnicianName string `json:"technicianName"`
	Initials       string `json:"initial"`
	IsSelected     bool   `json:"isSelected"`
	IsLeader       bool   `json:"isProjectLeader"`
}

// AssignmentItem is one submitted cell. A nil IsSelected counts as selected.
type AssignmentItem struct {
	ProjectID    string
	TechnicianID string
	IsSelected   *bool
	IsLeader     bool
}

func (i AssignmentItem) selected() bool {
	return i.IsSelected == nil || *i.IsSelected
}

type ProjectOutcome struct {
	ProjectID          string   `json:"projectId"`
	Applied            int      `json:"applied"`
	ProjectStatus      string   `json:"projectStatus,omitempty"`
	Leader             string   `json:"leader,omitempty"`
	Skipped            string   `json:"skipped,omitempty"`
	UnknownTechnicians []string `json:"unknownTechnicians,omitempty"`
	Error              string   `json:"error,omitempty"`
}

type SubmitResult struct {
	AppliedCount int              `json:"count"`
	Projects     []ProjectOutcome `json:"projects"`
}

// selection is the part of a submission that concerns one project.
type selection struct {
	mentioned bool
	members   []string
	present   []string
	leaders   []string
}

type AssignmentService struct {
	db    *gorm.DB
	repos Repositories
	clock clock.Authority
	locks *ProjectLocks

	metrics *metrics.Metrics
	logger  *logrus.Logger
}

func NewAssignmentService(
	db *gorm.DB,
	repos Repositories,
	auth clock.Authority,
	locks *ProjectLocks,
	m *metrics.Metrics,
	log *logrus.Logger,
) *AssignmentService {
	if locks == nil {
		locks = NewProjectLocks()
	}
	return &AssignmentService{
		db:      db,
		repos:   repos,
		clock:   auth,
		locks:   locks,
		metrics: m,
		logger:  logger.OrDefault(log),
	}
}

// GetEffectiveAssignments resolves who works where on date. Projects with an
// explicit attendance row set for date use exactly that set, even an empty
// one; active projects without one carry the previous day's set forward. Only selected cells are
// returned, and a leader is only flagged on a selected cell.
func (s *AssignmentService) GetEffectiveAssignments(ctx context.Context, date clock.Date) ([]EffectiveAssignment, error) {
	if date.IsZero() {
		return nil, validation("date", "is required")
	}

	memberships, err := s.repos.Memberships.ListActive(ctx, nil)
	if err != nil {
		return nil, persistence("list memberships", err)
	}
	if len(memberships) == 0 {
		return []EffectiveAssignment{}, nil
	}

	projects, err := s.repos.Projects.ListActiveOn(ctx, date)
	if err != nil {
		return nil, persistence("list active projects", err)
	}
	active := make(map[string]bool, len(projects))
	activeIDs := make([]string, 0, len(projects))
	for _, p := range projects {
		active[p.ID] = true
		activeIDs = append(activeIDs, p.ID)
	}
	if len(activeIDs) == 0 {
		return []EffectiveAssignment{}, nil
	}

	today, err := s.repos.Attendance.ListByDate(ctx, date, activeIDs)
	if err != nil {
		return nil, persistence("list attendance", err)
	}
	previous, err := s.repos.Attendance.ListByDate(ctx, date.AddDays(-1), activeIDs)
	if err != nil {
		return nil, persistence("list previous attendance", err)
	}

	submitted, err := s.repos.Attendance.ListSubmitted(ctx, date, activeIDs)
	if err != nil {
		return nil, persistence("list attendance submissions", err)
	}

	selected := resolveSelection(activeIDs, today, previous, submitted)

	techIDs := make([]string, 0, len(memberships))
	for _, m := range memberships {
		techIDs = append(techIDs, m.TechnicianID)
	}
	technicians, err := s.repos.Technicians.ListByIDs(ctx, techIDs)
	if err != nil {
		return nil, persistence("list technicians", err)
	}

	result := make([]EffectiveAssignment, 0, len(selected))
	for _, m := range memberships {
		if !active[m.ProjectID] || !selected[m.Key()] {
			continue
		}
		result = append(result, shapeAssignment(m, technicians[m.TechnicianID]))
	}

	s.logger.WithFields(logrus.Fields{
		"date":     date.String(),
		"projects": len(activeIDs),
		"cells":    len(result),
	}).Debug("Resolved effective assignments")
	return result, nil
}

// resolveSelection returns the effective project::technician set. A project
// that has any row on the day, or whose day was submitted empty, ignores the
// previous day entirely.
func resolveSelection(activeIDs []string, today, previous []models.Attendance, submitted map[string]bool) map[string]bool {
	selected := make(map[string]bool, len(today)+len(previous))
	explicit := make(map[string]bool, len(activeIDs))
	for id := range submitted {
		explicit[id] = true
	}
	for _, row := range today {
		selected[row.Key()] = true
		explicit[row.ProjectID] = true
	}

	active := make(map[string]bool, len(activeIDs))
	for _, id := range activeIDs {
		active[id] = true
	}
	for _, row := range previous {
		if active[row.ProjectID] && !explicit[row.ProjectID] {
			selected[row.Key()] = true
		}
	}
	return selected
}

func shapeAssignment(m models.Membership, t *models.Technician) EffectiveAssignment {
	out := EffectiveAssignment{
		ProjectID:      m.ProjectID,
		TechnicianID:   m.TechnicianID,
		TechnicianCode: m.TechnicianID,
		Initials:       "?",
		IsSelected:     true,
		IsLeader:       m.IsLeader,
	}
	if t != nil {
		out.TechnicianCode = t.Code
		out.TechnicianName = t.Name
		out.Initials = t.DisplayInitials()
	}
	return out
}

// SubmitAssignments records the admin's selection for date. Each project in
// scope is written in its own transaction; a locked, unknown or failing
// project never affects its siblings. scope defaults to the projects named
// by items; items for projects outside an explicit scope are ignored.
func (s *AssignmentService) SubmitAssignments(ctx context.Context, date clock.Date, scope []string, items []AssignmentItem) (*SubmitResult, error) {
	if date.IsZero() {
		return nil, validation("date", "is required")
	}
	for i, it := range items {
		if strings.TrimSpace(it.ProjectID) == "" || strings.TrimSpace(it.TechnicianID) == "" {
			return nil, validation("assignments", "item %d needs projectId and technicianId", i)
		}
	}

	byProject, mentionedOrder := groupItems(items)
	scope = normaliseScope(scope, mentionedOrder)

	result := &SubmitResult{Projects: make([]ProjectOutcome, 0, len(scope))}
	if len(scope) == 0 {
		return result, nil
	}

	projects, err := s.repos.Projects.ListByIDs(ctx, scope)
	if err != nil {
		return nil, persistence("load projects", err)
	}

	var techIDs []string
	for _, id := range scope {
		if sel := byProject[id]; sel != nil {
			techIDs = append(techIDs, sel.members...)
		}
	}
	technicians, err := s.repos.Technicians.ListByIDs(ctx, techIDs)
	if err != nil {
		return nil, persistence("load technicians", err)
	}

	for _, projectID := range scope {
		outcome := ProjectOutcome{ProjectID: projectID}

		project := projects[projectID]
		switch {
		case project == nil:
			outcome.Skipped = SkipNotFound
			s.metrics.ProjectSkipped(SkipNotFound)
			s.logger.WithField("project_id", projectID).Warn("Submission names unknown project")
		case project.IsLocked():
			outcome.Skipped = SkipLocked
			s.metrics.ProjectSkipped(SkipLocked)
			s.logger.WithField("project_id", projectID).Warn("Submission skipped locked project")
		default:
			sel, unknown := byProject[projectID].known(technicians)
			outcome.UnknownTechnicians = unknown
			if len(unknown) > 0 {
				s.logger.WithFields(logrus.Fields{
					"project_id":  projectID,
					"technicians": unknown,
				}).Warn("Submission names unknown technicians")
			}
			s.applyProject(ctx, date, projectID, sel, &outcome)
		}

		result.AppliedCount += outcome.Applied
		result.Projects = append(result.Projects, outcome)
	}

	s.metrics.PairsApplied(result.AppliedCount)
	s.logger.WithFields(logrus.Fields{
		"date":     date.String(),
		"projects": len(scope),
		"applied":  result.AppliedCount,
	}).Info("Assignments submitted")
	return result, nil
}

// applyProject writes one project's part of a submission atomically. The
// project is re-read under its lock so a concurrent status edit wins.
func (s *AssignmentService) applyProject(ctx context.Context, date clock.Date, projectID string, sel selection, outcome *ProjectOutcome) {
	unlock := s.locks.Lock(projectID)
	defer unlock()

	at := s.clock.StartOfDay(date)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		projects := s.repos.Projects.WithTx(tx)
		memberships := s.repos.Memberships.WithTx(tx)
		attendance := s.repos.Attendance.WithTx(tx)

		project, err := projects.GetByID(ctx, projectID)
		if err != nil {
			return err
		}
		if project == nil {
			return &NotFoundError{Entity: "project", ID: projectID}
		}
		if project.IsLocked() {
			return &ConflictError{ProjectID: projectID, Reason: lockReason(project)}
		}

		if _, err := memberships.Sync(ctx, projectID, sel.members, at); err != nil {
			return err
		}

		leader := ""
		if len(sel.leaders) > 0 {
			if leader, err = memberships.SetLeader(ctx, projectID, sel.leaders); err != nil {
				return err
			}
		} else if leader, err = currentLeader(ctx, memberships, projectID); err != nil {
			return err
		}
		outcome.Leader = leader

		if sel.mentioned {
			rows := make([]models.Attendance, 0, len(sel.present))
			for _, techID := range sel.present {
				rows = append(rows, models.Attendance{
					ProjectID:    projectID,
					TechnicianID: techID,
					IsLeader:     techID == leader,
				})
			}
			n, err := attendance.Replace(ctx, date, []string{projectID}, rows)
			if err != nil {
				return err
			}
			outcome.Applied = n
		}

		status, err := s.recomputeStatus(ctx, projects, attendance, project, date)
		if err != nil {
			return err
		}
		outcome.ProjectStatus = status
		return nil
	})

	var conflict *ConflictError
	var missing *NotFoundError
	switch {
	case err == nil:
	case errors.As(err, &conflict):
		outcome.Skipped = SkipLocked
		s.metrics.ProjectSkipped(SkipLocked)
	case errors.As(err, &missing):
		outcome.Skipped = SkipNotFound
		s.metrics.ProjectSkipped(SkipNotFound)
	default:
		outcome.Applied = 0
		outcome.ProjectStatus = ""
		outcome.Leader = ""
		outcome.Error = persistence("submit project "+projectID, err).Error()
		s.metrics.ProjectFailed()
		s.logger.WithError(err).WithField("project_id", projectID).Error("Project submission rolled back")
	}
}

// recomputeStatus sets projectStatus from the post-write attendance of date.
// Pending projects never reach this point.
func (s *AssignmentService) recomputeStatus(
	ctx context.Context,
	projects repository.ProjectRepository,
	attendance repository.AttendanceRepository,
	project *models.Project,
	date clock.Date,
) (string, error) {
	count, err := attendance.CountByDate(ctx, date, project.ID)
	if err != nil {
		return "", err
	}

	status := models.ProjectStatusUnassigned
	if count > 0 {
		status = models.ProjectStatusOngoing
	}
	if status == project.ProjectStatus {
		return status, nil
	}
	if err := projects.SetProjectStatus(ctx, project.ID, status); err != nil {
		return "", err
	}

	s.logger.WithFields(logrus.Fields{
		"project_id": project.ID,
		"from":       project.ProjectStatus,
		"to":         status,
	}).Info("Project status recomputed")
	return status, nil
}

// GetAttendance returns the raw rows recorded for date.
func (s *AssignmentService) GetAttendance(ctx context.Context, date clock.Date, projectIDs []string) ([]models.Attendance, error) {
	if date.IsZero() {
		return nil, validation("date", "is required")
	}
	rows, err := s.repos.Attendance.ListByDate(ctx, date, projectIDs)
	if err != nil {
		return nil, persistence("list attendance", err)
	}
	return rows, nil
}

func currentLeader(ctx context.Context, memberships repository.MembershipRepository, projectID string) (string, error) {
	rows, err := memberships.ListActive(ctx, []string{projectID})
	if err != nil {
		return "", err
	}
	for _, m := range rows {
		if m.IsLeader {
			return m.TechnicianID, nil
		}
	}
	return "", nil
}

func lockReason(p *models.Project) string {
	if p.IsCompleted() {
		return "completed"
	}
	return "pending"
}

// groupItems splits items per project, keeping first-seen order. Every
// technician named for a project stays a member; only selected ones count as
// present for the day.
func groupItems(items []AssignmentItem) (map[string]*selection, []string) {
	byProject := make(map[string]*selection)
	var order []string
	seen := make(map[string]bool)

	for _, it := range items {
		sel, ok := byProject[it.ProjectID]
		if !ok {
			sel = &selection{mentioned: true}
			byProject[it.ProjectID] = sel
			order = append(order, it.ProjectID)
		}
		key := models.PairKey(it.ProjectID, it.TechnicianID)
		if !seen[key] {
			seen[key] = true
			sel.members = append(sel.members, it.TechnicianID)
		}
		if it.selected() && !slices.Contains(sel.present, it.TechnicianID) {
			sel.present = append(sel.present, it.TechnicianID)
		}
		if it.IsLeader && !slices.Contains(sel.leaders, it.TechnicianID) {
			sel.leaders = append(sel.leaders, it.TechnicianID)
		}
	}
	return byProject, order
}

// known drops technicians that do not exist and reports them.
func (sel *selection) known(technicians map[string]*models.Technician) (selection, []string) {
	if sel == nil {
		return selection{}, nil
	}

	out := selection{mentioned: sel.mentioned}
	var unknown []string
	for _, id := range sel.members {
		if technicians[id] == nil {
			unknown = append(unknown, id)
			continue
		}
		out.members = append(out.members, id)
	}
	for _, id := range sel.present {
		if technicians[id] != nil {
			out.present = append(out.present, id)
		}
	}
	for _, id := range sel.leaders {
		if technicians[id] != nil {
			out.leaders = append(out.leaders, id)
		}
	}
	return out, unknown
}

func normaliseScope(scope, mentioned []string) []string {
	if len(scope) == 0 {
		return mentioned
	}
	out := make([]string, 0, len(scope))
	seen := make(map[string]bool, len(scope))
	for _, id := range scope {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
