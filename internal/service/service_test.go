package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"crew-scheduler/internal/clock"
	"crew-scheduler/internal/logger"
	"crew-scheduler/internal/metrics"
	"crew-scheduler/internal/models"
	"crew-scheduler/internal/storage"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	db    *gorm.DB
	repos Repositories
	svc   *Services
	auth  clock.Authority
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Discard()

	db, err := storage.Open(storage.DriverSQLite, filepath.Join(t.TempDir(), "scheduler.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	repos, err := NewRepositories(db, log)
	require.NoError(t, err)

	auth, err := clock.NewAuthority("Asia/Jakarta", 5)
	require.NoError(t, err)

	f := &fixture{t: t, ctx: context.Background(), db: db, repos: repos, auth: auth}
	f.svc = New(db, repos, auth, Options{
		Metrics: metrics.New(),
		Logger:  log,
		Now:     func() time.Time { return f.now },
	})
	f.setDay("2024-01-01")
	return f
}

// setDay moves the wall clock to 10:00 local time on day.
func (f *fixture) setDay(day string) {
	d := clock.MustParseDate(day)
	f.now = d.StartOf(f.auth.Location).Add(10 * time.Hour)
}

func (f *fixture) technician(code, name string) string {
	f.t.Helper()
	v, err := f.svc.Technicians.Create(f.ctx, TechnicianInput{Code: code, Name: name})
	require.NoError(f.t, err)
	return v.ID
}

func (f *fixture) project(name, start string, sigmaHari int) string {
	f.t.Helper()
	startDate := clock.MustParseDate(start)
	v, err := f.svc.Projects.Create(f.ctx, ProjectInput{
		Name:         name,
		StartDate:    startDate,
		Deadline:     startDate.AddDays(60),
		SigmaTeknisi: 2,
		SigmaHari:    sigmaHari,
	})
	require.NoError(f.t, err)
	return v.ID
}

func (f *fixture) submit(day string, scope []string, items ...AssignmentItem) *SubmitResult {
	f.t.Helper()
	res, err := f.svc.Assignments.SubmitAssignments(f.ctx, clock.MustParseDate(day), scope, items)
	require.NoError(f.t, err)
	return res
}

// effective returns "tech" or "tech*" (leader) per selected cell of the project.
func (f *fixture) effective(day, projectID string) []string {
	f.t.Helper()
	rows, err := f.svc.Assignments.GetEffectiveAssignments(f.ctx, clock.MustParseDate(day))
	require.NoError(f.t, err)

	var out []string
	for _, r := range rows {
		if r.ProjectID != projectID {
			continue
		}
		cell := r.TechnicianID
		if r.IsLeader {
			cell += "*"
		}
		out = append(out, cell)
	}
	return out
}

func (f *fixture) activeMembers(projectID string) map[string]bool {
	f.t.Helper()
	rows, err := f.repos.Memberships.ListActive(f.ctx, []string{projectID})
	require.NoError(f.t, err)
	out := make(map[string]bool, len(rows))
	for _, m := range rows {
		out[m.TechnicianID] = m.IsLeader
	}
	return out
}

func (f *fixture) loadProject(id string) *models.Project {
	f.t.Helper()
	p, err := f.repos.Projects.GetByID(f.ctx, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, p)
	return p
}

func (f *fixture) elapsed(id, day string) int {
	f.t.Helper()
	v, err := f.svc.Projects.Get(f.ctx, id, clock.MustParseDate(day))
	require.NoError(f.t, err)
	return v.DaysElapsed
}

func item(projectID, technicianID string) AssignmentItem {
	return AssignmentItem{ProjectID: projectID, TechnicianID: technicianID}
}

func leader(projectID, technicianID string) AssignmentItem {
	return AssignmentItem{ProjectID: projectID, TechnicianID: technicianID, IsLeader: true}
}

func unselected(projectID, technicianID string) AssignmentItem {
	off := false
	return AssignmentItem{ProjectID: projectID, TechnicianID: technicianID, IsSelected: &off}
}
