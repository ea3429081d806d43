package service

import (
	"errors"
	"strings"
	"testing"

	"crew-scheduler/internal/clock"
	"crew-scheduler/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetProjectStatusValidation(t *testing.T) {
	f := newFixture(t)
	p := f.project("P", "2024-01-01", 0)

	tests := []struct {
		name   string
		id     string
		status string
		reason string
		field  string
	}{
		{"missing id", "", models.ProjectStatusOngoing, "", "projectId"},
		{"unknown status", p, "archived", "", "status"},
		{"empty reason", p, models.ProjectStatusPending, "", "reason"},
		{"reason too short after trim", p, models.ProjectStatusPending, "  abc   ", "reason"},
		{"reason too long", p, models.ProjectStatusPending, strings.Repeat("x", 301), "reason"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.Projects.SetProjectStatus(f.ctx, tt.id, tt.status, tt.reason)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	assert.Equal(t, models.ProjectStatusUnassigned, f.loadProject(p).ProjectStatus)

	err := f.svc.Projects.SetProjectStatus(f.ctx, "missing", models.ProjectStatusOngoing, "")
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestPendingStoresReasonAndSince(t *testing.T) {
	f := newFixture(t)
	p := f.project("P", "2024-01-01", 0)

	require.NoError(t, f.svc.Projects.SetProjectStatus(f.ctx, p, models.ProjectStatusPending, "  menunggu material  "))
	got := f.loadProject(p)
	require.NotNil(t, got.PendingReason)
	assert.Equal(t, "menunggu material", *got.PendingReason)
	require.NotNil(t, got.PendingSince)
	assert.True(t, got.PendingSince.Equal(f.now))

	// a second pending edit only changes the reason
	f.setDay("2024-01-03")
	require.NoError(t, f.svc.Projects.SetProjectStatus(f.ctx, p, models.ProjectStatusPending, "menunggu izin lokasi"))
	got = f.loadProject(p)
	assert.Equal(t, "menunggu izin lokasi", *got.PendingReason)
	assert.Equal(t, "2024-01-01", f.auth.EffectiveDate(*got.PendingSince).String())
	assert.Zero(t, got.PausedDays)

	f.setDay("2024-01-05")
	require.NoError(t, f.svc.Projects.SetProjectStatus(f.ctx, p, models.ProjectStatusUnassigned, ""))
	got = f.loadProject(p)
	assert.Nil(t, got.PendingReason)
	assert.Nil(t, got.PendingSince)
	assert.Equal(t, 4, got.PausedDays)
	assert.Equal(t, models.ProjectStatusUnassigned, got.ProjectStatus)
}

func TestCompletedSealsProject(t *testing.T) {
	f := newFixture(t)
	a := f.technician("TK-01", "Andi")
	b := f.technician("TK-02", "Budi")
	p := f.project("P", "2024-01-01", 0)

	f.submit("2024-01-01", nil, leader(p, a), item(p, b))
	require.NoError(t, f.svc.Projects.SetProjectStatus(f.ctx, p, TargetCompleted, ""))

	got := f.loadProject(p)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, models.ProjectStatusUnassigned, got.ProjectStatus)
	assert.Nil(t, got.PendingReason)
	require.NotNil(t, got.ClosedAt)
	assert.Empty(t, f.activeMembers(p))

	history, err := f.svc.Projects.History(f.ctx, p)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	err = f.svc.Projects.SetProjectStatus(f.ctx, p, models.ProjectStatusOngoing, "")
	var conflict *ConflictError
	assert.True(t, errors.As(err, &conflict))

	// closed projects drop out of the open list
	views, err := f.svc.Projects.List(f.ctx, clock.MustParseDate("2024-01-02"))
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestCompletingPendingProjectBooksPause(t *testing.T) {
	f := newFixture(t)
	p := f.project("P", "2024-01-01", 0)

	f.setDay("2024-01-02")
	require.NoError(t, f.svc.Projects.SetProjectStatus(f.ctx, p, models.ProjectStatusPending, "menunggu material"))
	f.setDay("2024-01-06")
	require.NoError(t, f.svc.Projects.SetProjectStatus(f.ctx, p, TargetCompleted, ""))

	got := f.loadProject(p)
	assert.Equal(t, 4, got.PausedDays)
	assert.Nil(t, got.PendingSince)

	view, err := f.svc.Projects.Get(f.ctx, p, clock.MustParseDate("2024-01-20"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, view.Status)
	assert.Equal(t, 2, view.DaysElapsed, "6 days to closing minus 4 paused")

	pauses, err := f.repos.Projects.ListPauses(f.ctx, []string{p})
	require.NoError(t, err)
	require.Len(t, pauses[p], 1)
	assert.Equal(t, "2024-01-02", pauses[p][0].FirstDay.String())
	assert.Equal(t, "2024-01-05", pauses[p][0].LastDay.String())
	assert.Equal(t, "menunggu material", pauses[p][0].Reason)
}

func TestCreateProject(t *testing.T) {
	f := newFixture(t)

	v, err := f.svc.Projects.Create(f.ctx, ProjectInput{
		Name:         "  Gedung A ",
		Location:     "Bandung",
		StartDate:    clock.MustParseDate("2024-03-01"),
		Deadline:     clock.MustParseDate("2024-03-10"),
		SigmaTeknisi: 3,
		SigmaHari:    10,
		SigmaManDays: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, "Gedung A", v.Name)
	assert.True(t, strings.HasPrefix(v.JobID, "JOB-20240301-"), v.JobID)
	assert.Equal(t, models.StatusOngoing, v.Status)
	assert.Equal(t, models.ProjectStatusUnassigned, v.ProjectStatus)

	_, err = f.svc.Projects.Create(f.ctx, ProjectInput{
		JobID:     v.JobID,
		Name:      "Duplicate",
		StartDate: clock.MustParseDate("2024-03-01"),
		Deadline:  clock.MustParseDate("2024-03-10"),
	})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "job_id", verr.Field)

	invalid := []ProjectInput{
		{StartDate: clock.MustParseDate("2024-03-01"), Deadline: clock.MustParseDate("2024-03-10")},
		{Name: "x", Deadline: clock.MustParseDate("2024-03-10")},
		{Name: "x", StartDate: clock.MustParseDate("2024-03-01")},
		{Name: "x", StartDate: clock.MustParseDate("2024-03-10"), Deadline: clock.MustParseDate("2024-03-01")},
		{Name: "x", StartDate: clock.MustParseDate("2024-03-01"), Deadline: clock.MustParseDate("2024-03-10"), SigmaHari: -1},
	}
	for _, in := range invalid {
		_, err := f.svc.Projects.Create(f.ctx, in)
		assert.True(t, errors.As(err, &verr), "%+v", in)
	}
}

func TestListProjectViews(t *testing.T) {
	f := newFixture(t)
	a := f.technician("TK-01", "Andi")
	b := f.technician("TK-02", "Budi")
	p := f.project("P", "2024-01-01", 3)
	f.project("Later", "2024-02-01", 0)

	f.submit("2024-01-01", nil, leader(p, a), item(p, b))
	f.submit("2024-01-02", nil, item(p, a))

	views, err := f.svc.Projects.List(f.ctx, clock.MustParseDate("2024-01-05"))
	require.NoError(t, err)
	require.Len(t, views, 1)

	v := views[0]
	assert.Equal(t, p, v.ID)
	assert.Equal(t, 5, v.DaysElapsed)
	assert.Equal(t, models.StatusOverdue, v.Status)
	assert.Equal(t, 3, v.ActualManDays)
	assert.Equal(t, 1, v.AssignmentCount)
	assert.Equal(t, 1, v.LeaderCount)

	views, err = f.svc.Projects.List(f.ctx, clock.MustParseDate("2024-01-01"))
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 2, views[0].ActualManDays, "attendance after the reference date is ignored")
	assert.Equal(t, models.StatusOngoing, views[0].Status)
}

func TestReportRef(t *testing.T) {
	f := newFixture(t)
	p := f.project("P", "2024-01-01", 0)

	ref, err := f.svc.Projects.ReportRef(f.ctx, p)
	require.NoError(t, err)
	assert.Equal(t, f.loadProject(p).JobID, ref)

	_, err = f.svc.Projects.ReportRef(f.ctx, "missing")
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
}
