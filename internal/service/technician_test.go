package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTechnicianDirectory(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.Technicians.Create(f.ctx, TechnicianInput{Code: "TK-02", Name: "budi"})
	require.NoError(t, err)
	assert.Equal(t, "B", b.Initial)

	a, err := f.svc.Technicians.Create(f.ctx, TechnicianInput{Code: "TK-01", Name: "Andi Wijaya", Initials: "aw"})
	require.NoError(t, err)
	assert.Equal(t, "AW", a.Initial)

	_, err = f.svc.Technicians.Create(f.ctx, TechnicianInput{Code: "TK-01", Name: "Again"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "code", verr.Field)

	_, err = f.svc.Technicians.Create(f.ctx, TechnicianInput{Code: "TK-09", Name: "Too", Initials: "ABC"})
	assert.True(t, errors.As(err, &verr))

	list, err := f.svc.Technicians.List(f.ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "TK-01", list[0].Code)

	updated, err := f.svc.Technicians.Update(f.ctx, b.ID, TechnicianInput{Name: "Budi Santoso", Initials: "bs"})
	require.NoError(t, err)
	assert.Equal(t, "Budi Santoso", updated.Name)
	assert.Equal(t, "BS", updated.Initial)

	_, err = f.svc.Technicians.Update(f.ctx, "missing", TechnicianInput{Name: "x"})
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestDeleteTechnicianRetiresMemberships(t *testing.T) {
	f := newFixture(t)
	a := f.technician("TK-01", "Andi")
	b := f.technician("TK-02", "Budi")
	p := f.project("P", "2024-01-01", 0)

	f.submit("2024-01-01", nil, leader(p, a), item(p, b))
	require.NoError(t, f.svc.Technicians.Delete(f.ctx, a))

	assert.Equal(t, map[string]bool{b: false}, f.activeMembers(p))
	history, err := f.svc.Projects.History(f.ctx, p)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, a, history[0].TechnicianID)

	err = f.svc.Technicians.Delete(f.ctx, a)
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestTechnicianJobs(t *testing.T) {
	f := newFixture(t)
	a := f.technician("TK-01", "Andi")
	b := f.technician("TK-02", "Budi")
	c := f.technician("TK-03", "Citra")
	p := f.project("P", "2024-01-01", 0)
	q := f.project("Q", "2024-01-01", 0)

	f.submit("2024-01-01", nil, leader(p, a), item(p, b), item(p, c), unselected(q, a))

	jobs, err := f.svc.Technicians.Jobs(f.ctx, "TK-01")
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	byID := map[string]Job{}
	for _, j := range jobs {
		byID[j.ID] = j
	}

	require.NotNil(t, byID[p].Progress)
	assert.Equal(t, 100, *byID[p].Progress, "3 of 2 capped")
	assert.Equal(t, JobInProgress, byID[p].Status)
	assert.Contains(t, byID[p].AssignedTechnicians, CrewMember{Name: "Andi", IsLeader: true})
	assert.Len(t, byID[p].AssignedTechnicians, 3)

	assert.Equal(t, JobNotStarted, byID[q].Status)
	require.NotNil(t, byID[q].Progress)
	assert.Equal(t, 50, *byID[q].Progress)

	byUUID, err := f.svc.Technicians.Jobs(f.ctx, a)
	require.NoError(t, err)
	assert.Len(t, byUUID, 2)

	_, err = f.svc.Technicians.Jobs(f.ctx, "nobody")
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))

	none, err := f.svc.Technicians.Jobs(f.ctx, "TK-03")
	require.NoError(t, err)
	assert.Len(t, none, 1)
}
