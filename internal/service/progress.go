package service

import (
	"math"

	"crew-scheduler/internal/clock"
	"crew-scheduler/internal/models"
)

// Job status as shown to technicians.
const (
	JobNotStarted = "not-started"
	JobInProgress = "in-progress"
	JobCompleted  = "completed"
)

// ElapsedDays counts the inclusive days from the project start to on, minus
// the paused days that fall inside that range. While a project is pending the
// cutoff stays on the day before it was paused, so the count does not move.
func ElapsedDays(p *models.Project, pauses []models.ProjectPause, on, lastAttendance clock.Date, auth clock.Authority) int {
	if p.StartDate.IsZero() {
		return 0
	}

	cutoff := on
	switch {
	case p.IsPending():
		cutoff = pendingCutoff(p, on, lastAttendance, auth)
	case p.ClosedAt != nil:
		cutoff = clock.Earlier(on, auth.EffectiveDate(*p.ClosedAt))
	}

	n := clock.DaysInclusive(p.StartDate, cutoff) - pausedWithin(pauses, p.StartDate, cutoff)
	if n < 0 {
		return 0
	}
	return n
}

// pausedWithin counts the paused days between start and end inclusive.
func pausedWithin(pauses []models.ProjectPause, start, end clock.Date) int {
	total := 0
	for _, pause := range pauses {
		from, to := pause.FirstDay, clock.Earlier(pause.LastDay, end)
		if from.Before(start) {
			from = start
		}
		total += clock.DaysInclusive(from, to)
	}
	return total
}

func pendingCutoff(p *models.Project, on, lastAttendance clock.Date, auth clock.Authority) clock.Date {
	base := on
	switch {
	case p.PendingSince != nil:
		base = auth.EffectiveDate(*p.PendingSince).AddDays(-1)
	case !lastAttendance.IsZero():
		base = lastAttendance
	}
	return clock.Earlier(clock.Earlier(base, on), p.Deadline)
}

// ProgressStatus derives ongoing / overdue / completed for a reference date.
func ProgressStatus(p *models.Project, elapsed int, on clock.Date) string {
	if p.ClosedAt != nil {
		return models.StatusCompleted
	}
	if p.SigmaHari > 0 && elapsed > p.SigmaHari {
		return models.StatusOverdue
	}
	if !p.Deadline.IsZero() && on.After(p.Deadline) {
		return models.StatusOverdue
	}
	return models.StatusOngoing
}

// CrewProgress is the active crew size as a percentage of the target headcount,
// capped at 100. It returns nil when the project has no headcount target.
func CrewProgress(activeCrew, sigmaTeknisi int) *int {
	if sigmaTeknisi <= 0 {
		return nil
	}
	pct := int(math.Round(float64(activeCrew) / float64(sigmaTeknisi) * 100))
	if pct > 100 {
		pct = 100
	}
	return &pct
}

func JobStatus(p *models.Project) string {
	switch {
	case p.ClosedAt != nil:
		return JobCompleted
	case p.ProjectStatus == models.ProjectStatusUnassigned:
		return JobNotStarted
	default:
		return JobInProgress
	}
}
