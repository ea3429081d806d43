package clock

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// Authority resolves the effective business date. A new day only begins
// Cutoff after local midnight, so work logged at 00:02 still belongs to the
// previous day.
type Authority struct {
	Location *time.Location
	Cutoff   time.Duration
}

// NewAuthority loads the zone and validates the cutoff.
func NewAuthority(zone string, cutoffMinutes int) (Authority, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return Authority{}, fmt.Errorf("load time zone %q: %w", zone, err)
	}
	if cutoffMinutes < 0 || cutoffMinutes >= 24*60 {
		return Authority{}, fmt.Errorf("day cutoff must be within 0..1439 minutes, got %d", cutoffMinutes)
	}
	return Authority{Location: loc, Cutoff: time.Duration(cutoffMinutes) * time.Minute}, nil
}

// EffectiveDate is the pure form of the authority.
func EffectiveDate(now time.Time, loc *time.Location, cutoff time.Duration) Date {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	today := DateOf(local)
	sinceMidnight := local.Sub(today.StartOf(loc))
	if sinceMidnight < cutoff {
		return today.AddDays(-1)
	}
	return today
}

func (a Authority) EffectiveDate(now time.Time) Date {
	return EffectiveDate(now, a.Location, a.Cutoff)
}

// Today is the effective date at the current wall-clock time.
func (a Authority) Today() Date {
	return a.EffectiveDate(time.Now())
}

// StartOfDay returns local midnight of d in the authority's zone. Membership
// assignment and removal timestamps are capped to this instant.
func (a Authority) StartOfDay(d Date) time.Time {
	loc := a.Location
	if loc == nil {
		loc = time.UTC
	}
	return d.StartOf(loc)
}
