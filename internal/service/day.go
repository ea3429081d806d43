package service

import (
	"context"
	"sync"
	"time"

	"crew-scheduler/internal/clock"
	"crew-scheduler/internal/logger"
	"crew-scheduler/internal/metrics"
	"crew-scheduler/internal/repository"

	"github.com/sirupsen/logrus"
)

// Notifier is told once about every newly opened business day.
type Notifier interface {
	NotifyDayAdvanced(ctx context.Context, date clock.Date, assignments []EffectiveAssignment) error
}

// DayService opens business days. Opening a day writes nothing but its
// marker; assignments for the new day are resolved lazily on read.
type DayService struct {
	markers     repository.DayMarkerRepository
	assignments *AssignmentService
	clock       clock.Authority
	metrics     *metrics.Metrics
	logger      *logrus.Logger

	mu        sync.RWMutex
	notifiers []Notifier

	Now func() time.Time
}

func NewDayService(
	markers repository.DayMarkerRepository,
	assignments *AssignmentService,
	auth clock.Authority,
	m *metrics.Metrics,
	log *logrus.Logger,
) *DayService {
	return &DayService{
		markers:     markers,
		assignments: assignments,
		clock:       auth,
		metrics:     m,
		logger:      logger.OrDefault(log),
		Now:         time.Now,
	}
}

func (s *DayService) AddNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifiers = append(s.notifiers, n)
}

// AdvanceDay marks date as opened. Only the first call for a date reports
// true and notifies; repeated or concurrent calls are no-ops.
func (s *DayService) AdvanceDay(ctx context.Context, date clock.Date) (bool, error) {
	if date.IsZero() {
		return false, validation("date", "is required")
	}

	advanced, err := s.markers.MarkAdvanced(ctx, date, s.Now())
	if err != nil {
		return false, persistence("mark day advanced", err)
	}
	s.metrics.DayAdvanced(advanced)

	if !advanced {
		s.logger.WithField("date", date.String()).Debug("Day already advanced")
		return false, nil
	}

	s.logger.WithField("date", date.String()).Info("Business day advanced")
	s.notify(ctx, date)
	return true, nil
}

// Tick advances to the effective date of the current instant.
func (s *DayService) Tick(ctx context.Context) (clock.Date, bool, error) {
	date := s.clock.EffectiveDate(s.Now())
	advanced, err := s.AdvanceDay(ctx, date)
	return date, advanced, err
}

// Current is the day reads default to: the effective date, or a later day
// that was already opened ahead of the clock.
func (s *DayService) Current(ctx context.Context) (clock.Date, error) {
	marker, err := s.markers.Latest(ctx)
	if err != nil {
		return clock.Date{}, persistence("latest day marker", err)
	}
	today := s.clock.EffectiveDate(s.Now())
	if marker == nil || marker.Date.Before(today) {
		return today, nil
	}
	return marker.Date, nil
}

func (s *DayService) notify(ctx context.Context, date clock.Date) {
	s.mu.RLock()
	notifiers := append([]Notifier(nil), s.notifiers...)
	s.mu.RUnlock()
	if len(notifiers) == 0 {
		return
	}

	assignments, err := s.assignments.GetEffectiveAssignments(ctx, date)
	if err != nil {
		s.logger.WithError(err).WithField("date", date.String()).Warn("Failed to resolve assignments for notification")
		return
	}

	for _, n := range notifiers {
		if err := n.NotifyDayAdvanced(ctx, date, assignments); err != nil {
			s.logger.WithError(err).WithField("date", date.String()).Warn("Day advance notification failed")
		}
	}
}
