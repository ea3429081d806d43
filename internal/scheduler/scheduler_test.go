package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crew-scheduler/internal/clock"
	"crew-scheduler/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTicker struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeTicker) Tick(context.Context) (clock.Date, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return clock.MustParseDate("2024-01-01"), f.calls == 1, f.err
}

func (f *fakeTicker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestNewDayAdvancerRejectsBadSpec(t *testing.T) {
	_, err := NewDayAdvancer("not a cron", time.UTC, &fakeTicker{}, logger.Discard())
	assert.Error(t, err)
}

func TestStartTicksImmediately(t *testing.T) {
	ticker := &fakeTicker{}
	a, err := NewDayAdvancer("0 0 1 1 *", time.UTC, ticker, logger.Discard())
	require.NoError(t, err)

	a.Start(context.Background())
	defer a.Stop()

	assert.Equal(t, 1, ticker.count())
	assert.False(t, a.Next().IsZero())
}

func TestScheduleFollowsLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)

	a, err := NewDayAdvancer("5 0 * * *", loc, &fakeTicker{}, logger.Discard())
	require.NoError(t, err)
	a.cron.Start()
	defer a.Stop()

	next := a.Next().In(loc)
	assert.Equal(t, 0, next.Hour())
	assert.Equal(t, 5, next.Minute())
}

func TestRunOnceSurvivesErrors(t *testing.T) {
	ticker := &fakeTicker{err: errors.New("db down")}
	a, err := NewDayAdvancer("@every 1h", time.UTC, ticker, logger.Discard())
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		a.RunOnce(context.Background())
		a.RunOnce(context.Background())
	})
	assert.Equal(t, 2, ticker.count())
}
