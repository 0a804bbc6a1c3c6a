package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate/internal/testutil"
)

type countingRefresher struct {
	calls int32
	err   error
}

func (r *countingRefresher) Refresh(ctx context.Context) error {
	atomic.AddInt32(&r.calls, 1)
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("refresh without deadline")
	}
	return r.err
}

type countingSweeper struct{ calls int32 }

func (s *countingSweeper) Sweep() { atomic.AddInt32(&s.calls, 1) }

func TestNewSchedulesConfiguredJobs(t *testing.T) {
	db := testutil.NewDB(t)

	s, err := New(Options{
		SettingsSpec: "*/5 * * * *",
		Settings:     &countingRefresher{},
		DB:           db,
		Limiter:      &countingSweeper{},
	})
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 3)

	s.Start()
	s.Stop()
}

func TestNewSkipsMissingDependencies(t *testing.T) {
	s, err := New(Options{SettingsSpec: "@every 1m"})
	require.NoError(t, err)
	assert.Empty(t, s.cron.Entries())
}

func TestNewRejectsInvalidSpec(t *testing.T) {
	_, err := New(Options{SettingsSpec: "every tuesday", Settings: &countingRefresher{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every tuesday")
}

func TestRefreshSettings(t *testing.T) {
	r := &countingRefresher{}
	RefreshSettings(r)
	assert.Equal(t, int32(1), atomic.LoadInt32(&r.calls))

	// Failures are logged, not propagated
	failing := &countingRefresher{err: errors.New("database down")}
	RefreshSettings(failing)
	assert.Equal(t, int32(1), atomic.LoadInt32(&failing.calls))
}

func TestRecordPoolStats(t *testing.T) {
	db := testutil.NewDB(t)
	assert.NotPanics(t, func() { RecordPoolStats(db) })
}
