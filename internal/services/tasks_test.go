package services

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"realestate/internal/testutil"
)

func TestTasksWaitAndRecover(t *testing.T) {
	tasks := NewTasks()
	var done int32

	for i := 0; i < 5; i++ {
		tasks.Go("count", func() { atomic.AddInt32(&done, 1) })
	}
	tasks.Go("boom", func() { panic("side effect exploded") })
	tasks.Wait()

	assert.Equal(t, int32(5), atomic.LoadInt32(&done))
}

func TestHealthCheck(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewHealthService(db, "Real Estate API", "1.0.0")

	result := svc.Check(context.Background())
	assert.Equal(t, "healthy", result.Status)
	assert.Equal(t, "ok", result.Database)
	assert.Equal(t, "1.0.0", result.Version)

	testutil.BreakDB(t, db)
	result = svc.Check(context.Background())
	assert.Equal(t, "degraded", result.Status)
	assert.Equal(t, "unreachable", result.Database)
}
