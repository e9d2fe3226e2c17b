package cleanup

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeDeleter struct {
	calls   atomic.Int64
	deleted int64
	lastCut atomic.Value
}

func (f *fakeDeleter) DeleteEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.calls.Add(1)
	f.lastCut.Store(cutoff)
	return f.deleted, nil
}

func TestService_SweepsOnStartAndInterval(t *testing.T) {
	deleter := &fakeDeleter{deleted: 3}
	svc := NewService(time.Hour, 20*time.Millisecond, deleter)

	svc.Start(context.Background())
	defer svc.Stop()

	assert.Eventually(t, func() bool {
		return deleter.calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cutoff, ok := deleter.lastCut.Load().(time.Time)
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(-time.Hour), cutoff, time.Minute)
}

func TestService_StopIsIdempotentBeforeStart(t *testing.T) {
	svc := NewService(time.Hour, time.Hour, &fakeDeleter{})
	// Stop before Start must not panic.
	svc.Stop()
}

func TestService_StartIsIdempotent(t *testing.T) {
	deleter := &fakeDeleter{}
	svc := NewService(time.Hour, time.Hour, deleter)

	svc.Start(context.Background())
	svc.Start(context.Background())
	svc.Stop()

	assert.GreaterOrEqual(t, deleter.calls.Load(), int64(1))
}
