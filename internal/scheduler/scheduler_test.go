package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEveryRuns(t *testing.T) {
	s := New(time.UTC)
	var n atomic.Int32
	require.NoError(t, s.Every("tick", time.Second, func() { n.Add(1) }))
	require.Equal(t, 1, s.Len())

	s.Start()
	defer s.Stop(context.Background())

	require.Eventually(t, func() bool { return n.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestPanicsAreRecovered(t *testing.T) {
	s := New(nil)
	var after atomic.Bool
	require.NoError(t, s.Every("boom", time.Second, func() { panic("job blew up") }))
	require.NoError(t, s.Every("ok", time.Second, func() { after.Store(true) }))

	s.Start()
	defer s.Stop(context.Background())

	require.Eventually(t, after.Load, 3*time.Second, 20*time.Millisecond)
}

func TestInvalidSpecs(t *testing.T) {
	s := New(time.UTC)
	require.Error(t, s.Cron("bad", "not a cron spec", func() {}))
	require.Error(t, s.Every("zero", 0, func() {}))
	require.NoError(t, s.Cron("refresh", "*/15 * * * *", func() {}))
	require.Equal(t, 1, s.Len())
}
