package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartRunsJobImmediately(t *testing.T) {
	t.Parallel()

	ran := make(chan time.Time, 1)
	s := NewIntervalScheduler(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx, func(trigger time.Time) {
		select {
		case ran <- trigger:
		default:
		}
	}))
	defer s.Stop(context.Background())

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run immediately after Start")
	}
}

func TestStartWithNilJobIsNoop(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(time.Hour)
	assert.NoError(t, s.Start(context.Background(), nil))
	assert.NoError(t, s.Stop(context.Background()))
}

func TestStopIsIdempotent(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx, func(time.Time) {}))
	assert.NoError(t, s.Stop(ctx))
	assert.NoError(t, s.Stop(ctx))
}
