package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsJobs(t *testing.T) {
	s := NewScheduler(context.Background())

	var ok, failed atomic.Int32
	require.NoError(t, s.Add("tick", "@every 1s", func(context.Context) error {
		ok.Add(1)
		return nil
	}))
	require.NoError(t, s.Add("broken", "@every 1s", func(context.Context) error {
		failed.Add(1)
		return errors.New("boom")
	}))
	require.NoError(t, s.Add("panics", "@every 1s", func(context.Context) error {
		panic("job panic")
	}))

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return ok.Load() > 0 && failed.Load() > 0
	}, 3*time.Second, 50*time.Millisecond)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := NewScheduler(context.Background())
	err := s.Add("bad", "every now and then", func(context.Context) error { return nil })
	assert.Error(t, err)
}
