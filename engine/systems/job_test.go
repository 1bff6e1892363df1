package systems

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobSystem(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestJobCallbacks(t *testing.T) {
	js, err := NewJobSystem(2, 4)
	require.NoError(t, err)

	failed := make(chan error, 1)
	completed := make(chan struct{}, 1)
	done := make(chan struct{}, 2)

	js.Submit(JobTask{
		Name:                 "ok",
		OnStart:              func() error { return nil },
		OnComplete:           func() { completed <- struct{}{} },
		OnFailure:            func(err error) { t.Errorf("unexpected failure: %v", err) },
		OnCompletionCallback: func() { done <- struct{}{} },
	})
	boom := errors.New("boom")
	js.AddWorkNonBlocking(JobTask{
		Name:                 "fail",
		OnStart:              func() error { return boom },
		OnComplete:           func() { t.Error("completed a failed job") },
		OnFailure:            func(err error) { failed <- err },
		OnCompletionCallback: func() { done <- struct{}{} },
	})

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("jobs did not finish")
		}
	}
	assert.Len(t, completed, 1)
	assert.ErrorIs(t, <-failed, boom)
	require.NoError(t, js.Shutdown())
}

func TestSubmitAndWait(t *testing.T) {
	js, err := NewJobSystem(3, 0)
	require.NoError(t, err)
	defer js.Shutdown()

	var ran atomic.Int32
	first := errors.New("first")
	second := errors.New("second")
	work := []func() error{
		func() error { ran.Add(1); return nil },
		func() error { ran.Add(1); return first },
		func() error { ran.Add(1); return nil },
		func() error { ran.Add(1); return second },
	}

	err = js.SubmitAndWait("test", work...)
	assert.Equal(t, int32(4), ran.Load())
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)

	assert.NoError(t, js.SubmitAndWait("empty"))
}

func TestJobSystemShutdownIsIdempotent(t *testing.T) {
	js, err := NewJobSystem(1, 1)
	require.NoError(t, err)

	var ran atomic.Bool
	js.Submit(JobTask{Name: "queued", OnStart: func() error { ran.Store(true); return nil }})
	require.NoError(t, js.Shutdown())
	assert.True(t, ran.Load())
	assert.NoError(t, js.Shutdown())
}
