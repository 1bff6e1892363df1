package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsAverage(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(10 * time.Millisecond)
	}
	assert.InDelta(t, 10.0, m.FrameTime(), 1e-9)
	assert.Equal(t, uint64(AVG_COUNT), m.TotalFrames())
}

func TestMetricsAverageIsRolling(t *testing.T) {
	m := NewMetrics()
	m.Update(40 * time.Millisecond)
	assert.InDelta(t, 40.0, m.FrameTime(), 1e-9)

	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(20 * time.Millisecond)
	}
	// the 40ms frame fell out of the window
	assert.InDelta(t, 20.0, m.FrameTime(), 1e-9)
}

func TestMetricsFPS(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < 101; i++ {
		m.Update(10 * time.Millisecond)
	}
	// the 101st frame pushes the accumulator past one second
	assert.Equal(t, 100.0, m.FPS())
}

func TestClock(t *testing.T) {
	now := time.Unix(100, 0)
	c := &Clock{now: func() time.Time { return now }}

	c.Update()
	assert.Zero(t, c.Elapsed())

	c.Start()
	now = now.Add(16 * time.Millisecond)
	c.Update()
	assert.Equal(t, 16*time.Millisecond, c.Elapsed())

	c.Stop()
	now = now.Add(time.Second)
	c.Update()
	assert.Equal(t, 16*time.Millisecond, c.Elapsed())
}
