package core

import (
	"sync"
	"time"

	"github.com/spaghettifunk/lumen/engine/containers"
)

const AVG_COUNT uint8 = 30

// Metrics keeps a rolling frame time average and the frames rendered in the last second.
type Metrics struct {
	mu                 sync.RWMutex
	msTimes            *containers.RingQueue[float64]
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
	totalFrames        uint64
}

func NewMetrics() *Metrics {
	return &Metrics{msTimes: containers.NewRingQueue[float64](int(AVG_COUNT))}
}

func (m *Metrics) Update(frameElapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Calculate frame ms average over the last AVG_COUNT frames
	frameMS := float64(frameElapsed) / float64(time.Millisecond)
	m.msTimes.Push(frameMS)
	var sum float64
	m.msTimes.Each(func(ms float64) { sum += ms })
	m.msAvg = sum / float64(m.msTimes.Len())

	// Calculate Frames per second.
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}

	m.frames++
	m.totalFrames++
}

func (m *Metrics) FPS() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fps
}

func (m *Metrics) FrameTime() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.msAvg
}

// Frame returns fps and average frame time in milliseconds.
func (m *Metrics) Frame() (float64, float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fps, m.msAvg
}

func (m *Metrics) TotalFrames() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalFrames
}
