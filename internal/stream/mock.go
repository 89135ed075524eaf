package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jitesh-kr/KineticCode/internal/types"
)

// MockStream generates synthetic RGB frames at a fixed rate. Paired with the
// scripted extractor it runs the whole pipeline without a camera.
type MockStream struct {
	width  int
	height int
	fps    int
	source string

	framesCh chan types.Frame
	stopCh   chan struct{}
	wg       sync.WaitGroup

	mu            sync.RWMutex
	seq           uint64
	framesEmitted uint64
	framesDropped uint64
	isRunning     bool
	stopped       bool
	startTime     time.Time
}

func NewMockStream(width, height, fps int, source string) *MockStream {
	if fps <= 0 {
		fps = 15
	}
	return &MockStream{
		width:    width,
		height:   height,
		fps:      fps,
		source:   source,
		framesCh: make(chan types.Frame, frameQueueSize),
		stopCh:   make(chan struct{}),
	}
}

func (m *MockStream) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.isRunning || m.stopped {
		m.mu.Unlock()
		return fmt.Errorf("mock stream already started")
	}
	m.isRunning = true
	m.startTime = time.Now()
	m.mu.Unlock()

	slog.Info("mock stream starting",
		"resolution", fmt.Sprintf("%dx%d", m.width, m.height),
		"fps", m.fps,
		"source", m.source,
	)

	m.wg.Add(1)
	go m.generateFrames(ctx)
	return nil
}

func (m *MockStream) Frames() <-chan types.Frame {
	return m.framesCh
}

func (m *MockStream) Stop() error {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return nil
	}
	m.isRunning = false
	m.stopped = true
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()
	close(m.framesCh)

	m.mu.RLock()
	slog.Info("mock stream stopped",
		"frames_emitted", m.framesEmitted,
		"frames_dropped", m.framesDropped,
		"duration", time.Since(m.startTime),
	)
	m.mu.RUnlock()
	return nil
}

func (m *MockStream) Stats() types.StreamStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var fpsReal float64
	if m.isRunning && m.framesEmitted > 0 {
		if elapsed := time.Since(m.startTime).Seconds(); elapsed > 0 {
			fpsReal = float64(m.framesEmitted) / elapsed
		}
	}

	return types.StreamStats{
		FrameCount:    m.framesEmitted,
		FramesDropped: m.framesDropped,
		FPSTarget:     m.fps,
		FPSReal:       fpsReal,
		SourceStream:  m.source,
		Resolution:    fmt.Sprintf("%dx%d", m.width, m.height),
		IsConnected:   m.isRunning,
	}
}

func (m *MockStream) generateFrames(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(m.fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			frame := m.createFrame()
			select {
			case m.framesCh <- frame:
				m.mu.Lock()
				m.framesEmitted++
				m.mu.Unlock()
			default:
				// consumer behind; newest frames matter more than old ones
				m.mu.Lock()
				m.framesDropped++
				m.mu.Unlock()
			}
		}
	}
}

// createFrame draws a horizontal gradient that shifts with seq
func (m *MockStream) createFrame() types.Frame {
	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.mu.Unlock()

	data := make([]byte, m.width*m.height*3)
	for y := 0; y < m.height; y++ {
		row := data[y*m.width*3 : (y+1)*m.width*3]
		for x := 0; x < m.width; x++ {
			row[x*3] = byte(x + int(seq))
			row[x*3+1] = byte(y)
			row[x*3+2] = 0x40
		}
	}

	return types.Frame{
		Seq:          seq,
		Timestamp:    time.Now(),
		Width:        m.width,
		Height:       m.height,
		Data:         data,
		Format:       "rgb",
		SourceStream: m.source,
		TraceID:      uuid.New().String(),
	}
}
