package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/jitesh-kr/KineticCode/internal/types"
)

// CameraConfig describes a local camera
type CameraConfig struct {
	// Device is a V4L2 device path; empty selects autovideosrc
	Device    string
	Width     int
	Height    int
	FPS       int
	Source    string
	Quality   int // JPEG quality, default 85
	Reconnect ReconnectConfig
}

// CameraStream captures a local camera through GStreamer and emits JPEG frames.
//
//	v4l2src|autovideosrc → videoconvert → videoscale → videorate →
//	capsfilter → jpegenc → appsink (max-buffers=1, drop=true)
//
// A failing pipeline is torn down and rebuilt with exponential backoff.
type CameraStream struct {
	cfg CameraConfig

	frames       chan types.Frame
	framesClosed atomic.Bool

	mu       sync.RWMutex
	pipeline *gst.Pipeline
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  time.Time

	connected     atomic.Bool
	frameCount    atomic.Uint64
	framesDropped atomic.Uint64
	errDevice     atomic.Uint64
	errFormat     atomic.Uint64
	errUnknown    atomic.Uint64
	state         reconnectState
}

// NewCameraStream validates cfg and checks GStreamer is usable
func NewCameraStream(cfg CameraConfig) (*CameraStream, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("camera: invalid resolution %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("camera: fps must be positive, got %d", cfg.FPS)
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = 85
	}
	if cfg.Reconnect.RetryDelay <= 0 {
		cfg.Reconnect = DefaultReconnectConfig()
	}
	if cfg.Source == "" {
		cfg.Source = "camera"
	}

	gst.Init(nil)
	if _, err := gst.NewElement("fakesrc"); err != nil {
		return nil, fmt.Errorf("camera: GStreamer not available: %w", err)
	}

	return &CameraStream{
		cfg:    cfg,
		frames: make(chan types.Frame, frameQueueSize),
	}, nil
}

func (c *CameraStream) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return fmt.Errorf("camera: already started")
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.started = time.Now()

	slog.Info("camera: starting",
		"device", c.deviceLabel(),
		"resolution", fmt.Sprintf("%dx%d", c.cfg.Width, c.cfg.Height),
		"fps", c.cfg.FPS,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := runWithReconnect(ctx, c.session, c.cfg.Reconnect, &c.state); err != nil {
			slog.Error("camera: capture stopped",
				"error", err,
				"device", c.deviceLabel(),
				"frames", c.frameCount.Load(),
				"reconnects", c.state.reconnects.Load(),
			)
		}
	}()

	return nil
}

func (c *CameraStream) Frames() <-chan types.Frame {
	return c.frames
}

// session builds a pipeline, plays it and watches its bus until it fails or ctx ends
func (c *CameraStream) session(ctx context.Context) error {
	pipeline, sink, err := c.buildPipeline()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.pipeline = pipeline
	c.mu.Unlock()

	defer func() {
		c.connected.Store(false)
		if err := pipeline.SetState(gst.StateNull); err != nil {
			slog.Warn("camera: failed to release pipeline", "error", err)
		}
		c.mu.Lock()
		c.pipeline = nil
		c.mu.Unlock()
	}()

	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(s *app.Sink) gst.FlowReturn {
			return c.onSample(ctx, s)
		},
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("camera: failed to start pipeline: %w", err)
	}

	return c.monitor(ctx, pipeline)
}

func (c *CameraStream) buildPipeline() (*gst.Pipeline, *app.Sink, error) {
	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, nil, fmt.Errorf("camera: failed to create pipeline: %w", err)
	}

	var src *gst.Element
	if c.cfg.Device != "" {
		src, err = gst.NewElement("v4l2src")
		if err == nil {
			src.SetProperty("device", c.cfg.Device)
		}
	} else {
		src, err = gst.NewElement("autovideosrc")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("camera: failed to create source: %w", err)
	}

	elems := make([]*gst.Element, 0, 6)
	for _, name := range []string{"videoconvert", "videoscale", "videorate", "capsfilter", "jpegenc"} {
		e, err := gst.NewElement(name)
		if err != nil {
			return nil, nil, fmt.Errorf("camera: failed to create %s: %w", name, err)
		}
		elems = append(elems, e)
	}
	videorate, capsfilter, jpegenc := elems[2], elems[3], elems[4]

	videorate.SetProperty("drop-only", true)
	capsfilter.SetProperty("caps", gst.NewCapsFromString(fmt.Sprintf(
		"video/x-raw,width=%d,height=%d,framerate=%d/1",
		c.cfg.Width, c.cfg.Height, c.cfg.FPS,
	)))
	jpegenc.SetProperty("quality", c.cfg.Quality)

	sink, err := app.NewAppSink()
	if err != nil {
		return nil, nil, fmt.Errorf("camera: failed to create appsink: %w", err)
	}
	sink.SetProperty("sync", false)
	sink.SetProperty("max-buffers", uint(1))
	sink.SetProperty("drop", true)

	chain := append([]*gst.Element{src}, elems...)
	chain = append(chain, sink.Element)

	if err := pipeline.AddMany(chain...); err != nil {
		return nil, nil, fmt.Errorf("camera: failed to add elements: %w", err)
	}
	if err := gst.ElementLinkMany(chain...); err != nil {
		return nil, nil, fmt.Errorf("camera: failed to link pipeline: %w", err)
	}

	return pipeline, sink, nil
}

// onSample copies the JPEG out of the GStreamer buffer and hands it on
func (c *CameraStream) onSample(ctx context.Context, sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return gst.FlowOK
	}
	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	frame := types.Frame{
		Seq:          c.frameCount.Add(1),
		Timestamp:    time.Now(),
		Width:        c.cfg.Width,
		Height:       c.cfg.Height,
		Data:         frameData,
		Format:       "jpeg",
		SourceStream: c.cfg.Source,
		TraceID:      uuid.New().String(),
	}

	if ctx.Err() != nil || c.framesClosed.Load() {
		return gst.FlowEOS
	}

	select {
	case c.frames <- frame:
	default:
		c.framesDropped.Add(1)
	}
	return gst.FlowOK
}

func (c *CameraStream) monitor(ctx context.Context, pipeline *gst.Pipeline) error {
	bus := pipeline.GetPipelineBus()

	for {
		if ctx.Err() != nil {
			return nil
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			return fmt.Errorf("camera: end of stream")

		case gst.MessageError:
			gerr := msg.ParseError()
			category := classifyError(gerr.Error(), gerr.DebugString())
			switch category {
			case ErrCategoryDevice:
				c.errDevice.Add(1)
			case ErrCategoryFormat:
				c.errFormat.Add(1)
			default:
				c.errUnknown.Add(1)
			}
			slog.Error("camera: pipeline error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"category", category.String(),
				"device", c.deviceLabel(),
				"frames", c.frameCount.Load(),
			)
			return fmt.Errorf("camera: pipeline error [%s]: %s", category, gerr.Error())

		case gst.MessageStateChanged:
			if msg.Source() == pipeline.GetName() {
				_, newState := msg.ParseStateChanged()
				if newState == gst.StatePlaying {
					c.connected.Store(true)
					c.state.reset()
					slog.Info("camera: pipeline playing", "device", c.deviceLabel())
				}
			}
		}
	}
}

func (c *CameraStream) Stop() error {
	c.mu.Lock()
	if c.cancel == nil {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		slog.Warn("camera: stop timeout exceeded")
	}

	if c.framesClosed.CompareAndSwap(false, true) {
		close(c.frames)
	}

	slog.Info("camera: stopped",
		"frames", c.frameCount.Load(),
		"dropped", c.framesDropped.Load(),
		"reconnects", c.state.reconnects.Load(),
		"uptime", time.Since(c.started),
	)
	return nil
}

func (c *CameraStream) Stats() types.StreamStats {
	c.mu.RLock()
	started := c.started
	c.mu.RUnlock()

	frames := c.frameCount.Load()
	var fpsReal float64
	if !started.IsZero() {
		if elapsed := time.Since(started).Seconds(); elapsed > 0 {
			fpsReal = float64(frames) / elapsed
		}
	}

	return types.StreamStats{
		FrameCount:    frames,
		FramesDropped: c.framesDropped.Load(),
		FPSTarget:     c.cfg.FPS,
		FPSReal:       fpsReal,
		SourceStream:  c.cfg.Source,
		Resolution:    fmt.Sprintf("%dx%d", c.cfg.Width, c.cfg.Height),
		Reconnects:    c.state.reconnects.Load(),
		IsConnected:   c.connected.Load(),
	}
}

func (c *CameraStream) deviceLabel() string {
	if c.cfg.Device == "" {
		return "auto"
	}
	return c.cfg.Device
}
