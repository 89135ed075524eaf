package feedback

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/jitesh-kr/KineticCode/internal/types"
)

const (
	defaultTargetAngle = 180.0
	defaultAnimation   = 100 * time.Millisecond
)

var (
	lowROMColor  = colorful.Color{R: 0.91, G: 0.30, B: 0.24}
	highROMColor = colorful.Color{R: 0.18, G: 0.80, B: 0.44}
)

// IndicatorConfig shapes how an angle is rendered
type IndicatorConfig struct {
	// LimbLabel prefixes the text label (default "Right Arm")
	LimbLabel string
	// TargetAngle is the angle considered full range for the colour scale (default 180)
	TargetAngle float64
	// Animation is the suggested rotate animation duration (default 100ms)
	Animation time.Duration
}

func (c IndicatorConfig) withDefaults() IndicatorConfig {
	if c.LimbLabel == "" {
		c.LimbLabel = "Right Arm"
	}
	if c.TargetAngle <= 0 {
		c.TargetAngle = defaultTargetAngle
	}
	if c.Animation <= 0 {
		c.Animation = defaultAnimation
	}
	return c
}

// Indicator is the visual state derived from one sample
type Indicator struct {
	Degrees float64 `json:"degrees"`
	// RotationRad rotates the on-screen sprite; a 90° elbow is neutral
	RotationRad float64 `json:"rotation_rad"`
	AnimationMS int64   `json:"animation_ms"`
	Label       string  `json:"label"`
	// Color goes from red to green as the angle approaches the target
	Color     string `json:"color"`
	Seq       uint64 `json:"seq"`
	SessionID string `json:"session_id"`
}

// NewIndicator maps a sample to its indicator state
func NewIndicator(sample types.AngleSample, cfg IndicatorConfig) Indicator {
	cfg = cfg.withDefaults()

	progress := math.Min(math.Max(sample.Degrees/cfg.TargetAngle, 0), 1)

	return Indicator{
		Degrees:     sample.Degrees,
		RotationRad: (sample.Degrees - 90) * math.Pi / 180,
		AnimationMS: cfg.Animation.Milliseconds(),
		Label:       fmt.Sprintf("%s ROM: %d°", cfg.LimbLabel, int(sample.Degrees)),
		Color:       progressColor(progress),
		Seq:         sample.Seq,
		SessionID:   sample.SessionID,
	}
}

// progressColor blends red to green in Lab space. The endpoints are returned
// as-is since a Lab round trip shifts them by one step.
func progressColor(progress float64) string {
	switch {
	case progress <= 0:
		return lowROMColor.Hex()
	case progress >= 1:
		return highROMColor.Hex()
	}
	return lowROMColor.BlendLab(highROMColor, progress).Clamped().Hex()
}

// IndicatorSink keeps the latest indicator state for rendering
type IndicatorSink struct {
	cfg IndicatorConfig

	mu      sync.RWMutex
	current Indicator
	updates uint64
	// OnChange, if set, is called on the presentation goroutine after each update
	OnChange func(Indicator)
}

// NewIndicatorSink creates an indicator at rest (0°)
func NewIndicatorSink(cfg IndicatorConfig) *IndicatorSink {
	cfg = cfg.withDefaults()
	return &IndicatorSink{
		cfg:     cfg,
		current: NewIndicator(types.AngleSample{}, cfg),
	}
}

func (s *IndicatorSink) OnAngle(sample types.AngleSample) {
	ind := NewIndicator(sample, s.cfg)

	s.mu.Lock()
	s.current = ind
	s.updates++
	s.mu.Unlock()

	if s.OnChange != nil {
		s.OnChange(ind)
	}
}

// Current returns the latest indicator state
func (s *IndicatorSink) Current() Indicator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Updates returns how many samples have been rendered
func (s *IndicatorSink) Updates() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updates
}
