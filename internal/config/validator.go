package config

import (
	"fmt"
	"regexp"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks cfg and fills in defaults
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.ShutdownTimeoutS <= 0 {
		cfg.ShutdownTimeoutS = 5
	}

	if err := validateCamera(cfg); err != nil {
		return err
	}
	if err := validateTracker(&cfg.Tracker); err != nil {
		return err
	}
	if err := validatePose(&cfg.Pose); err != nil {
		return err
	}

	if cfg.Feedback.Buffer <= 0 {
		cfg.Feedback.Buffer = 8
	}
	if cfg.Feedback.TargetAngle <= 0 {
		cfg.Feedback.TargetAngle = 180
	}
	if cfg.Feedback.AnimationMS <= 0 {
		cfg.Feedback.AnimationMS = 100
	}

	validateMQTT(cfg)

	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.Port < 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be in 1-65535, got %d", cfg.HTTP.Port)
	}

	return nil
}

func validateCamera(cfg *Config) error {
	switch cfg.Camera.Type {
	case "":
		cfg.Camera.Type = "mock"
	case "mock", "v4l2":
	default:
		return fmt.Errorf("camera.type must be 'mock' or 'v4l2', got '%s'", cfg.Camera.Type)
	}
	if cfg.Camera.Name == "" {
		cfg.Camera.Name = "front"
	}

	s := &cfg.Stream
	if s.FPS < 0 {
		return fmt.Errorf("stream.fps must be > 0")
	}
	if s.FPS == 0 {
		s.FPS = 15
	}
	if s.Width == 0 && s.Height == 0 {
		s.Width, s.Height = 640, 480
	}
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("stream resolution must be positive, got %dx%d", s.Width, s.Height)
	}
	if s.JPEGQuality == 0 {
		s.JPEGQuality = 85
	}
	if s.JPEGQuality < 1 || s.JPEGQuality > 100 {
		return fmt.Errorf("stream.jpeg_quality must be in 1-100, got %d", s.JPEGQuality)
	}
	if s.Reconnect.RetryDelayMS <= 0 {
		s.Reconnect.RetryDelayMS = 1000
	}
	if s.Reconnect.MaxRetryDelayMS <= 0 {
		s.Reconnect.MaxRetryDelayMS = 30000
	}
	if s.Reconnect.MaxRetries < 0 {
		return fmt.Errorf("stream.reconnect.max_retries must be >= 0")
	}
	return nil
}

func validateTracker(t *TrackerConfig) error {
	switch t.Side {
	case "":
		t.Side = "right"
	case "right", "left":
	default:
		return fmt.Errorf("tracker.side must be 'left' or 'right', got '%s'", t.Side)
	}

	switch t.Smoothing {
	case "":
		t.Smoothing = "none"
	case "none":
	case "median":
		if t.Window == 0 {
			t.Window = 5
		}
		if t.Window < 1 {
			return fmt.Errorf("tracker.window must be >= 1, got %d", t.Window)
		}
	default:
		return fmt.Errorf("tracker.smoothing must be 'none' or 'median', got '%s'", t.Smoothing)
	}
	return nil
}

func validatePose(p *PoseConfig) error {
	switch p.Extractor {
	case "", "python":
		p.Extractor = "python"
		if len(p.Command) == 0 {
			p.Command = []string{"models/run_pose.sh"}
		}
	case "scripted":
		if p.Script == "" {
			return fmt.Errorf("pose.script is required for the scripted extractor")
		}
	default:
		return fmt.Errorf("pose.extractor must be 'python' or 'scripted', got '%s'", p.Extractor)
	}

	if p.MinConfidence < 0 || p.MinConfidence > 1 {
		return fmt.Errorf("pose.min_confidence must be in [0,1], got %v", p.MinConfidence)
	}
	if p.ResponseTimeoutMS <= 0 {
		p.ResponseTimeoutMS = 1000
	}
	return nil
}

func validateMQTT(cfg *Config) {
	m := &cfg.MQTT
	if !m.Enabled() {
		return
	}

	if m.ClientID == "" {
		m.ClientID = "kineticd-" + cfg.InstanceID
	}
	if m.Topics.Control == "" {
		m.Topics.Control = fmt.Sprintf("kinetic/control/%s", cfg.InstanceID)
	}
	if m.Topics.Angles == "" {
		m.Topics.Angles = fmt.Sprintf("kinetic/angles/%s", cfg.InstanceID)
	}
	if m.Topics.Reports == "" {
		m.Topics.Reports = fmt.Sprintf("kinetic/reports/%s", cfg.InstanceID)
	}

	if m.QoS == nil {
		m.QoS = map[string]byte{
			"control": 1,
			"angles":  0,
			"reports": 1,
		}
	}
}
