package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete kineticd configuration
type Config struct {
	InstanceID       string         `yaml:"instance_id"`
	ShutdownTimeoutS int            `yaml:"shutdown_timeout_s"` // default 5
	Camera           CameraConfig   `yaml:"camera"`
	Stream           StreamConfig   `yaml:"stream"`
	Tracker          TrackerConfig  `yaml:"tracker"`
	Pose             PoseConfig     `yaml:"pose"`
	Feedback         FeedbackConfig `yaml:"feedback"`
	MQTT             MQTTConfig     `yaml:"mqtt"`
	HTTP             HTTPConfig     `yaml:"http"`
}

// CameraConfig selects the frame source
type CameraConfig struct {
	Type   string `yaml:"type"`   // mock, v4l2 (default mock)
	Device string `yaml:"device"` // v4l2 device, empty = autovideosrc
	Name   string `yaml:"name"`   // source label in frames and stats
}

// StreamConfig contains capture settings
type StreamConfig struct {
	Width       int             `yaml:"width"`
	Height      int             `yaml:"height"`
	FPS         int             `yaml:"fps"`
	JPEGQuality int             `yaml:"jpeg_quality"`
	Reconnect   ReconnectConfig `yaml:"reconnect"`
}

type ReconnectConfig struct {
	MaxRetries      int `yaml:"max_retries"`
	RetryDelayMS    int `yaml:"retry_delay_ms"`
	MaxRetryDelayMS int `yaml:"max_retry_delay_ms"`
}

// TrackerConfig selects the exercised limb and the smoothing stage
type TrackerConfig struct {
	Side      string `yaml:"side"`      // right, left
	Smoothing string `yaml:"smoothing"` // none, median
	Window    int    `yaml:"window"`    // median window (odd)
}

// PoseConfig selects the pose extractor
type PoseConfig struct {
	Extractor         string   `yaml:"extractor"` // python, scripted
	Command           []string `yaml:"command"`
	Script            string   `yaml:"script"`
	MinConfidence     float64  `yaml:"min_confidence"`
	ResponseTimeoutMS int      `yaml:"response_timeout_ms"`
}

// FeedbackConfig shapes the presentation loop and indicator
type FeedbackConfig struct {
	Buffer      int     `yaml:"buffer"`
	TargetAngle float64 `yaml:"target_angle"`
	AnimationMS int     `yaml:"animation_ms"`
}

// MQTTConfig contains broker settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker   string          `yaml:"broker"`
	ClientID string          `yaml:"client_id"`
	Topics   MQTTTopics      `yaml:"topics"`
	QoS      map[string]byte `yaml:"qos"`
}

// MQTTTopics contains topic names
type MQTTTopics struct {
	Control string `yaml:"control"`
	Angles  string `yaml:"angles"`
	Reports string `yaml:"reports"`
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Enabled reports whether an MQTT broker is configured
func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutS) * time.Second
}

// Load reads, parses and validates a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML configuration
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
