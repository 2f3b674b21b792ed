package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/quakesim/internal/dynamo"
	"github.com/san-kum/quakesim/internal/physics"
	"github.com/san-kum/quakesim/internal/seismic"
	"github.com/san-kum/quakesim/internal/session"
)

const (
	DefaultPreset       = "desktop"
	DefaultListen       = ":8080"
	DefaultServerURL    = "http://localhost:8080"
	DefaultPollInterval = 500 * time.Millisecond
	DefaultDetectEvery  = 500 * time.Millisecond
	DefaultDetectWait   = 20 * time.Second
	DefaultDt           = 1.0 / 60
	DefaultDuration     = 10.0
	DefaultDataDir      = "runs"
	DefaultAPIKeyEnv    = "GOOGLE_API_KEY"
)

type Config struct {
	Preset    string          `yaml:"preset"`
	Magnitude MagnitudeConfig `yaml:"magnitude"`
	Sync      SyncConfig      `yaml:"sync"`
	Detect    DetectConfig    `yaml:"detect"`
	Camera    CameraConfig    `yaml:"camera"`
	Physics   physics.Config  `yaml:"physics"`
	Seismic   seismic.Model   `yaml:"seismic"`
	Sim       SimConfig       `yaml:"sim"`
	Log       LogConfig       `yaml:"log"`
	DataDir   string          `yaml:"data_dir"`
}

type MagnitudeConfig struct {
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Initial float64 `yaml:"initial"`
}

func (m MagnitudeConfig) Range() session.Range {
	return session.Range{Min: m.Min, Max: m.Max}
}

type SyncConfig struct {
	ServerURL    string        `yaml:"server_url"`
	Listen       string        `yaml:"listen"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type DetectConfig struct {
	Analyzer    string        `yaml:"analyzer"` // gemini, backend or mock
	Interval    time.Duration `yaml:"interval"`
	Timeout     time.Duration `yaml:"timeout"`
	BackendURL  string        `yaml:"backend_url"`
	GeminiModel string        `yaml:"gemini_model"`
	APIKeyEnv   string        `yaml:"api_key_env"`
}

type CameraConfig struct {
	Source string `yaml:"source"` // file or http
	Path   string `yaml:"path"`
	URL    string `yaml:"url"`
}

// SimConfig drives offline runs.
type SimConfig struct {
	Dt        float64 `yaml:"dt"`
	Duration  float64 `yaml:"duration"`
	Magnitude float64 `yaml:"magnitude"`
	Scene     string  `yaml:"scene"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func DefaultConfig() *Config {
	return &Config{
		Preset: DefaultPreset,
		Magnitude: MagnitudeConfig{
			Min:     seismic.MinMagnitude,
			Max:     seismic.MaxMagnitude,
			Initial: 0,
		},
		Sync: SyncConfig{
			ServerURL:    DefaultServerURL,
			Listen:       DefaultListen,
			PollInterval: DefaultPollInterval,
		},
		Detect: DetectConfig{
			Analyzer:    "gemini",
			Interval:    DefaultDetectEvery,
			Timeout:     DefaultDetectWait,
			GeminiModel: "gemini-2.5-flash",
			APIKeyEnv:   DefaultAPIKeyEnv,
		},
		Camera: CameraConfig{
			Source: "file",
			Path:   "room.jpg",
		},
		Physics: physics.DefaultConfig(),
		Seismic: seismic.DefaultModel(),
		Sim: SimConfig{
			Dt:        DefaultDt,
			Duration:  DefaultDuration,
			Magnitude: 7,
		},
		Log:     LogConfig{Level: "info"},
		DataDir: DefaultDataDir,
	}
}

// Load reads a YAML file. If the file names a preset, the preset is the
// base the file's values are laid over; otherwise DefaultConfig is.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var head struct {
		Preset string `yaml:"preset"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if head.Preset != "" {
		cfg = GetPreset(head.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("%s: unknown preset %q", path, head.Preset)
		}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	m := c.Magnitude
	if m.Min < seismic.MinMagnitude || m.Max > seismic.MaxMagnitude || m.Min > m.Max {
		return fmt.Errorf("%w: magnitude range [%g, %g]", dynamo.ErrParameterBounds, m.Min, m.Max)
	}
	if c.Sync.PollInterval <= 0 || c.Detect.Interval <= 0 {
		return fmt.Errorf("%w: intervals must be positive", dynamo.ErrParameterBounds)
	}
	if c.Sim.Dt <= 0 || c.Sim.Duration <= 0 {
		return fmt.Errorf("%w: sim dt and duration must be positive", dynamo.ErrParameterBounds)
	}
	switch c.Detect.Analyzer {
	case "gemini", "backend", "mock":
	default:
		return fmt.Errorf("%w: analyzer %q", dynamo.ErrParameterBounds, c.Detect.Analyzer)
	}
	switch c.Camera.Source {
	case "file", "http":
	default:
		return fmt.Errorf("%w: camera source %q", dynamo.ErrParameterBounds, c.Camera.Source)
	}
	return c.Physics.Validate()
}

// APIKey reads the vision API key from the configured environment variable.
func (c *Config) APIKey() string {
	return os.Getenv(c.Detect.APIKeyEnv)
}
