package config

import (
	"sort"
	"time"
)

// Presets adjust DefaultConfig for a deployment style.
var Presets = map[string]func(*Config){
	// one machine, a still room photo, full magnitude range
	"desktop": func(c *Config) {
		c.Magnitude = MagnitudeConfig{Min: 0, Max: 9, Initial: 0}
		c.Detect.Analyzer = "gemini"
		c.Camera = CameraConfig{Source: "file", Path: "room.jpg"}
	},
	// phone camera plus laptop controller over the LAN
	"live": func(c *Config) {
		c.Magnitude = MagnitudeConfig{Min: 4, Max: 9, Initial: 6}
		c.Detect.Analyzer = "backend"
		c.Detect.Interval = 500 * time.Millisecond
		c.Detect.BackendURL = "http://localhost:8000/api/analyze"
		c.Camera = CameraConfig{Source: "http", URL: "http://192.168.1.50:8080/shot.jpg"}
		c.Sync.PollInterval = 500 * time.Millisecond
	},
	// no network at all, for demos and tests
	"offline": func(c *Config) {
		c.Magnitude = MagnitudeConfig{Min: 0, Max: 9, Initial: 5}
		c.Detect.Analyzer = "mock"
		c.Sim.Scene = "living_room"
	},
}

// GetPreset returns a fresh config for the named preset, or nil.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Preset = name
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
