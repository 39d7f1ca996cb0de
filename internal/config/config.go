// Package config loads the daemon configuration from an optional YAML file,
// layered over built-in defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MPD holds the audio engine connection parameters.
type MPD struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
}

// Volume holds the appliance volume scale.
type Volume struct {
	Min     int `yaml:"min"`
	Max     int `yaml:"max"`
	Initial int `yaml:"initial"`
}

// Playback holds the playback task tunables.
type Playback struct {
	CycleIntervalMs           int    `yaml:"cycleIntervalMs"`
	SeekJumpSeconds           int    `yaml:"seekJumpSeconds"`
	PrevTrackThresholdSeconds int    `yaml:"prevTrackThresholdSeconds"`
	NotRunningDebounceCycles  int    `yaml:"notRunningDebounceCycles"`
	SpeechLanguage            string `yaml:"speechLanguage"`
}

// Config is the full daemon configuration.
type Config struct {
	HTTPAddr           string   `yaml:"httpAddr"`
	MusicRoot          string   `yaml:"musicRoot"`
	NVSPath            string   `yaml:"nvsPath"`
	TagInput           string   `yaml:"tagInput"`
	LogLevel           string   `yaml:"logLevel"`
	InactivityMinutes  int      `yaml:"inactivityMinutes"`
	MaxExternalClients int      `yaml:"maxExternalClients"`
	MPD                MPD      `yaml:"mpd"`
	Volume             Volume   `yaml:"volume"`
	Playback           Playback `yaml:"playback"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr:           ":3000",
		MusicRoot:          "/var/lib/fablebox/music",
		NVSPath:            "data/nvs.db",
		TagInput:           "/var/run/fablebox/tags",
		LogLevel:           "info",
		InactivityMinutes:  10,
		MaxExternalClients: 4,
		MPD: MPD{
			Host: "localhost",
			Port: 6600,
		},
		Volume: Volume{
			Min:     0,
			Max:     21,
			Initial: 3,
		},
		Playback: Playback{
			CycleIntervalMs:           10,
			SeekJumpSeconds:           30,
			PrevTrackThresholdSeconds: 5,
			NotRunningDebounceCycles:  200,
			SpeechLanguage:            "en",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}
