// Package config loads application settings from an optional YAML file and
// the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Quality presets for downloads
const (
	QualityBest   = "best"
	QualityMedium = "medium"
	QualityAudio  = "audio"
)

// Default values
const (
	DefaultConfigPath  = "mediaq.yaml"
	DefaultDownloadDir = "downloads"
	DefaultMaxParallel = 4
	DefaultArchiveName = "downloaded.txt"

	MinParallel = 1
	MaxParallel = 10
)

// Settings holds application configuration
type Settings struct {
	DownloadDir    string        `yaml:"download_dir" env:"MEDIAQ_DOWNLOAD_DIR" env-default:"downloads"`
	MaxParallel    int           `yaml:"max_parallel" env:"MEDIAQ_MAX_PARALLEL" env-default:"4"`
	QualityPreset  string        `yaml:"quality_preset" env:"MEDIAQ_QUALITY" env-default:"audio"`
	ArchiveName    string        `yaml:"archive_name" env:"MEDIAQ_ARCHIVE_NAME" env-default:"downloaded.txt"`
	ResolveTimeout time.Duration `yaml:"resolve_timeout" env:"MEDIAQ_RESOLVE_TIMEOUT" env-default:"60s"`
	AutoReveal     bool          `yaml:"auto_reveal" env:"MEDIAQ_AUTO_REVEAL" env-default:"false"`
	Notify         bool          `yaml:"notify" env:"MEDIAQ_NOTIFY" env-default:"true"`
}

// Load reads settings from the given YAML file when it exists, falling back
// to environment variables and defaults otherwise.
func Load(path string) (*Settings, error) {
	var cfg Settings

	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("read env config: %w", err)
		}
	}

	cfg.normalize()
	return &cfg, nil
}

// normalize clamps values into their supported ranges
func (s *Settings) normalize() {
	if s.MaxParallel < MinParallel {
		s.MaxParallel = DefaultMaxParallel
	}
	if s.MaxParallel > MaxParallel {
		s.MaxParallel = MaxParallel
	}
	switch s.QualityPreset {
	case QualityBest, QualityMedium, QualityAudio:
	default:
		s.QualityPreset = QualityAudio
	}
	if s.DownloadDir == "" {
		s.DownloadDir = DefaultDownloadDir
	}
	if s.ArchiveName == "" {
		s.ArchiveName = DefaultArchiveName
	}
}

// QualityPresetOptions returns the supported quality presets
func QualityPresetOptions() []string {
	return []string{QualityBest, QualityMedium, QualityAudio}
}
