package app

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process configuration. Values come from the optional YAML
// file, then environment overrides, in that order.
type Config struct {
	ListenAddr string     `yaml:"listen_addr"`
	Log        LogConfig  `yaml:"log"`
	Rooms      RoomConfig `yaml:"rooms"`
}

type LogConfig struct {
	// MinSeverity is one of debug, info, warn, error.
	MinSeverity string        `yaml:"min_severity"`
	Console     bool          `yaml:"console"`
	File        FileLogConfig `yaml:"file"`
	// JournalPath, when set, appends every routed event as NDJSON to this
	// file for offline match review. Unrotated; point it at tmpfs or a
	// log-collected volume.
	JournalPath string `yaml:"journal_path"`
}

type FileLogConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type RoomConfig struct {
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// DefaultAppConfig is what runs when no file and no environment are present.
func DefaultAppConfig() Config {
	return Config{
		ListenAddr: ":8080",
		Log: LogConfig{
			MinSeverity: "info",
			Console:     true,
			File: FileLogConfig{
				Path: "partyhall.log.ndjson",
			},
		},
		Rooms: RoomConfig{
			IdleTimeout:   30 * time.Minute,
			SweepInterval: time.Minute,
		},
	}
}

// LoadConfig reads path if it exists, then applies environment overrides. A
// missing file is not an error; a malformed one is.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultAppConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PARTYHALL_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("PARTYHALL_LOG_SEVERITY"); v != "" {
		c.Log.MinSeverity = v
	}
	if v := os.Getenv("PARTYHALL_LOG_FILE"); v != "" {
		c.Log.File.Enabled = true
		c.Log.File.Path = v
	}
	if v := os.Getenv("PARTYHALL_LOG_JOURNAL"); v != "" {
		c.Log.JournalPath = v
	}
	if v := os.Getenv("PARTYHALL_ROOM_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Rooms.IdleTimeout = d
		}
	}
	if v := os.Getenv("PARTYHALL_ROOM_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Rooms.SweepInterval = d
		}
	}
	if v := os.Getenv("PARTYHALL_LOG_CONSOLE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Log.Console = b
		}
	}
}
