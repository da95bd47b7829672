// Package config loads prospect config from YAML. Env overrides take
// precedence over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds resolved paths and settings. The journal directory is a
// single owned value here; the tailer and the side-channel poller are
// both constructed from it, never from separate copies.
type Config struct {
	JournalDir           string   `yaml:"journal_dir"`
	CargoPath            string   `yaml:"cargo_path"`
	StatusPath           string   `yaml:"status_path"`
	ControlDir           string   `yaml:"control_dir"`
	DbPath               string   `yaml:"db_path"`
	BlobDir              string   `yaml:"blob_dir"`
	PollIntervalMs       int      `yaml:"poll_interval_ms"`
	SidePollIntervalMs   int      `yaml:"side_poll_interval_ms"`
	TrackedMaterials     []string `yaml:"tracked_materials"`
	AnnounceThresholdPct float64  `yaml:"announce_threshold_pct"`
	RetentionMonths      int      `yaml:"retention_months"`
	BlobDiskCapGB        float64  `yaml:"blob_disk_cap_gb"`
	Backup               Backup   `yaml:"backup"`
}

// Backup configures the optional session-archive backup backend.
type Backup struct {
	Backend    string `yaml:"backend"` // "", "folder" or "s3"
	FolderRoot string `yaml:"folder_root"`
	KeyHex     string `yaml:"key_hex"` // 32-byte master key, hex
	S3         S3     `yaml:"s3"`
}

// S3 holds S3-compatible store settings.
type S3 struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// DefaultTrackedMaterials is the core-mining commodity set used when
// the config file names none.
var DefaultTrackedMaterials = []string{
	"Painite", "Platinum", "Osmium", "Rhodplumsite", "Serendibite",
	"Monazite", "Musgravite", "Benitoite", "Grandidierite",
	"Alexandrite", "Void Opals", "Low Temperature Diamonds",
}

// Load reads config from XDG_CONFIG_HOME/prospect/config.yaml. A
// missing file uses defaults. Env overrides: PROSPECT_JOURNAL_DIR,
// PROSPECT_DB_PATH, PROSPECT_CONTROL_DIR, PROSPECT_BLOB_DIR.
func Load() (*Config, error) {
	dataHome := xdgDataHome()
	path := filepath.Join(xdgConfigHome(), "prospect", "config.yaml")

	c := &Config{
		ControlDir:           filepath.Join(dataHome, "prospect", "control"),
		DbPath:               filepath.Join(dataHome, "prospect", "prospect.db"),
		BlobDir:              filepath.Join(dataHome, "prospect", "blobs"),
		PollIntervalMs:       500,
		SidePollIntervalMs:   2000,
		TrackedMaterials:     DefaultTrackedMaterials,
		AnnounceThresholdPct: 20,
		RetentionMonths:      12,
		BlobDiskCapGB:        1.0,
	}

	b, err := os.ReadFile(path)
	if err == nil {
		var raw Config
		if err := yaml.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if raw.JournalDir != "" {
			c.JournalDir = resolvePath(raw.JournalDir, dataHome)
		}
		if raw.CargoPath != "" {
			c.CargoPath = resolvePath(raw.CargoPath, dataHome)
		}
		if raw.StatusPath != "" {
			c.StatusPath = resolvePath(raw.StatusPath, dataHome)
		}
		if raw.ControlDir != "" {
			c.ControlDir = resolvePath(raw.ControlDir, dataHome)
		}
		if raw.DbPath != "" {
			c.DbPath = resolvePath(raw.DbPath, dataHome)
		}
		if raw.BlobDir != "" {
			c.BlobDir = resolvePath(raw.BlobDir, dataHome)
		}
		if raw.PollIntervalMs > 0 {
			c.PollIntervalMs = raw.PollIntervalMs
		}
		if raw.SidePollIntervalMs > 0 {
			c.SidePollIntervalMs = raw.SidePollIntervalMs
		}
		if len(raw.TrackedMaterials) > 0 {
			c.TrackedMaterials = raw.TrackedMaterials
		}
		if raw.AnnounceThresholdPct > 0 {
			c.AnnounceThresholdPct = raw.AnnounceThresholdPct
		}
		if raw.RetentionMonths > 0 {
			c.RetentionMonths = raw.RetentionMonths
		}
		if raw.BlobDiskCapGB > 0 {
			c.BlobDiskCapGB = raw.BlobDiskCapGB
		}
		c.Backup = raw.Backup
	}

	// Env overrides
	if v := os.Getenv("PROSPECT_JOURNAL_DIR"); v != "" {
		c.JournalDir = v
	}
	if v := os.Getenv("PROSPECT_DB_PATH"); v != "" {
		c.DbPath = v
	}
	if v := os.Getenv("PROSPECT_CONTROL_DIR"); v != "" {
		c.ControlDir = v
	}
	if v := os.Getenv("PROSPECT_BLOB_DIR"); v != "" {
		c.BlobDir = v
	}

	// Side-channel files live next to the journal unless overridden.
	if c.CargoPath == "" && c.JournalDir != "" {
		c.CargoPath = filepath.Join(c.JournalDir, "Cargo.json")
	}
	if c.StatusPath == "" && c.JournalDir != "" {
		c.StatusPath = filepath.Join(c.JournalDir, "Status.json")
	}

	return c, nil
}

// PollInterval returns the journal poll period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// SidePollInterval returns the side-channel re-check period.
func (c *Config) SidePollInterval() time.Duration {
	return time.Duration(c.SidePollIntervalMs) * time.Millisecond
}

func xdgDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share")
}

func xdgConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}

// resolvePath expands $XDG_DATA_HOME, $XDG_CONFIG_HOME and $HOME in
// paths from the config file.
func resolvePath(p, dataHome string) string {
	return filepath.Clean(os.Expand(p, func(key string) string {
		switch key {
		case "XDG_DATA_HOME":
			return dataHome
		case "XDG_CONFIG_HOME":
			return xdgConfigHome()
		case "HOME":
			home, _ := os.UserHomeDir()
			return home
		}
		return ""
	}))
}
