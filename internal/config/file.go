package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/backmassage/vidshrink/internal/skip"
)

// fileConfig is the YAML shape of --config. Pointer fields distinguish
// "absent" from "zero" so only keys present in the file override defaults.
type fileConfig struct {
	Workers        *int     `yaml:"workers"`
	Ledger         *string  `yaml:"ledger"`
	TempDir        *string  `yaml:"temp_dir"`
	LogFile        *string  `yaml:"log"`
	HandBrake      *string  `yaml:"handbrake"`
	Ffprobe        *string  `yaml:"ffprobe"`
	Preset         *string  `yaml:"preset"`
	PresetFile     *string  `yaml:"preset_file"`
	RetryFailed    *bool    `yaml:"retry_failed"`
	MinImprovement *float64 `yaml:"min_improvement"`
	Extensions     []string `yaml:"extensions"`
	Backups        *bool    `yaml:"backups"`
	BackupSubdir   *string  `yaml:"backup_subdir"`
	Suspend        *string  `yaml:"suspend"`
	MenuSettle     *string  `yaml:"menu_settle"`
	MoveRetries    *int     `yaml:"move_retries"`
	MoveRetryDelay *string  `yaml:"move_retry_delay"`
	Thresholds     *struct {
		EfficientCodecs []string           `yaml:"efficient_codecs"`
		MinWidth        *int               `yaml:"min_width"`
		MinHeight       *int               `yaml:"min_height"`
		BitrateTiers    []skip.BitrateTier `yaml:"bitrate_tiers"`
		MaxMBPerHour    *float64           `yaml:"max_mb_per_hour"`
	} `yaml:"thresholds"`
}

// LoadFile overlays the YAML file at path onto cfg. Unknown keys are an error
// so typos don't silently fall back to defaults.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var fc fileConfig
	if err := dec.Decode(&fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ConfigFile = path
	return fc.apply(cfg)
}

func (fc *fileConfig) apply(cfg *Config) error {
	setInt(&cfg.Workers, fc.Workers)
	setString(&cfg.LedgerPath, fc.Ledger)
	setString(&cfg.TempDir, fc.TempDir)
	setString(&cfg.LogFile, fc.LogFile)
	setString(&cfg.HandBrakeBin, fc.HandBrake)
	setString(&cfg.FfprobeBin, fc.Ffprobe)
	setString(&cfg.Preset, fc.Preset)
	setString(&cfg.PresetFile, fc.PresetFile)
	setString(&cfg.BackupSubdir, fc.BackupSubdir)
	setInt(&cfg.MoveRetries, fc.MoveRetries)
	if fc.RetryFailed != nil {
		cfg.RetryFailed = *fc.RetryFailed
	}
	if fc.Backups != nil {
		cfg.Backups = *fc.Backups
	}
	if fc.MinImprovement != nil {
		cfg.MinImprovement = *fc.MinImprovement
	}
	if len(fc.Extensions) > 0 {
		cfg.Extensions = fc.Extensions
	}
	if fc.Suspend != nil {
		if err := (&suspendModeValue{&cfg.SuspendMode}).Set(*fc.Suspend); err != nil {
			return err
		}
	}
	if err := setDuration(&cfg.MenuSettle, fc.MenuSettle, "menu_settle"); err != nil {
		return err
	}
	if err := setDuration(&cfg.MoveRetryDelay, fc.MoveRetryDelay, "move_retry_delay"); err != nil {
		return err
	}

	if th := fc.Thresholds; th != nil {
		if th.EfficientCodecs != nil {
			cfg.Thresholds.EfficientCodecs = th.EfficientCodecs
		}
		setInt(&cfg.Thresholds.MinWidth, th.MinWidth)
		setInt(&cfg.Thresholds.MinHeight, th.MinHeight)
		if th.BitrateTiers != nil {
			cfg.Thresholds.BitrateTiers = th.BitrateTiers
		}
		if th.MaxMBPerHour != nil {
			cfg.Thresholds.MaxBytesPerHour = int64(*th.MaxMBPerHour * 1024 * 1024)
		}
	}
	return nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, name string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}
