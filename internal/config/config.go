package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/deckbuilder/internal/artifact"
	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/fragments"
)

// CurrentVersion is the configuration schema version written by Init.
const CurrentVersion = "1.0"

// Config represents the application configuration
type Config struct {
	Version  string         `yaml:"version"`
	Source   SourceConfig   `yaml:"source"`
	Output   OutputConfig   `yaml:"output"`
	Renderer RendererConfig `yaml:"renderer"`
	Lessons  LessonsConfig  `yaml:"lessons"`
	Extract  ExtractConfig  `yaml:"extract,omitempty"`
	Build    BuildConfig    `yaml:"build"`
	History  HistoryConfig  `yaml:"history,omitempty"`
	Metrics  MetricsConfig  `yaml:"metrics,omitempty"`
	Notify   NotifyConfig   `yaml:"notify,omitempty"`
	Daemon   DaemonConfig   `yaml:"daemon,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// SourceConfig locates lesson fragments.
type SourceConfig struct {
	Root      string           `yaml:"root"`
	Layout    fragments.Layout `yaml:"layout"`
	Extension string           `yaml:"extension"`
	Sentinel  string           `yaml:"sentinel"`
}

// OutputConfig represents output configuration
type OutputConfig struct {
	Root string `yaml:"root"`
}

// RendererConfig selects the renderer executable and per-kind flag overrides.
type RendererConfig struct {
	Executable string             `yaml:"executable"`
	Slides     artifact.Overrides `yaml:"slides,omitempty"`
	Exercises  artifact.Overrides `yaml:"exercises,omitempty"`
}

// Settings returns the effective renderer settings for kind k.
func (r RendererConfig) Settings(k artifact.Kind) artifact.Settings {
	base := artifact.DefaultSettings(k)
	switch k {
	case artifact.SlideDeck:
		return base.Apply(r.Slides)
	case artifact.ExerciseSheet:
		return base.Apply(r.Exercises)
	default:
		return base
	}
}

// LessonsConfig holds the fixed worklists, one per artifact kind.
type LessonsConfig struct {
	Slides    []string `yaml:"slides"`
	Exercises []string `yaml:"exercises"`
}

// For returns the worklist for kind k.
func (l LessonsConfig) For(k artifact.Kind) []string {
	switch k {
	case artifact.SlideDeck:
		return l.Slides
	case artifact.ExerciseSheet:
		return l.Exercises
	default:
		return nil
	}
}

// Total returns the number of lessons across all worklists.
func (l LessonsConfig) Total() int {
	return len(l.Slides) + len(l.Exercises)
}

// ExtractConfig describes the literate-code extraction command run before discovery.
// An empty command disables the step.
type ExtractConfig struct {
	Command []string `yaml:"command,omitempty"`
}

// BuildConfig controls build policy.
type BuildConfig struct {
	FailurePolicy FailurePolicy `yaml:"failure_policy"`
	// Report writes build-report.json into the output root (default true).
	Report *bool `yaml:"report,omitempty"`
	// Index writes index.html listing every rendered artifact.
	Index bool `yaml:"index,omitempty"`
}

// ReportEnabled reports whether the build report should be persisted.
func (b BuildConfig) ReportEnabled() bool {
	return b.Report == nil || *b.Report
}

// HistoryConfig enables the SQLite build history when Path is set.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// MetricsConfig enables Prometheus textfile export when Textfile is set.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// NotifyConfig enables NATS build notifications when NATSURL is set.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// DaemonConfig configures watch mode.
type DaemonConfig struct {
	// Schedule is an optional cron expression for periodic full rebuilds.
	Schedule string `yaml:"schedule,omitempty"`
	// Debounce delays a rebuild after the last source change (Go duration).
	Debounce string `yaml:"debounce,omitempty"`
}

// DebounceDuration parses Debounce, falling back to the default on error.
func (d DaemonConfig) DebounceDuration() time.Duration {
	if v, err := time.ParseDuration(d.Debounce); err == nil && v > 0 {
		return v
	}
	return defaultDebounce
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// Load loads, normalises, defaults and validates a configuration file.
func Load(configPath string) (*Config, error) {
	loadEnvFile()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, ferrors.ConfigError("configuration file not found").
			WithContext("path", configPath).Build()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").
			Fatal().WithContext("path", configPath).Build()
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	return cfg, nil
}

// Parse decodes configuration YAML with ${VAR} expansion, then applies defaults and validation.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}

	if cfg.Version != "" && cfg.Version != CurrentVersion {
		return nil, ferrors.ConfigError(fmt.Sprintf("unsupported configuration version: %s (expected %s)", cfg.Version, CurrentVersion)).Build()
	}

	if err := ApplyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init writes an example configuration file mirroring the tutorial layout.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).Build()
	}

	report := true
	exampleConfig := Config{
		Version: CurrentVersion,
		Source: SourceConfig{
			Root:      defaultSourceRoot,
			Layout:    fragments.LayoutDirectory,
			Extension: fragments.DefaultExtension,
			Sentinel:  fragments.DefaultSentinel,
		},
		Output:   OutputConfig{Root: defaultOutputRoot},
		Renderer: RendererConfig{Executable: defaultRenderer},
		Lessons: LessonsConfig{
			Slides:    []string{"whistler_rust_intro"},
			Exercises: []string{"ex_part_1", "ex_part_3"},
		},
		Extract: ExtractConfig{Command: []string{"tango"}},
		Build:   BuildConfig{FailurePolicy: FailurePolicyAbort, Report: &report},
		Notify:  NotifyConfig{Subject: defaultNotifySubject},
		Daemon:  DaemonConfig{Debounce: defaultDebounce.String()},
		Logging: LoggingConfig{Level: LogLevelInfo, Format: LogFormatText},
	}

	data, err := yaml.Marshal(&exampleConfig)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to marshal config").Fatal().Build()
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "failed to write config file").
			Fatal().WithContext("path", configPath).Build()
	}
	return nil
}
