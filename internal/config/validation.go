package config

import (
	"fmt"
	"strings"
	"time"

	"git.home.luguber.info/inful/deckbuilder/internal/artifact"
	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/fragments"
)

// ValidateConfig validates the complete configuration structure.
func ValidateConfig(cfg *Config) error {
	validator := newConfigurationValidator(cfg)
	return validator.validate()
}

// configurationValidator coordinates validation across all configuration domains.
type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

func (cv *configurationValidator) validate() error {
	if err := cv.validateSource(); err != nil {
		return err
	}
	if err := cv.validateRenderer(); err != nil {
		return err
	}
	if err := cv.validateLessons(); err != nil {
		return err
	}
	if err := cv.validateBuild(); err != nil {
		return err
	}
	return cv.validateDaemon()
}

func (cv *configurationValidator) validateSource() error {
	src := cv.config.Source
	switch src.Layout {
	case fragments.LayoutDirectory, fragments.LayoutSingleFile:
	default:
		return invalid("source.layout", fmt.Sprintf("unsupported layout %q (valid: %s)",
			src.Layout, strings.Join(layoutNormalizer.ValidValues(), ", ")))
	}
	if !strings.HasPrefix(src.Extension, ".") || len(src.Extension) < 2 {
		return invalid("source.extension", fmt.Sprintf("extension %q must start with '.'", src.Extension))
	}
	if strings.ContainsAny(src.Sentinel, `/\`) {
		return invalid("source.sentinel", "sentinel must be a bare filename")
	}
	if cv.config.Output.Root == "" {
		return invalid("output.root", "output root is required")
	}
	return nil
}

func (cv *configurationValidator) validateRenderer() error {
	if strings.TrimSpace(cv.config.Renderer.Executable) == "" {
		return invalid("renderer.executable", "renderer executable is required")
	}
	return nil
}

func (cv *configurationValidator) validateLessons() error {
	if cv.config.Lessons.Total() == 0 {
		return invalid("lessons", "at least one slide or exercise lesson must be listed")
	}
	for _, k := range artifact.Kinds() {
		seen := make(map[string]struct{})
		for _, name := range cv.config.Lessons.For(k) {
			field := "lessons." + k.String()
			if strings.TrimSpace(name) == "" {
				return invalid(field, "lesson names must not be empty")
			}
			if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
				return invalid(field, fmt.Sprintf("lesson %q must be a plain name", name))
			}
			if _, dup := seen[name]; dup {
				return invalid(field, fmt.Sprintf("lesson %q listed twice", name))
			}
			seen[name] = struct{}{}
		}
	}
	return nil
}

func (cv *configurationValidator) validateBuild() error {
	switch cv.config.Build.FailurePolicy {
	case FailurePolicyAbort, FailurePolicyContinue:
		return nil
	default:
		return invalid("build.failure_policy", fmt.Sprintf("unsupported policy %q (valid: %s)",
			cv.config.Build.FailurePolicy, strings.Join(failurePolicyNormalizer.ValidValues(), ", ")))
	}
}

func (cv *configurationValidator) validateDaemon() error {
	if sched := cv.config.Daemon.Schedule; sched != "" {
		if len(strings.Fields(sched)) != 5 {
			return invalid("daemon.schedule", fmt.Sprintf("schedule %q must be a 5-field cron expression", sched))
		}
	}
	if d, err := time.ParseDuration(cv.config.Daemon.Debounce); err != nil || d <= 0 {
		return invalid("daemon.debounce", fmt.Sprintf("invalid duration %q", cv.config.Daemon.Debounce))
	}
	return nil
}

func invalid(field, message string) error {
	return ferrors.ConfigError("invalid configuration: "+message).
		WithContext("field", field).Build()
}
