package config

import (
	"time"

	"git.home.luguber.info/inful/deckbuilder/internal/foundation/normalization"
	"git.home.luguber.info/inful/deckbuilder/internal/fragments"
)

const (
	defaultSourceRoot    = "src/tutorial"
	defaultOutputRoot    = "target"
	defaultRenderer      = "pandoc"
	defaultNotifySubject = "deckbuilder.builds"
	defaultDebounce      = 2 * time.Second
)

// FailurePolicy decides what happens after a lesson fails to build.
type FailurePolicy string

const (
	// FailurePolicyAbort stops the build at the first failure (default).
	FailurePolicyAbort FailurePolicy = "abort"
	// FailurePolicyContinue renders every remaining lesson and reports all failures at the end.
	FailurePolicyContinue FailurePolicy = "continue"
)

var failurePolicyNormalizer = normalization.NewEnumNormalizer("failure_policy", map[string]FailurePolicy{
	"abort":    FailurePolicyAbort,
	"continue": FailurePolicyContinue,
}, FailurePolicyAbort)

var layoutNormalizer = normalization.NewEnumNormalizer("source.layout", map[string]fragments.Layout{
	"directory":   fragments.LayoutDirectory,
	"single_file": fragments.LayoutSingleFile,
}, fragments.LayoutDirectory)

// NormalizeFailurePolicy returns the canonical policy or an error listing valid values.
func NormalizeFailurePolicy(raw string) (FailurePolicy, error) {
	return failurePolicyNormalizer.NormalizeWithValidation(raw)
}

// ApplyDefaults fills unset fields and canonicalises enumerations. Unknown enum
// values are left for ValidateConfig to reject.
func ApplyDefaults(cfg *Config) error {
	if cfg.Version == "" {
		cfg.Version = CurrentVersion
	}

	if cfg.Source.Root == "" {
		cfg.Source.Root = defaultSourceRoot
	}
	if cfg.Source.Layout == "" {
		cfg.Source.Layout = fragments.LayoutDirectory
	} else if l, err := layoutNormalizer.NormalizeWithValidation(string(cfg.Source.Layout)); err == nil {
		cfg.Source.Layout = l
	}
	if cfg.Source.Extension == "" {
		cfg.Source.Extension = fragments.DefaultExtension
	}
	if cfg.Source.Sentinel == "" {
		cfg.Source.Sentinel = fragments.DefaultSentinel
	}

	if cfg.Output.Root == "" {
		cfg.Output.Root = defaultOutputRoot
	}
	if cfg.Renderer.Executable == "" {
		cfg.Renderer.Executable = defaultRenderer
	}

	if cfg.Build.FailurePolicy == "" {
		cfg.Build.FailurePolicy = FailurePolicyAbort
	} else if p, err := NormalizeFailurePolicy(string(cfg.Build.FailurePolicy)); err == nil {
		cfg.Build.FailurePolicy = p
	}

	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = defaultNotifySubject
	}
	if cfg.Daemon.Debounce == "" {
		cfg.Daemon.Debounce = defaultDebounce.String()
	}

	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	return nil
}
