// Package matrix loads the authored test matrix and expands it into
// fully resolved jobs.
//
// The matrix is an explicit enumerated list of job templates, not an
// axis cross-product: capability-conditioned behavior makes blind
// cross-products produce invalid combinations (e.g. a Windows target
// paired with POSIX-only keyboard tests), so only authored rows exist.
package matrix

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/infra-ci/matrixrun/capability"
	"github.com/infra-ci/matrixrun/types"
)

// Config is the parsed matrix configuration file.
type Config struct {
	Jobs []types.JobTemplate `yaml:"jobs"`
}

// LoadConfig loads a matrix config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewConfigurationError(fmt.Errorf("reading matrix config: %w", err))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, types.NewConfigurationError(fmt.Errorf("parsing matrix config: %w", err))
	}
	if len(cfg.Jobs) == 0 {
		return nil, types.NewConfigurationError(fmt.Errorf("matrix config %s declares no jobs", path))
	}

	return &cfg, nil
}

// Expander resolves job templates into jobs using capability defaults.
type Expander struct {
	log   log.Logger
	model *capability.Model
}

// NewExpander creates an expander backed by the given capability model.
func NewExpander(logger log.Logger, model *capability.Model) *Expander {
	if logger == nil {
		logger = log.New()
	}
	return &Expander{log: logger, model: model}
}

// Expand resolves every template into a Job. Expansion is all-or-nothing:
// any template missing a required axis value fails the whole expansion
// with a ConfigurationError and zero jobs, so a partial matrix is never
// silently run. Output order preserves template order; downstream
// reporting correlates job index to display label.
func (e *Expander) Expand(templates []types.JobTemplate) ([]types.Job, error) {
	jobs := make([]types.Job, 0, len(templates))

	for i, tmpl := range templates {
		job, err := e.resolve(i, tmpl)
		if err != nil {
			return nil, types.NewConfigurationError(err)
		}
		jobs = append(jobs, job)
	}

	e.log.Debug("Matrix expanded", "len(jobs)", len(jobs))
	return jobs, nil
}

func (e *Expander) resolve(index int, tmpl types.JobTemplate) (types.Job, error) {
	if tmpl.RuntimeVersion == "" {
		return types.Job{}, fmt.Errorf("job template %d (%s): missing required field: runtime", index, tmpl.Label())
	}
	if tmpl.OS == "" {
		return types.Job{}, fmt.Errorf("job template %d (%s): missing required field: os", index, tmpl.Label())
	}

	selected := make(map[types.Capability]bool, len(tmpl.TestSubsets))
	for _, subset := range tmpl.TestSubsets {
		c := types.Capability(subset)
		if !types.IsKnownCapability(c) {
			return types.Job{}, fmt.Errorf("job template %d (%s): unknown test subset %q", index, tmpl.Label(), subset)
		}
		selected[c] = true
	}
	for c := range tmpl.CapabilityOverrides {
		if !types.IsKnownCapability(c) {
			return types.Job{}, fmt.Errorf("job template %d (%s): unknown capability %q", index, tmpl.Label(), c)
		}
	}

	// Defaults first, then per-template overrides. An override replaces
	// the defaulted value outright, it never merges.
	supported := e.model.DefaultsFor(tmpl.RuntimeVersion, tmpl.OS)
	supported = supported.Apply(tmpl.CapabilityOverrides)

	// A subset runs iff it was selected and the resolved capability set
	// supports it. Every known capability resolves to a concrete boolean;
	// no unresolved defaults remain on the job.
	flags := make(types.CapabilityFlagSet, len(types.KnownCapabilities()))
	for _, c := range types.KnownCapabilities() {
		flags[c] = selected[c] && supported.Enabled(c)
	}

	env := make(map[string]string, len(tmpl.EnvironmentOverrides))
	for k, v := range tmpl.EnvironmentOverrides {
		env[k] = v
	}

	return types.Job{
		Index:          index,
		RuntimeVersion: tmpl.RuntimeVersion,
		OS:             tmpl.OS,
		DisplayLabel:   tmpl.Label(),
		Optional:       tmpl.Optional,
		Capabilities:   flags,
		EnvOverrides:   env,
	}, nil
}
