package types

import (
	"fmt"
	"sort"
)

// Capability identifies a category of tests that a platform/runtime
// combination may or may not support.
type Capability string

const (
	// CapabilityKeyboard covers interactive keyboard simulation tests.
	CapabilityKeyboard Capability = "keyboard"
	// CapabilityRaw covers raw terminal mode tests.
	CapabilityRaw Capability = "raw"
	// CapabilityQuick covers the quick test subset.
	CapabilityQuick Capability = "quick"
)

// KnownCapabilities returns every capability the orchestrator understands.
func KnownCapabilities() []Capability {
	return []Capability{CapabilityKeyboard, CapabilityRaw, CapabilityQuick}
}

// IsKnownCapability reports whether c is a recognized capability name.
func IsKnownCapability(c Capability) bool {
	for _, known := range KnownCapabilities() {
		if c == known {
			return true
		}
	}
	return false
}

// CapabilityFlagSet maps capability names to booleans for one job.
// An absent capability means disabled.
type CapabilityFlagSet map[Capability]bool

// Enabled reports whether the capability is present and enabled.
func (s CapabilityFlagSet) Enabled(c Capability) bool {
	return s[c]
}

// Clone returns an independent copy of the flag set.
func (s CapabilityFlagSet) Clone() CapabilityFlagSet {
	out := make(CapabilityFlagSet, len(s))
	for c, v := range s {
		out[c] = v
	}
	return out
}

// Apply returns a new flag set with the overrides applied on top of s.
// An override replaces the defaulted value outright; applying the same
// overrides twice yields the same result as applying them once.
func (s CapabilityFlagSet) Apply(overrides map[Capability]bool) CapabilityFlagSet {
	out := s.Clone()
	for c, v := range overrides {
		out[c] = v
	}
	return out
}

// Active returns the enabled capabilities in stable (sorted) order.
func (s CapabilityFlagSet) Active() []Capability {
	var active []Capability
	for c, v := range s {
		if v {
			active = append(active, c)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i] < active[j] })
	return active
}

// AnyEnabled reports whether at least one capability is enabled.
func (s CapabilityFlagSet) AnyEnabled() bool {
	for _, v := range s {
		if v {
			return true
		}
	}
	return false
}

// JobTemplate is one authored row of the matrix. It may be partial;
// expansion resolves it into a Job or rejects the whole matrix.
type JobTemplate struct {
	RuntimeVersion       string              `yaml:"runtime"`
	OS                   string              `yaml:"os"`
	DisplayLabel         string              `yaml:"label,omitempty"`
	Optional             bool                `yaml:"optional,omitempty"`
	TestSubsets          []string            `yaml:"subsets,omitempty"`
	CapabilityOverrides  map[Capability]bool `yaml:"capabilities,omitempty"`
	EnvironmentOverrides map[string]string   `yaml:"env,omitempty"`
}

// Label returns the display label, defaulting to "<runtime>-<os>".
func (t JobTemplate) Label() string {
	if t.DisplayLabel != "" {
		return t.DisplayLabel
	}
	return fmt.Sprintf("%s-%s", t.RuntimeVersion, t.OS)
}

// Job is a fully resolved JobTemplate. It is immutable once built and
// consumed exactly once by the executor. Index is the job's slot in the
// run's result collection and matches the authored template order.
type Job struct {
	Index          int
	RuntimeVersion string
	OS             string
	DisplayLabel   string
	Optional       bool
	Capabilities   CapabilityFlagSet
	EnvOverrides   map[string]string
}

// HasTestSubset reports whether any test-subset capability is enabled.
// A job without one runs no tests (e.g. a pure-linting job) and produces
// no coverage by construction.
func (j Job) HasTestSubset() bool {
	return j.Capabilities.AnyEnabled()
}
