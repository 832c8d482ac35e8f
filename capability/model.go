// Package capability maintains the registry of platform capabilities and
// how they default per (runtime version, operating system) target.
package capability

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/infra-ci/matrixrun/types"
)

// Rule describes capability defaults for a range of targets. Rules are
// evaluated in order; the first match wins.
type Rule struct {
	OS         string `yaml:"os"`
	MinRuntime string `yaml:"min_runtime,omitempty"`
	MaxRuntime string `yaml:"max_runtime,omitempty"`
	// Preview restricts the rule to preview (pre-release) runtimes when
	// true, to stable runtimes when false, and matches both when unset.
	Preview      *bool                     `yaml:"preview,omitempty"`
	Capabilities map[types.Capability]bool `yaml:"capabilities"`
}

// Model is the typed registry of capability defaults.
type Model struct {
	log   log.Logger
	rules []Rule
}

// NewModel creates a model with the built-in default rules.
func NewModel(logger log.Logger) *Model {
	if logger == nil {
		logger = log.New()
	}
	return &Model{log: logger, rules: defaultRules()}
}

// LoadModel creates a model from a YAML rules file. The file fully
// replaces the built-in table.
func LoadModel(logger log.Logger, path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewConfigurationError(fmt.Errorf("reading capability config: %w", err))
	}

	var doc struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, types.NewConfigurationError(fmt.Errorf("parsing capability config: %w", err))
	}
	if err := validateRules(doc.Rules); err != nil {
		return nil, types.NewConfigurationError(err)
	}

	if logger == nil {
		logger = log.New()
	}
	logger.Debug("Capability model loaded", "path", path, "len(rules)", len(doc.Rules))
	return &Model{log: logger, rules: doc.Rules}, nil
}

// DefaultsFor returns the capability defaults for a target. It is a pure
// function of its inputs and total: an unknown combination yields the
// all-disabled set rather than an error, so an unrecognized target never
// silently runs capability-dependent tests it cannot support.
func (m *Model) DefaultsFor(runtimeVersion, targetOS string) types.CapabilityFlagSet {
	version := canonicalVersion(runtimeVersion)

	for _, rule := range m.rules {
		if !rule.matches(version, targetOS) {
			continue
		}
		flags := make(types.CapabilityFlagSet, len(rule.Capabilities))
		for c, v := range rule.Capabilities {
			flags[c] = v
		}
		return flags
	}

	m.log.Debug("No capability rule matched, defaulting to all-disabled",
		"runtime", runtimeVersion, "os", targetOS)
	return types.CapabilityFlagSet{}
}

func (r Rule) matches(version, targetOS string) bool {
	if !strings.EqualFold(r.OS, targetOS) {
		return false
	}

	constrained := r.MinRuntime != "" || r.MaxRuntime != "" || r.Preview != nil
	if version == "" {
		// An unparsable version only matches unconstrained rules.
		return !constrained
	}
	if r.Preview != nil && *r.Preview != (semver.Prerelease(version) != "") {
		return false
	}
	if r.MinRuntime != "" && semver.Compare(version, canonicalVersion(r.MinRuntime)) < 0 {
		return false
	}
	if r.MaxRuntime != "" && semver.Compare(version, canonicalVersion(r.MaxRuntime)) > 0 {
		return false
	}
	return true
}

func validateRules(rules []Rule) error {
	for i, rule := range rules {
		if rule.OS == "" {
			return fmt.Errorf("capability rule %d: os is required", i)
		}
		for _, bound := range []string{rule.MinRuntime, rule.MaxRuntime} {
			if bound != "" && canonicalVersion(bound) == "" {
				return fmt.Errorf("capability rule %d: invalid runtime version %q", i, bound)
			}
		}
		for c := range rule.Capabilities {
			if !types.IsKnownCapability(c) {
				return fmt.Errorf("capability rule %d: unknown capability %q", i, c)
			}
		}
	}
	return nil
}

// canonicalVersion maps a runtime version like "3.9" or "3.10-preview"
// onto semver form for comparison. Runtime versions are usually
// major.minor, but semver only accepts a prerelease suffix after a full
// major.minor.patch, so the numeric part is padded before the suffix is
// reattached. Returns "" for unparsable versions.
func canonicalVersion(version string) string {
	base, suffix, hasSuffix := strings.Cut(version, "-")

	v := strings.TrimPrefix(base, "v")
	switch strings.Count(v, ".") {
	case 0:
		v += ".0.0"
	case 1:
		v += ".0"
	}
	v = "v" + v
	if hasSuffix {
		v += "-" + suffix
	}

	if !semver.IsValid(v) {
		return ""
	}
	return v
}

func defaultRules() []Rule {
	preview := true
	all := map[types.Capability]bool{
		types.CapabilityKeyboard: true,
		types.CapabilityRaw:      true,
		types.CapabilityQuick:    true,
	}
	quickOnly := map[types.Capability]bool{
		types.CapabilityQuick: true,
	}

	return []Rule{
		// Preview runtimes are unstable; restrict them to the quick subset
		// regardless of OS support for the interactive tests.
		{OS: "linux", Preview: &preview, Capabilities: quickOnly},
		{OS: "darwin", Preview: &preview, Capabilities: quickOnly},
		{OS: "linux", Capabilities: all},
		{OS: "darwin", Capabilities: all},
		// Keyboard and raw-mode tests are POSIX-only.
		{OS: "windows", Capabilities: quickOnly},
	}
}
