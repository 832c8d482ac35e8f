// Package environment derives the full set of environment bindings for
// one resolved job.
package environment

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/infra-ci/matrixrun/types"
)

// Binding keys are namespaced so a capability flag and the runtime
// selector can never share a key: capability bindings live under the
// CAP_ prefix, the runtime selector does not.
const (
	capKeyPrefix = "MATRIXRUN_CAP_"
	RuntimeKey   = "MATRIXRUN_RUNTIME"
	OSKey        = "MATRIXRUN_OS"
)

// Bindings maps environment variable names to string values.
type Bindings map[string]string

// CapabilityKey returns the binding key for a capability flag.
func CapabilityKey(c types.Capability) string {
	return capKeyPrefix + strings.ToUpper(string(c))
}

// Build derives the environment bindings for a job. Layers, in
// increasing precedence:
//
//  1. the job's capability flags, serialized as boolean bindings
//  2. the runtime selector and target OS
//  3. explicit per-template environment overrides
//
// The layering lets a capability default be overridden per job without
// editing the capability table, while the namespaced keys guarantee the
// runtime selector is never clobbered by a stray capability flag name.
func Build(job types.Job) Bindings {
	b := make(Bindings, len(types.KnownCapabilities())+2+len(job.EnvOverrides))

	for _, c := range types.KnownCapabilities() {
		b[CapabilityKey(c)] = strconv.FormatBool(job.Capabilities.Enabled(c))
	}

	b[RuntimeKey] = job.RuntimeVersion
	b[OSKey] = job.OS

	for k, v := range job.EnvOverrides {
		b[k] = v
	}

	return b
}

// Environ renders the bindings as KEY=value pairs in stable order,
// suitable for appending to a child process environment.
func (b Bindings) Environ() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, b[k]))
	}
	return out
}
