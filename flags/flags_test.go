package flags

import (
	"flag"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestUniqueFlagNames(t *testing.T) {
	seen := map[string]struct{}{}
	for _, flag := range Flags {
		name := flag.Names()[0]
		_, ok := seen[name]
		assert.False(t, ok, "duplicate flag name %s", name)
		seen[name] = struct{}{}
	}
}

func TestFlagEnvVarsArePrefixed(t *testing.T) {
	for _, flag := range Flags {
		envFlag, ok := flag.(interface{ GetEnvVars() []string })
		require.True(t, ok, "flag %s does not expose env vars", flag.Names()[0])

		envVars := envFlag.GetEnvVars()
		require.NotEmpty(t, envVars, "flag %s has no env var", flag.Names()[0])
		for _, v := range envVars {
			assert.True(t, strings.HasPrefix(v, EnvVarPrefix+"_"),
				"env var %s for flag %s is missing the %s prefix", v, flag.Names()[0], EnvVarPrefix)
		}
	}
}

func TestCheckRequired(t *testing.T) {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String(MatrixConfig.Name, "", "")
	ctx := cli.NewContext(nil, set, nil)

	err := CheckRequired(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matrix")

	require.NoError(t, set.Set(MatrixConfig.Name, "matrix.yaml"))
	assert.NoError(t, CheckRequired(ctx))
}
