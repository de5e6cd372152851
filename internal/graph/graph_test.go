package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/errs"
)

func mod(name string, deps ...string) config.ModuleConfig {
	return config.ModuleConfig{Name: name, Dependencies: deps}
}

func TestBuildLinearChain(t *testing.T) {
	g, err := Build([]config.ModuleConfig{
		mod("app", "lib"),
		mod("lib", "core"),
		mod("core"),
	})
	require.NoError(t, err)

	core, ok := g.Node("core")
	require.True(t, ok)
	require.Equal(t, 1, core.InDegree)

	app, ok := g.Node("app")
	require.True(t, ok)
	require.Equal(t, 0, app.InDegree)

	require.ElementsMatch(t, []string{"app"}, g.Dependents("lib"))
	require.ElementsMatch(t, []string{"lib"}, g.Dependents("core"))
}

func TestTransitiveDependenciesIncludesSelf(t *testing.T) {
	g, err := Build([]config.ModuleConfig{
		mod("app", "lib", "util"),
		mod("lib", "util"),
		mod("util"),
	})
	require.NoError(t, err)

	deps := g.TransitiveDependencies("app")
	require.True(t, deps["app"])
	require.True(t, deps["lib"])
	require.True(t, deps["util"])
	require.Len(t, deps, 3)

	require.Equal(t, map[string]bool{"util": true}, g.TransitiveDependencies("util"))
}

func TestBuildMissingDependency(t *testing.T) {
	_, err := Build([]config.ModuleConfig{
		mod("app", "ghost"),
	})
	require.Error(t, err)
	var ge *errs.GraphError
	require.ErrorAs(t, err, &ge)
	require.Equal(t, []string{"app", "ghost"}, ge.Chain)
}

func TestBuildDetectsCycle(t *testing.T) {
	_, err := Build([]config.ModuleConfig{
		mod("a", "b"),
		mod("b", "c"),
		mod("c", "a"),
	})
	require.Error(t, err)
	var ge *errs.GraphError
	require.ErrorAs(t, err, &ge)
	require.Equal(t, "cycle detected", ge.Reason)
	// The reported chain must start and end on the same module name.
	require.True(t, len(ge.Chain) >= 2)
	require.Equal(t, ge.Chain[0], ge.Chain[len(ge.Chain)-1])
}

func TestBuildSelfCycle(t *testing.T) {
	_, err := Build([]config.ModuleConfig{
		mod("a", "a"),
	})
	require.Error(t, err)
	var ge *errs.GraphError
	require.ErrorAs(t, err, &ge)
	require.Equal(t, "cycle detected", ge.Reason)
}

func TestNamesDeterministicOrder(t *testing.T) {
	g, err := Build([]config.ModuleConfig{mod("z"), mod("a"), mod("m")})
	require.NoError(t, err)
	require.Equal(t, []string{"z", "a", "m"}, g.Names())
}
