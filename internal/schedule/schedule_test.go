package schedule

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/graph"
)

func mod(name string, deps ...string) config.ModuleConfig {
	return config.ModuleConfig{Name: name, Dependencies: deps}
}

func TestBuildLayersDiamond(t *testing.T) {
	g, err := graph.Build([]config.ModuleConfig{
		mod("app", "left", "right"),
		mod("left", "base"),
		mod("right", "base"),
		mod("base"),
	})
	require.NoError(t, err)

	sched, err := Build(g)
	require.NoError(t, err)

	require.Equal(t, []Layer{
		{"base"},
		{"left", "right"},
		{"app"},
	}, sched.Layers)
	require.Equal(t, []string{"base", "left", "right", "app"}, sched.Flatten())
}

func TestBuildTargetRestrictsToClosure(t *testing.T) {
	g, err := graph.Build([]config.ModuleConfig{
		mod("app", "lib"),
		mod("lib"),
		mod("unrelated"),
	})
	require.NoError(t, err)

	sched, err := BuildTarget(g, "app")
	require.NoError(t, err)

	flat := sched.Flatten()
	require.ElementsMatch(t, []string{"app", "lib"}, flat)
	require.NotContains(t, flat, "unrelated")
}

func TestBuildIndependentModulesSingleLayer(t *testing.T) {
	g, err := graph.Build([]config.ModuleConfig{mod("a"), mod("b"), mod("c")})
	require.NoError(t, err)

	sched, err := Build(g)
	require.NoError(t, err)
	require.Len(t, sched.Layers, 1)
	require.ElementsMatch(t, []string{"a", "b", "c"}, sched.Layers[0])
}
