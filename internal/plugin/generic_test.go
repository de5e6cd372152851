package plugin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/errs"
	"github.com/forgebuild/forge/internal/iface"
)

func sampleInterfaceForGlueTest() *iface.ModuleInterface {
	return &iface.ModuleInterface{
		SchemaVersion: iface.SchemaVersion,
		Module:        iface.ModuleVersion{Name: "sample", Version: "0.0.0"},
		Language:      iface.Language{Name: "c", ABI: iface.ABIC, Mode: iface.ModeNative},
		Exports: []iface.Export{{
			Name:      "f",
			Signature: iface.Signature{ReturnType: iface.Primitive(iface.Void), Convention: iface.ConvCDecl},
		}},
	}
}

func TestDiscoverSourcesFiltersByExtensionAndSorts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "z.c"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.c"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	sources, err := discoverSources(dir, []string{".c"})
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "a.c"), filepath.Join(dir, "z.c")}, sources)
}

func TestDiscoverSourcesMissingDirYieldsEmpty(t *testing.T) {
	sources, err := discoverSources(filepath.Join(t.TempDir(), "nope"), []string{".c"})
	require.NoError(t, err)
	require.Empty(t, sources)
}

func TestGenericCompileNoSourcesIsError(t *testing.T) {
	g := NewGeneric(LanguageDefinition{
		ID:                  "c",
		SourceExtensions:    []string{".c"},
		ToolchainCandidates: []string{"sh"}, // "sh" exists on any POSIX test runner
	})
	dir := t.TempDir()
	result := g.Compile(context.Background(), CompileInput{
		Module: config.ModuleConfig{Name: "empty", ModulePath: dir},
	})
	require.False(t, result.Success)
	require.Error(t, result.Err)
}

func TestGenericExtractInterfaceNilWhenUnset(t *testing.T) {
	g := NewGeneric(LanguageDefinition{ID: "python"})
	mi, err := g.ExtractInterface(context.Background(), "/tmp/whatever")
	require.NoError(t, err)
	require.Nil(t, mi)
}

func TestGenericGenerateGlueWrapsErrorAsGlueError(t *testing.T) {
	g := NewGeneric(LanguageDefinition{ID: "c"})
	mi := sampleInterfaceForGlueTest()
	_, err := g.GenerateGlue(mi, "nonexistent-language", "consumer")
	require.Error(t, err)
	var ge *errs.GlueError
	require.ErrorAs(t, err, &ge)
}
