package linker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge/internal/errs"
	"github.com/forgebuild/forge/internal/target"
)

func fakeTarget() target.Target {
	return target.Target{Arch: "x86_64", Vendor: "unknown", OS: "linux", ABI: "gnu"}
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	return p
}

func TestCollectInputsClassifiesByExtension(t *testing.T) {
	libDir := t.TempDir()
	appDir := t.TempDir()
	writeFile(t, libDir, "core.a")
	writeFile(t, libDir, "core.o")
	writeFile(t, appDir, "app.rlib")
	writeFile(t, appDir, "notes.txt") // unrecognized extension, ignored

	inputs, err := CollectInputs(map[string]string{"lib": libDir, "app": appDir})
	require.NoError(t, err)
	require.Len(t, inputs, 3)

	var kinds []InputKind
	for _, in := range inputs {
		kinds = append(kinds, in.Kind)
	}
	require.ElementsMatch(t, []InputKind{StaticLib, Object, RustLib}, kinds)
}

func TestCollectInputsSkipsMissingDir(t *testing.T) {
	inputs, err := CollectInputs(map[string]string{"ghost": filepath.Join(t.TempDir(), "missing")})
	require.NoError(t, err)
	require.Empty(t, inputs)
}

func TestAllManaged(t *testing.T) {
	require.True(t, allManaged([]Input{{Kind: DotNetAssembly}, {Kind: DotNetAssembly}}))
	require.False(t, allManaged([]Input{{Kind: DotNetAssembly}, {Kind: Object}}))
}

func TestPickMainAssemblyExactMatch(t *testing.T) {
	inputs := []Input{
		{Path: "/out/lib/Helper.dll", Kind: DotNetAssembly},
		{Path: "/out/app/App.dll", Kind: DotNetAssembly},
	}
	main, err := pickMainAssembly(inputs, "App")
	require.NoError(t, err)
	require.Equal(t, "/out/app/App.dll", main.Path)
}

func TestPickMainAssemblyNoneMatches(t *testing.T) {
	inputs := []Input{{Path: "/out/lib/Helper.dll", Kind: DotNetAssembly}}
	_, err := pickMainAssembly(inputs, "App")
	require.Error(t, err)
	var le *errs.LinkError
	require.ErrorAs(t, err, &le)
}

func TestPickMainAssemblyAmbiguous(t *testing.T) {
	inputs := []Input{
		{Path: "/a/App.dll", Kind: DotNetAssembly},
		{Path: "/b/App.dll", Kind: DotNetAssembly},
	}
	_, err := pickMainAssembly(inputs, "App")
	require.Error(t, err)
	var le *errs.LinkError
	require.ErrorAs(t, err, &le)
}

func TestLinkManagedCopiesMainSiblingsAndSidecars(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()

	mainSrc := writeFile(t, srcDir, "App.dll")
	writeFile(t, srcDir, "App.deps.json")
	writeFile(t, srcDir, "App.runtimeconfig.json")
	helperSrc := writeFile(t, srcDir, "Helper.dll")

	inputs := []Input{
		{Path: mainSrc, Kind: DotNetAssembly},
		{Path: helperSrc, Kind: DotNetAssembly},
	}

	out, err := linkManaged(inputs, "App", outDir, "App")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(outDir, "App.dll"), out)

	for _, name := range []string{"App.dll", "App.deps.json", "App.runtimeconfig.json", "Helper.dll"} {
		_, statErr := os.Stat(filepath.Join(outDir, name))
		require.NoErrorf(t, statErr, "expected %s to be copied", name)
	}
}

func TestBuildArgsUnixStyle(t *testing.T) {
	args := buildArgs("/usr/bin/ld", []Input{{Path: "a.o"}}, "/out/app", fakeTarget(), target.KindExecutable)
	require.Contains(t, args, "a.o")
	require.Contains(t, args, "-o")
	require.Contains(t, args, "/out/app")
}
