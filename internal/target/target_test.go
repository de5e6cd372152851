package target

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAlias(t *testing.T) {
	tg, err := Parse("linux-x64")
	require.NoError(t, err)
	require.Equal(t, "x86_64-unknown-linux-gnu", tg.Triple())
}

func TestParseFullTriple(t *testing.T) {
	tg, err := Parse("aarch64-apple-darwin")
	require.NoError(t, err)
	require.Equal(t, "aarch64", tg.Arch)
	require.Equal(t, "apple", tg.Vendor)
	require.Equal(t, "darwin", tg.OS)
}

func TestParseFillsDefaults(t *testing.T) {
	tg, err := Parse("x86_64-windows")
	require.NoError(t, err)
	require.Equal(t, "pc", tg.Vendor)
	require.Equal(t, "msvc", tg.ABI)
}

func TestParseNativeEmptyOrLiteral(t *testing.T) {
	SetNative(Target{Arch: "aarch64", Vendor: "apple", OS: "darwin"})
	defer SetNative(Native())

	a, err := Parse("")
	require.NoError(t, err)
	b, err := Parse("native")
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Equal(t, "darwin", a.OS)
}

func TestParseInvalidTriple(t *testing.T) {
	_, err := Parse("justonepart")
	require.Error(t, err)
}

func TestCanonicalizeRoundTrip(t *testing.T) {
	s, err := Canonicalize("linux-arm64")
	require.NoError(t, err)
	require.Equal(t, "aarch64-unknown-linux-gnu", s)

	s2, err := Canonicalize(s)
	require.NoError(t, err)
	require.Equal(t, s, s2)
}

func TestExtensionPerOSAndKind(t *testing.T) {
	linux := Target{Arch: "x86_64", OS: "linux"}
	windows := Target{Arch: "x86_64", OS: "windows"}
	darwin := Target{Arch: "aarch64", OS: "darwin"}
	wasi := Target{Arch: "wasm32", OS: "wasi"}

	require.Equal(t, ".so", linux.Extension(KindSharedLib))
	require.Equal(t, ".a", linux.Extension(KindStaticLib))
	require.Equal(t, "", linux.Extension(KindExecutable))
	require.Equal(t, ".o", linux.Extension(KindObject))

	require.Equal(t, ".dll", windows.Extension(KindSharedLib))
	require.Equal(t, ".lib", windows.Extension(KindStaticLib))
	require.Equal(t, ".exe", windows.Extension(KindExecutable))
	require.Equal(t, ".obj", windows.Extension(KindObject))

	require.Equal(t, ".dylib", darwin.Extension(KindSharedLib))

	require.Equal(t, ".wasm", wasi.Extension(KindSharedLib))
	require.Equal(t, ".wasm", wasi.Extension(KindExecutable))
}

func TestDefinesAndLinkLibrariesPerOS(t *testing.T) {
	linux := Target{Arch: "x86_64", OS: "linux"}
	require.Contains(t, linux.Defines(), "__linux__")
	require.Contains(t, linux.Defines(), "__x86_64__")
	require.ElementsMatch(t, []string{"c", "m", "pthread"}, linux.LinkLibraries())

	windows := Target{Arch: "x86_64", OS: "windows"}
	require.ElementsMatch(t, []string{"kernel32", "msvcrt"}, windows.LinkLibraries())
}

func TestNativeDefaultWithoutOverride(t *testing.T) {
	nativeOverride = nil
	tg := Native()
	require.Equal(t, "x86_64-unknown-linux-gnu", tg.Triple())
}
