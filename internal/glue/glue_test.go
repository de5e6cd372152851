package glue

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge/internal/iface"
)

func sampleInterface() *iface.ModuleInterface {
	return &iface.ModuleInterface{
		SchemaVersion: iface.SchemaVersion,
		Module:        iface.ModuleVersion{Name: "math-lib", Version: "1.0.0"},
		Language:      iface.Language{Name: "c", ABI: iface.ABIC, Mode: iface.ModeNative},
	}
}

func withExport(mi *iface.ModuleInterface) *iface.ModuleInterface {
	mi.Exports = []iface.Export{
		{
			Name: "add",
			Signature: iface.Signature{
				Parameters: []iface.Parameter{
					{Name: "a", Type: iface.Primitive(iface.I32), Direction: iface.DirIn},
					{Name: "b", Type: iface.Primitive(iface.I32), Direction: iface.DirIn},
				},
				ReturnType: iface.Primitive(iface.I32),
				Convention: iface.ConvCDecl,
			},
		},
	}
	return mi
}

func TestRenderCProducesIncludeGuardedHeader(t *testing.T) {
	mi := withExport(sampleInterface())
	contents, filename, err := Render(mi, "c", "app")
	require.NoError(t, err)
	require.Equal(t, "math_lib_to_app.h", filename)
	s := string(contents)
	require.Contains(t, s, "#ifndef FORGE_MATH_LIB_H_")
	require.Contains(t, s, "#endif /* FORGE_MATH_LIB_H_ */")
	require.Contains(t, s, "int32_t add(int32_t a, int32_t b);")
}

func TestRenderCppWrapsExternC(t *testing.T) {
	mi := withExport(sampleInterface())
	contents, filename, err := Render(mi, "cpp", "app")
	require.NoError(t, err)
	require.Equal(t, "math_lib_to_app.hpp", filename)
	require.Contains(t, string(contents), `extern "C"`)
}

func TestRenderRustMapsPrimitives(t *testing.T) {
	mi := withExport(sampleInterface())
	contents, filename, err := Render(mi, "rust", "app")
	require.NoError(t, err)
	require.Equal(t, "math_lib_to_app.rs", filename)
	require.Contains(t, string(contents), "i32")
}

func TestRenderCSharpProducesPInvoke(t *testing.T) {
	mi := withExport(sampleInterface())
	contents, filename, err := Render(mi, "csharp", "app")
	require.NoError(t, err)
	require.Equal(t, "math_lib_to_app.cs", filename)
	require.True(t, strings.Contains(string(contents), "DllImport") || strings.Contains(string(contents), "add"))
}

func TestRenderUnsupportedLanguage(t *testing.T) {
	mi := withExport(sampleInterface())
	_, _, err := Render(mi, "cobol", "app")
	require.Error(t, err)
}

func TestGlueFilenameSanitizesModuleName(t *testing.T) {
	mi := withExport(sampleInterface())
	mi.Module.Name = "my lib++"
	_, filename, err := Render(mi, "c", "app")
	require.NoError(t, err)
	require.Equal(t, "my_lib___to_app.h", filename)
}
