package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/errs"
	"github.com/forgebuild/forge/internal/iface"
	"github.com/forgebuild/forge/internal/process"
	"github.com/forgebuild/forge/internal/target"
	"github.com/wasmerio/wasmer-go/wasmer"
)

// Wasm implements the WebAssembly language plugin. Its compile step
// shells out to clang (or wasi-sdk's clang, discovered via the
// WASI_SDK_PATH environment override named in spec §6) the same way the C
// plugin does; its extract_interface is special in that the most
// authoritative source is the compiled module itself — the wasm binary
// format's own export section — so this plugin inspects it directly via
// the wasmer-go runtime instead of shelling out to nm/objdump, which spec
// §4.8 explicitly allows ("consults the most authoritative source
// available").
type Wasm struct {
	sup *process.Supervisor
}

func NewWasm() *Wasm { return &Wasm{sup: process.New()} }

func (w *Wasm) Capabilities() Capabilities {
	return Capabilities{
		LanguageID:                  "wasm",
		SupportedExtensions:         []string{".wasm", ".wat"},
		SupportsNative:              false,
		SupportsCross:               true,
		SupportsInterfaceExtraction: true,
		SupportsGlue:                true,
		SupportedTargets:            []string{"wasm32-wasi", "wasm32-unknown"},
	}
}

func (w *Wasm) toolchain() []string {
	if sdk := os.Getenv("WASI_SDK_PATH"); sdk != "" {
		return []string{filepath.Join(sdk, "bin", "clang")}
	}
	return []string{"clang", "wasm-ld"}
}

func (w *Wasm) ValidateToolchain(ctx context.Context) (bool, string) {
	found, version, ok := w.sup.Probe(ctx, w.toolchain(), 10*time.Second)
	if !ok {
		return false, fmt.Sprintf("no WebAssembly toolchain found (tried %v; set WASI_SDK_PATH to override)", w.toolchain())
	}
	return true, fmt.Sprintf("%s (%s)", found, version)
}

func (w *Wasm) Compile(ctx context.Context, in CompileInput) CompileResult {
	start := time.Now()
	candidates := w.toolchain()
	toolName, _, ok := w.sup.Probe(ctx, candidates, 10*time.Second)
	if !ok {
		return CompileResult{Err: &errs.ToolchainError{Module: in.Module.Name, Language: "wasm", Candidates: candidates}, Duration: time.Since(start)}
	}
	toolPath, _ := process.LookPath(toolName)
	if filepath.IsAbs(toolName) {
		toolPath = toolName
	}

	sourceDir := filepath.Join(in.Module.ModulePath, "src")
	sources, err := discoverSources(sourceDir, []string{".c", ".cc", ".cpp"})
	if err != nil {
		return CompileResult{Err: &errs.IoError{Path: sourceDir, Err: err}, Duration: time.Since(start)}
	}
	if len(sources) == 0 {
		return CompileResult{
			Err: fmt.Errorf("module %s: no source files found (searched extensions [.c .cc .cpp] in %s)",
				in.Module.Name, sourceDir),
			Duration: time.Since(start),
		}
	}

	kind := target.KindSharedLib
	if in.Module.Kind == config.KindExecutable {
		kind = target.KindExecutable
	}
	outPath := filepath.Join(in.BuildDir, in.Module.Name+in.Target.Extension(kind))

	args := append([]string{"--target=wasm32-wasi"}, sources...)
	args = append(args, "-o", outPath)

	res, err := w.sup.Run(ctx, toolPath, args, in.BuildDir, nil, 10*time.Minute)
	if err != nil || res.ExitCode != 0 {
		return CompileResult{
			Logs:     []string{res.Stdout, res.Stderr},
			Duration: time.Since(start),
			Err: &errs.CompileError{
				Module: in.Module.Name, Command: append([]string{toolPath}, args...),
				Stderr: firstLines(res.Stderr, 50), Err: err,
			},
		}
	}
	return CompileResult{Success: true, Artifacts: []string{outPath}, Logs: []string{res.Stdout, res.Stderr}, Duration: time.Since(start)}
}

func (w *Wasm) ExtractInterface(ctx context.Context, artifactPath string) (*iface.ModuleInterface, error) {
	bytes, err := os.ReadFile(artifactPath)
	if err != nil {
		return nil, &errs.IoError{Path: artifactPath, Err: err}
	}

	engine := wasmer.NewEngine()
	store := wasmer.NewStore(engine)
	module, err := wasmer.NewModule(store, bytes)
	if err != nil {
		return nil, fmt.Errorf("wasm: parse module: %w", err)
	}

	mi := &iface.ModuleInterface{
		SchemaVersion: iface.SchemaVersion,
		Module:        iface.ModuleVersion{Name: moduleNameFromArtifact(artifactPath), Version: "0.0.0"},
		Language:      iface.Language{Name: "wasm", ABI: iface.ABIC, Mode: iface.ModeNative},
	}

	for _, exp := range module.Exports() {
		fnType := exp.Type().IntoFunctionType()
		if fnType == nil {
			continue // not a function export (e.g. memory/table/global)
		}
		mi.Exports = append(mi.Exports, iface.Export{
			Name: exp.Name(),
			Signature: iface.Signature{
				Parameters: wasmValueTypesToParams(fnType.Params()),
				ReturnType: wasmReturnType(fnType.Results()),
				Convention: iface.ConvCDecl,
			},
		})
	}
	if len(mi.Exports) == 0 {
		return nil, nil
	}
	return mi, nil
}

func wasmValueTypesToParams(vts []*wasmer.ValueType) []iface.Parameter {
	var params []iface.Parameter
	for i, vt := range vts {
		params = append(params, iface.Parameter{
			Name:      fmt.Sprintf("p%d", i),
			Type:      wasmKindToIface(vt.Kind()),
			Direction: iface.DirIn,
		})
	}
	return params
}

func wasmReturnType(vts []*wasmer.ValueType) iface.Type {
	if len(vts) == 0 {
		return iface.Primitive(iface.Void)
	}
	return wasmKindToIface(vts[0].Kind())
}

func wasmKindToIface(k wasmer.ValueKind) iface.Type {
	switch k {
	case wasmer.I32:
		return iface.Primitive(iface.I32)
	case wasmer.I64:
		return iface.Primitive(iface.I64)
	case wasmer.F32:
		return iface.Primitive(iface.F32)
	case wasmer.F64:
		return iface.Primitive(iface.F64)
	default:
		return iface.Pointer(iface.Primitive(iface.Void), true, true)
	}
}

func (w *Wasm) GenerateGlue(mi *iface.ModuleInterface, targetLanguage, consumerModule string) (GlueCodeResult, error) {
	gg := NewGeneric(LanguageDefinition{ID: "wasm"})
	return gg.GenerateGlue(mi, targetLanguage, consumerModule)
}
