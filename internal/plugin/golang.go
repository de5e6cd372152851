package plugin

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/errs"
	"github.com/forgebuild/forge/internal/iface"
	"github.com/forgebuild/forge/internal/process"
	"github.com/forgebuild/forge/internal/target"
)

// Go implements the Go language plugin. Its extract_interface consults the
// C header cgo generates alongside a c-shared/c-archive build — spec
// §4.8 names this explicitly as the most authoritative source for
// cgo-compiled Go, more reliable than guessing from DWARF or nm since cgo
// already computed the exact C-ABI signature forge needs.
type Go struct {
	sup *process.Supervisor
}

func NewGo() *Go { return &Go{sup: process.New()} }

func (g *Go) Capabilities() Capabilities {
	return Capabilities{
		LanguageID:                  "go",
		SupportedExtensions:         []string{".go"},
		SupportsNative:              true,
		SupportsCross:               true,
		SupportsInterfaceExtraction: true,
		SupportsGlue:                true,
	}
}

func (g *Go) ValidateToolchain(ctx context.Context) (bool, string) {
	found, version, ok := g.sup.Probe(ctx, []string{"go"}, 10*time.Second)
	if !ok {
		return false, "go toolchain not found on PATH"
	}
	return true, fmt.Sprintf("%s (%s)", found, version)
}

func (g *Go) Compile(ctx context.Context, in CompileInput) CompileResult {
	start := time.Now()
	toolPath, ok := process.LookPath("go")
	if !ok {
		return CompileResult{Err: &errs.ToolchainError{Module: in.Module.Name, Language: "go", Candidates: []string{"go"}}, Duration: time.Since(start)}
	}

	buildMode := "c-shared"
	outExt := in.Target.Extension(target.KindSharedLib)
	if in.Module.Kind == config.KindExecutable {
		buildMode = "default"
		outExt = in.Target.Extension(target.KindExecutable)
	}
	outPath := filepath.Join(in.BuildDir, in.Module.Name+outExt)

	args := []string{"build"}
	if buildMode != "default" {
		args = append(args, "-buildmode="+buildMode)
	}
	args = append(args, "-o", outPath, "./...")

	env := append(os.Environ(), "CGO_ENABLED=1")
	res, err := g.sup.Run(ctx, toolPath, args, in.Module.ModulePath, env, 10*time.Minute)
	if err != nil || res.ExitCode != 0 {
		return CompileResult{
			Logs:     []string{res.Stdout, res.Stderr},
			Duration: time.Since(start),
			Err: &errs.CompileError{
				Module:  in.Module.Name,
				Command: append([]string{toolPath}, args...),
				Stderr:  firstLines(res.Stderr, 50),
				Err:     err,
			},
		}
	}

	artifacts := []string{outPath}
	if buildMode == "c-shared" {
		headerPath := strings.TrimSuffix(outPath, outExt) + ".h"
		if _, statErr := os.Stat(headerPath); statErr == nil {
			artifacts = append(artifacts, headerPath)
		}
	}

	return CompileResult{Success: true, Artifacts: artifacts, Logs: []string{res.Stdout, res.Stderr}, Duration: time.Since(start)}
}

// cgoExportRe matches a cgo-generated export declaration, e.g.
// "extern int32_t Add(int32_t p0, int32_t p1);".
var cgoExportRe = regexp.MustCompile(`^extern\s+(\S+)\s+(\w+)\((.*)\);\s*$`)

func (g *Go) ExtractInterface(ctx context.Context, artifactPath string) (*iface.ModuleInterface, error) {
	headerPath := strings.TrimSuffix(artifactPath, filepath.Ext(artifactPath)) + ".h"
	f, err := os.Open(headerPath)
	if err != nil {
		// Executables built in default mode have no cgo header; nothing to
		// extract.
		return nil, nil
	}
	defer f.Close()

	mi := &iface.ModuleInterface{
		SchemaVersion: iface.SchemaVersion,
		Module:        iface.ModuleVersion{Name: moduleNameFromArtifact(artifactPath), Version: "0.0.0"},
		Language:      iface.Language{Name: "go", ABI: iface.ABIC, Mode: iface.ModeNative},
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		m := cgoExportRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		mi.Exports = append(mi.Exports, iface.Export{
			Name: m[2],
			Signature: iface.Signature{
				ReturnType: cHeaderTypeToIface(m[1]),
				Parameters: parseCParams(m[3]),
				Convention: iface.ConvCDecl,
			},
		})
	}
	if len(mi.Exports) == 0 {
		return nil, nil
	}
	return mi, nil
}

// cHeaderTypeToIface maps a handful of cgo-generated C type spellings back
// to internal primitives; anything unrecognized becomes an opaque pointer,
// since cgo headers name only the C-ABI surface, not forge's full type
// tree.
func cHeaderTypeToIface(cTypeName string) iface.Type {
	switch strings.TrimSpace(cTypeName) {
	case "void":
		return iface.Primitive(iface.Void)
	case "GoUint8", "unsigned char":
		return iface.Primitive(iface.U8)
	case "GoInt8", "char":
		return iface.Primitive(iface.I8)
	case "GoInt16", "short":
		return iface.Primitive(iface.I16)
	case "GoUint16":
		return iface.Primitive(iface.U16)
	case "GoInt32", "int":
		return iface.Primitive(iface.I32)
	case "GoUint32":
		return iface.Primitive(iface.U32)
	case "GoInt64", "GoInt", "long long":
		return iface.Primitive(iface.I64)
	case "GoUint64", "GoUint":
		return iface.Primitive(iface.U64)
	case "GoFloat32", "float":
		return iface.Primitive(iface.F32)
	case "GoFloat64", "double":
		return iface.Primitive(iface.F64)
	case "_Bool", "GoUint8 /* Bool */":
		return iface.Primitive(iface.Bool)
	default:
		return iface.Pointer(iface.Primitive(iface.Void), true, true)
	}
}

func parseCParams(params string) []iface.Parameter {
	params = strings.TrimSpace(params)
	if params == "" || params == "void" {
		return nil
	}
	var out []iface.Parameter
	for i, part := range strings.Split(params, ",") {
		part = strings.TrimSpace(part)
		idx := strings.LastIndexByte(part, ' ')
		name := fmt.Sprintf("p%d", i)
		typeName := part
		if idx >= 0 {
			candidate := strings.TrimSpace(part[idx+1:])
			if candidate != "" && !strings.HasSuffix(candidate, "*") {
				name = candidate
				typeName = strings.TrimSpace(part[:idx])
			}
		}
		out = append(out, iface.Parameter{
			Name:      name,
			Type:      cHeaderTypeToIface(typeName),
			Direction: iface.DirIn,
		})
	}
	return out
}

func (g *Go) GenerateGlue(mi *iface.ModuleInterface, targetLanguage, consumerModule string) (GlueCodeResult, error) {
	gg := NewGeneric(LanguageDefinition{ID: "go"})
	return gg.GenerateGlue(mi, targetLanguage, consumerModule)
}
