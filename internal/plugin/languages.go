package plugin

import (
	"context"
	"path/filepath"

	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/iface"
	"github.com/forgebuild/forge/internal/target"
)

// RegisterBuiltins registers every bundled language plugin into host,
// covering the roster named in SPEC_FULL.md: c, cpp, rust, go, python,
// csharp, asm, wasm. The c, cpp, rust, python and asm plugins are instances
// of the declarative Generic plugin (spec §4.7). A language outside this
// roster has no plugin and is rejected as unknown.
func RegisterBuiltins(host *Host) {
	host.Register(NewGeneric(cDefinition()))
	host.Register(NewGeneric(cppDefinition()))
	host.Register(NewGeneric(rustDefinition()))
	host.Register(NewGo())
	host.Register(NewGeneric(pythonDefinition()))
	host.Register(NewCSharp())
	host.Register(NewGeneric(asmDefinition()))
	host.Register(NewWasm())
}

func isSharedOrStatic(in CompileInput) target.Kind {
	if in.Module.Kind == config.KindExecutable {
		return target.KindExecutable
	}
	return target.KindSharedLib
}

// cDefinition builds the declarative definition for C: clang preferred
// over gcc (spec §4.7's example preference), following the teacher's
// configureTarget/buildc.go approach of passing an explicit target triple
// and prefix-relative flags, simplified to a direct compiler invocation
// since forge has no autotools configure step of its own.
func cDefinition() LanguageDefinition {
	return LanguageDefinition{
		ID:                  "c",
		Extensions:          []string{".c", ".h"},
		SourceExtensions:    []string{".c"},
		ToolchainCandidates: []string{"clang", "gcc", "cc"},
		SupportsCross:       true,
		BuildCommand: func(in CompileInput, toolPath string, sources []string, outPath string) []string {
			args := append([]string{}, sources...)
			for _, d := range in.Target.Defines() {
				args = append(args, "-D"+d)
			}
			if isSharedOrStatic(in) == target.KindSharedLib {
				args = append(args, "-shared", "-fPIC")
			}
			args = append(args, "-o", outPath)
			return args
		},
		ExtractSymbols: func(ctx context.Context, artifactPath string) (*iface.ModuleInterface, error) {
			names, err := exportedTextSymbols(ctx, artifactPath)
			if err != nil || len(names) == 0 {
				return nil, err
			}
			mi := symbolsToInterface(moduleNameFromArtifact(artifactPath), "c", names)
			return mi, nil
		},
	}
}

func cppDefinition() LanguageDefinition {
	d := cDefinition()
	d.ID = "cpp"
	d.Extensions = []string{".cc", ".cpp", ".cxx", ".hpp", ".hh"}
	d.SourceExtensions = []string{".cc", ".cpp", ".cxx"}
	d.ToolchainCandidates = []string{"clang++", "g++", "c++"}
	d.ExtractSymbols = func(ctx context.Context, artifactPath string) (*iface.ModuleInterface, error) {
		names, err := exportedTextSymbols(ctx, artifactPath)
		if err != nil || len(names) == 0 {
			return nil, err
		}
		mi := symbolsToInterface(moduleNameFromArtifact(artifactPath), "cpp", names)
		return mi, nil
	}
	return d
}

// rustDefinition builds rustc invocations: a cdylib (C-ABI shared library)
// for libraries, a binary crate for executables.
func rustDefinition() LanguageDefinition {
	return LanguageDefinition{
		ID:                  "rust",
		Extensions:          []string{".rs"},
		SourceExtensions:    []string{".rs"},
		ToolchainCandidates: []string{"rustc"},
		SupportsCross:       true,
		BuildCommand: func(in CompileInput, toolPath string, sources []string, outPath string) []string {
			args := []string{mainRustFile(sources)}
			if in.Module.Kind == config.KindLibrary {
				args = append(args, "--crate-type", "cdylib")
			}
			args = append(args, "-o", outPath)
			return args
		},
		ExtractSymbols: func(ctx context.Context, artifactPath string) (*iface.ModuleInterface, error) {
			names, err := exportedTextSymbols(ctx, artifactPath)
			if err != nil || len(names) == 0 {
				return nil, err
			}
			mi := symbolsToInterface(moduleNameFromArtifact(artifactPath), "rust", names)
			return mi, nil
		},
	}
}

func mainRustFile(sources []string) string {
	for _, s := range sources {
		if filepath.Base(s) == "lib.rs" || filepath.Base(s) == "main.rs" {
			return s
		}
	}
	if len(sources) > 0 {
		return sources[0]
	}
	return ""
}

// asmDefinition prefers nasm over yasm over gas (spec §4.7's example
// preference order for Assembly).
func asmDefinition() LanguageDefinition {
	return LanguageDefinition{
		ID:                  "asm",
		Extensions:          []string{".asm", ".s", ".S"},
		SourceExtensions:    []string{".asm", ".s", ".S"},
		ToolchainCandidates: []string{"nasm", "yasm", "as"},
		SupportsCross:       true,
		BuildCommand: func(in CompileInput, toolPath string, sources []string, outPath string) []string {
			args := append([]string{}, sources...)
			args = append(args, "-o", outPath)
			return args
		},
		ExtractSymbols: func(ctx context.Context, artifactPath string) (*iface.ModuleInterface, error) {
			names, err := exportedTextSymbols(ctx, artifactPath)
			if err != nil || len(names) == 0 {
				return nil, err
			}
			return symbolsToInterface(moduleNameFromArtifact(artifactPath), "asm", names), nil
		},
	}
}

// pythonDefinition prefers Cython over mypyc (spec §4.7's example
// preference for Python, both of which compile Python to a native
// extension module). Per spec §9's open question, plain Python has no
// authoritative interface-extraction source in this implementation:
// ExtractSymbols is left nil, and ExtractInterface explicitly returns
// (nil, nil) rather than a placeholder.
func pythonDefinition() LanguageDefinition {
	return LanguageDefinition{
		ID:                  "python",
		Extensions:          []string{".py", ".pyx"},
		SourceExtensions:    []string{".py", ".pyx"},
		ToolchainCandidates: []string{"cython", "mypyc"},
		SupportsCross:       false,
		BuildCommand: func(in CompileInput, toolPath string, sources []string, outPath string) []string {
			args := append([]string{}, sources...)
			args = append(args, "-o", outPath)
			return args
		},
	}
}

func moduleNameFromArtifact(artifactPath string) string {
	base := filepath.Base(artifactPath)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
