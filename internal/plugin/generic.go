package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/errs"
	"github.com/forgebuild/forge/internal/glue"
	"github.com/forgebuild/forge/internal/iface"
	"github.com/forgebuild/forge/internal/process"
	"github.com/forgebuild/forge/internal/target"
)

// CommandBuilder produces the argv for invoking toolPath to compile a
// module's discovered source files into outputPath.
type CommandBuilder func(in CompileInput, toolPath string, sources []string, outputPath string) []string

// LanguageDefinition declaratively describes a language that fits the
// "invoke compiler with sources and an output path" pattern (spec §4.7's
// "long tail ... implemented by data rather than code"). It backs the
// Generic plugin, which is instantiated once per declared language.
type LanguageDefinition struct {
	ID                  string
	Extensions          []string // e.g. []string{".c", ".h"}
	SourceExtensions    []string // subset actually compiled, e.g. []string{".c"}
	ToolchainCandidates []string // preference order, e.g. []string{"clang", "gcc"}
	BuildCommand        CommandBuilder
	SupportsCross       bool
	SupportedTargets    []string

	// ExtractSymbols, if set, is consulted by ExtractInterface; nil means
	// this language's interface extraction has no authoritative source in
	// this implementation, and ExtractInterface returns (nil, nil) (spec
	// §9's open question, resolved explicitly per language rather than via
	// a silent "deferred" comment).
	ExtractSymbols func(ctx context.Context, artifactPath string) (*iface.ModuleInterface, error)
}

// Generic is the declarative, data-driven plugin for languages that need
// no bespoke Go code (spec §4.7).
type Generic struct {
	def LanguageDefinition
	sup *process.Supervisor
}

// NewGeneric constructs a Generic plugin from a LanguageDefinition.
func NewGeneric(def LanguageDefinition) *Generic {
	return &Generic{def: def, sup: process.New()}
}

func (g *Generic) Capabilities() Capabilities {
	return Capabilities{
		LanguageID:                  g.def.ID,
		SupportedExtensions:         g.def.Extensions,
		SupportsNative:              true,
		SupportsCross:               g.def.SupportsCross,
		SupportsInterfaceExtraction: g.def.ExtractSymbols != nil,
		SupportsGlue:                true,
		SupportedTargets:            g.def.SupportedTargets,
	}
}

func (g *Generic) ValidateToolchain(ctx context.Context) (bool, string) {
	found, version, ok := g.sup.Probe(ctx, g.def.ToolchainCandidates, 10*time.Second)
	if !ok {
		return false, fmt.Sprintf("no toolchain found (tried %v)", g.def.ToolchainCandidates)
	}
	if version != "" {
		return true, fmt.Sprintf("%s (%s)", found, version)
	}
	return true, found
}

// discoverSources walks the module's directory for files matching the
// language's compiled-source extensions.
func discoverSources(moduleDir string, exts []string) ([]string, error) {
	extSet := make(map[string]bool, len(exts))
	for _, e := range exts {
		extSet[strings.ToLower(e)] = true
	}
	var sources []string
	err := filepath.Walk(moduleDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		if extSet[strings.ToLower(filepath.Ext(path))] {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil && os.IsNotExist(err) {
		return nil, nil
	}
	sort.Strings(sources)
	return sources, err
}

func (g *Generic) Compile(ctx context.Context, in CompileInput) CompileResult {
	start := time.Now()
	toolName, _, ok := g.sup.Probe(ctx, g.def.ToolchainCandidates, 10*time.Second)
	if !ok {
		return CompileResult{
			Success: false,
			Err: &errs.ToolchainError{
				Module:     in.Module.Name,
				Language:   g.def.ID,
				Candidates: g.def.ToolchainCandidates,
			},
			Duration: time.Since(start),
		}
	}
	toolPath, _ := process.LookPath(toolName)

	sourceDir := filepath.Join(in.Module.ModulePath, "src")
	sources, err := discoverSources(sourceDir, g.def.SourceExtensions)
	if err != nil {
		return CompileResult{Success: false, Err: &errs.IoError{Path: sourceDir, Err: err}, Duration: time.Since(start)}
	}
	if len(sources) == 0 {
		return CompileResult{
			Success: false,
			Err: fmt.Errorf("module %s: no source files found (searched extensions %v in %s)",
				in.Module.Name, g.def.SourceExtensions, sourceDir),
			Duration: time.Since(start),
		}
	}

	kind := target.KindStaticLib
	if in.Module.Kind == config.KindExecutable {
		kind = target.KindExecutable
	} else {
		kind = target.KindSharedLib
	}
	outName := in.Module.Name + in.Target.Extension(kind)
	outPath := filepath.Join(in.BuildDir, outName)

	args := g.def.BuildCommand(in, toolPath, sources, outPath)

	res, err := g.sup.Run(ctx, toolPath, args, in.BuildDir, nil, 10*time.Minute)
	logs := []string{res.Stdout, res.Stderr}
	if err != nil || res.ExitCode != 0 {
		return CompileResult{
			Success: false,
			Logs:    logs,
			Duration: time.Since(start),
			Err: &errs.CompileError{
				Module:  in.Module.Name,
				Command: append([]string{toolPath}, args...),
				Stderr:  firstLines(res.Stderr, 50),
				Err:     err,
			},
		}
	}

	return CompileResult{
		Success:   true,
		Artifacts: []string{outPath},
		Logs:      logs,
		Duration:  time.Since(start),
	}
}

func (g *Generic) ExtractInterface(ctx context.Context, artifactPath string) (*iface.ModuleInterface, error) {
	if g.def.ExtractSymbols == nil {
		return nil, nil
	}
	return g.def.ExtractSymbols(ctx, artifactPath)
}

func (g *Generic) GenerateGlue(mi *iface.ModuleInterface, targetLanguage, consumerModule string) (GlueCodeResult, error) {
	rendered, filename, err := glue.Render(mi, targetLanguage, consumerModule)
	if err != nil {
		return GlueCodeResult{}, &errs.GlueError{Producer: mi.Module.Name, Consumer: consumerModule, Err: err}
	}
	return GlueCodeResult{Filename: filename, Contents: rendered}, nil
}

func firstLines(s string, n int) string {
	lines := strings.SplitN(s, "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
