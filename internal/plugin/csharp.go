package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forgebuild/forge/internal/errs"
	"github.com/forgebuild/forge/internal/iface"
	"github.com/forgebuild/forge/internal/process"
)

// CSharp implements the C# language plugin, building with `dotnet build`.
//
// Reflection over compiled managed assemblies is a hard boundary for a Go
// program (spec §9's design note). This plugin takes the design note's
// first option: it delegates extraction to an external helper process that
// understands .NET assembly metadata and speaks a small stdin/stdout JSON
// protocol, emitting a ModuleInterface directly — the same "subprocess
// speaks the contract over stdin/stdout JSON" shape spec §9 recommends for
// hot-pluggable external plugins in general, applied here specifically to
// the one operation (interface extraction) that cannot be done in-process.
// If no such helper is installed, extraction degrades to (nil, nil) rather
// than failing the build (spec §7: ExtractionError is non-fatal).
type CSharp struct {
	sup *process.Supervisor
}

func NewCSharp() *CSharp { return &CSharp{sup: process.New()} }

// helperCandidates names the external assembly-metadata helper forge looks
// for on PATH.
var helperCandidates = []string{"forge-dotnet-inspect"}

func (c *CSharp) Capabilities() Capabilities {
	return Capabilities{
		LanguageID:                  "csharp",
		SupportedExtensions:         []string{".cs"},
		SupportsNative:              false,
		SupportsCross:               false,
		SupportsInterfaceExtraction: true,
		SupportsGlue:                true,
	}
}

func (c *CSharp) ValidateToolchain(ctx context.Context) (bool, string) {
	found, version, ok := c.sup.Probe(ctx, []string{"dotnet"}, 10*time.Second)
	if !ok {
		return false, "dotnet SDK not found on PATH"
	}
	return true, fmt.Sprintf("%s (%s)", found, version)
}

func (c *CSharp) Compile(ctx context.Context, in CompileInput) CompileResult {
	start := time.Now()
	toolPath, ok := process.LookPath("dotnet")
	if !ok {
		return CompileResult{Err: &errs.ToolchainError{Module: in.Module.Name, Language: "csharp", Candidates: []string{"dotnet"}}, Duration: time.Since(start)}
	}

	args := []string{"build", "-c", "Release", "-o", in.BuildDir}
	res, err := c.sup.Run(ctx, toolPath, args, in.Module.ModulePath, nil, 10*time.Minute)
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

	dllPath := filepath.Join(in.BuildDir, in.Module.Name+".dll")
	artifacts := []string{dllPath}
	for _, sidecar := range []string{".deps.json", ".runtimeconfig.json"} {
		p := filepath.Join(in.BuildDir, in.Module.Name+sidecar)
		if fileExists(p) {
			artifacts = append(artifacts, p)
		}
	}

	return CompileResult{Success: true, Artifacts: artifacts, Logs: []string{res.Stdout, res.Stderr}, Duration: time.Since(start)}
}

func (c *CSharp) ExtractInterface(ctx context.Context, artifactPath string) (*iface.ModuleInterface, error) {
	helperPath, ok := process.LookPath(helperCandidates[0])
	if !ok {
		return nil, nil // no helper installed: extraction unavailable, non-fatal
	}
	res, err := c.sup.Run(ctx, helperPath, []string{artifactPath}, "", nil, 30*time.Second)
	if err != nil || res.ExitCode != 0 {
		return nil, fmt.Errorf("forge-dotnet-inspect failed: %s", res.Stderr)
	}
	return iface.Parse([]byte(res.Stdout))
}

func (c *CSharp) GenerateGlue(mi *iface.ModuleInterface, targetLanguage, consumerModule string) (GlueCodeResult, error) {
	gg := NewGeneric(LanguageDefinition{ID: "csharp"})
	return gg.GenerateGlue(mi, targetLanguage, consumerModule)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
