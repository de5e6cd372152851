package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/graph"
	"github.com/forgebuild/forge/internal/iface"
	"github.com/forgebuild/forge/internal/plugin"
	"github.com/forgebuild/forge/internal/schedule"
	"github.com/forgebuild/forge/internal/target"
)

func writeProject(t *testing.T, root string, forgeJSON string, modules map[string]string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, "forge.json"), []byte(forgeJSON), 0644))
	for name, moduleJSON := range modules {
		dir := filepath.Join(root, "modules", name)
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "module.json"), []byte(moduleJSON), 0644))
	}
}

// fakeManagedPlugin stands in for the csharp plugin: Compile writes a bare
// ".dll" straight to BuildDir, with no dotnet invocation, so the managed-only
// link path (internal/linker's allManaged/linkManaged) is reachable without a
// real SDK on the machine running the test.
type fakeManagedPlugin struct{}

func (fakeManagedPlugin) Capabilities() plugin.Capabilities {
	return plugin.Capabilities{LanguageID: "csharp", SupportedExtensions: []string{".cs"}, SupportsNative: true}
}

func (fakeManagedPlugin) ValidateToolchain(ctx context.Context) (bool, string) { return true, "fake" }

func (fakeManagedPlugin) Compile(ctx context.Context, in plugin.CompileInput) plugin.CompileResult {
	if err := os.MkdirAll(in.BuildDir, 0755); err != nil {
		return plugin.CompileResult{Err: err}
	}
	outPath := filepath.Join(in.BuildDir, in.Module.Name+".dll")
	if err := os.WriteFile(outPath, []byte("fake assembly bytes"), 0644); err != nil {
		return plugin.CompileResult{Err: err}
	}
	return plugin.CompileResult{Success: true, Artifacts: []string{outPath}}
}

func (fakeManagedPlugin) ExtractInterface(ctx context.Context, artifactPath string) (*iface.ModuleInterface, error) {
	return nil, nil
}

func (fakeManagedPlugin) GenerateGlue(mi *iface.ModuleInterface, targetLanguage, consumerModule string) (plugin.GlueCodeResult, error) {
	return plugin.GlueCodeResult{}, nil
}

// TestRunLinksManagedOnlyLibrary exercises spec §8 scenario 5: a standalone
// C# library, no native inputs, reaches the linker manager's managed-only
// copy path and produces a placed .dll — not just an executable. Before
// linkableModules replaced executableModules, a library-only project never
// reached o.link.Link at all.
func TestRunLinksManagedOnlyLibrary(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, `{"name": "demo"}`, map[string]string{
		"p": `{"name":"p","language":"csharp","type":"library"}`,
	})

	host := plugin.NewHost()
	host.Register(fakeManagedPlugin{})

	proj, err := config.Load(root, host.IsRegistered)
	require.NoError(t, err)

	o := New(Options{Project: proj, Host: host, Target: target.Native()})
	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Contains(t, summary.ModulesBuilt, "p")

	outPath := filepath.Join(proj.OutputDir, "p.dll")
	contents, err := os.ReadFile(outPath)
	require.NoError(t, err, "managed-only link should have copied p.dll into the output dir")
	require.Equal(t, "fake assembly bytes", string(contents))
}

// buildGraphAndSchedule is the pure in-memory counterpart to phaseAnalysis,
// for tests that drive phaseGlue directly without a full Run.
func buildGraphAndSchedule(t *testing.T, proj *config.ProjectConfig) (*graph.DependencyGraph, *schedule.BuildSchedule) {
	t.Helper()
	g, err := graph.Build(proj.Modules)
	require.NoError(t, err)
	sched, err := schedule.Build(g)
	require.NoError(t, err)
	return g, sched
}

func rustlibInterface() *iface.ModuleInterface {
	return &iface.ModuleInterface{
		SchemaVersion: iface.SchemaVersion,
		Module:        iface.ModuleVersion{Name: "rustlib", Version: "0.1.0"},
		Language:      iface.Language{Name: "rust", ABI: iface.ABIC, Mode: iface.ModeNative},
		Exports: []iface.Export{{
			Name:      "add",
			Signature: iface.Signature{ReturnType: iface.Primitive(iface.I32), Convention: iface.ConvCDecl},
		}},
	}
}

// TestPhaseGlueNamesFilesByConsumerModule exercises spec §8 scenario 4's
// literal worked example: one Rust library consumed by a C executable named
// "cexe" produces "rustlib_to_cexe.h", keyed on the consumer module's name,
// not its language.
func TestPhaseGlueNamesFilesByConsumerModule(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, `{"name": "demo", "modules": ["rustlib", "cexe"]}`, map[string]string{
		"rustlib": `{"name":"rustlib","language":"rust"}`,
		"cexe":    `{"name":"cexe","language":"c","type":"executable","dependencies":["rustlib"]}`,
	})

	host := plugin.NewHost()
	host.Register(plugin.NewGeneric(plugin.LanguageDefinition{ID: "rust"}))
	host.Register(plugin.NewGeneric(plugin.LanguageDefinition{ID: "c"}))

	proj, err := config.Load(root, host.IsRegistered)
	require.NoError(t, err)

	g, sched := buildGraphAndSchedule(t, proj)

	o := New(Options{Project: proj, Host: host, Target: target.Native()})
	summary := &BuildRunSummary{}
	interfaces := map[string]*iface.ModuleInterface{"rustlib": rustlibInterface()}

	o.phaseGlue("test-run", summary, sched, g, map[string]string{}, interfaces)

	want := filepath.Join(proj.OutputDir, "glue", "rustlib_to_cexe.h")
	require.FileExists(t, want)
	require.Empty(t, summary.ModulesFailed)
}

// TestPhaseGlueAvoidsCrossConsumerCollision is the regression the filename
// fix targets: two different consumer modules in the same language that both
// depend on the same producer must each get their own glue file in the
// shared glue directory, not overwrite one another.
func TestPhaseGlueAvoidsCrossConsumerCollision(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, `{"name": "demo", "modules": ["rustlib", "appa", "appb"]}`, map[string]string{
		"rustlib": `{"name":"rustlib","language":"rust"}`,
		"appa":    `{"name":"appa","language":"c","type":"executable","dependencies":["rustlib"]}`,
		"appb":    `{"name":"appb","language":"c","type":"executable","dependencies":["rustlib"]}`,
	})

	host := plugin.NewHost()
	host.Register(plugin.NewGeneric(plugin.LanguageDefinition{ID: "rust"}))
	host.Register(plugin.NewGeneric(plugin.LanguageDefinition{ID: "c"}))

	proj, err := config.Load(root, host.IsRegistered)
	require.NoError(t, err)

	g, sched := buildGraphAndSchedule(t, proj)

	o := New(Options{Project: proj, Host: host, Target: target.Native()})
	summary := &BuildRunSummary{}
	interfaces := map[string]*iface.ModuleInterface{"rustlib": rustlibInterface()}

	o.phaseGlue("test-run", summary, sched, g, map[string]string{}, interfaces)

	glueDir := filepath.Join(proj.OutputDir, "glue")
	require.FileExists(t, filepath.Join(glueDir, "rustlib_to_appa.h"))
	require.FileExists(t, filepath.Join(glueDir, "rustlib_to_appb.h"))
}

// TestPhaseGlueSurfacesWriteErrors checks that a glue write failure is
// reported through both the progress callback and summary.ModulesFailed,
// instead of being silently discarded.
func TestPhaseGlueSurfacesWriteErrors(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, `{"name": "demo", "modules": ["rustlib", "cexe"]}`, map[string]string{
		"rustlib": `{"name":"rustlib","language":"rust"}`,
		"cexe":    `{"name":"cexe","language":"c","type":"executable","dependencies":["rustlib"]}`,
	})

	host := plugin.NewHost()
	host.Register(plugin.NewGeneric(plugin.LanguageDefinition{ID: "rust"}))
	host.Register(plugin.NewGeneric(plugin.LanguageDefinition{ID: "c"}))

	proj, err := config.Load(root, host.IsRegistered)
	require.NoError(t, err)

	// Pre-create a regular file where the glue directory needs to go, so
	// os.MkdirAll inside writeGlueFile fails.
	require.NoError(t, os.MkdirAll(proj.OutputDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(proj.OutputDir, "glue"), []byte("blocking file"), 0644))

	g, sched := buildGraphAndSchedule(t, proj)

	var messages []string
	o := New(Options{
		Project: proj,
		Host:    host,
		Target:  target.Native(),
		Progress: func(phase Phase, message string, current, total int) {
			messages = append(messages, message)
		},
	})
	summary := &BuildRunSummary{}
	interfaces := map[string]*iface.ModuleInterface{"rustlib": rustlibInterface()}

	o.phaseGlue("test-run", summary, sched, g, map[string]string{}, interfaces)

	require.Contains(t, summary.ModulesFailed, "cexe")
	require.NotEmpty(t, messages)
}
