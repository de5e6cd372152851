// Package linker implements forge's linker manager (spec §4.11, C11):
// platform-first linker selection, input collection by extension, and the
// managed-only special case where no native linker runs at all.
//
// Grounded on distr1-distri's cmd/distri/build.go, which shells out to `ld`
// via a toolchain wrapper and copies finished package files into place with
// renameio for atomicity; this package generalizes the "invoke an external
// linker, then place the result" pattern across several linker families and
// adds the managed-assembly copy path the teacher never needed.
package linker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio"

	"github.com/forgebuild/forge/internal/errs"
	"github.com/forgebuild/forge/internal/process"
	"github.com/forgebuild/forge/internal/target"
)

// InputKind classifies one collected link input by the language plugin that
// produced it.
type InputKind string

const (
	Object         InputKind = "object"
	StaticLib      InputKind = "static_lib"
	SharedLib      InputKind = "shared_lib"
	RustLib        InputKind = "rust_lib"
	DotNetAssembly InputKind = "dotnet_assembly"
)

// Input is one file contributed by a module's build output directory.
type Input struct {
	Path   string
	Kind   InputKind
	Module string
}

// extensionKinds maps a collected file's extension to its InputKind. C and
// assembly share object/archive extensions (spec §4.11); Rust additionally
// contributes .rlib, and shared objects/dylibs are ambiguous between C and
// Rust so both are tagged SharedLib uniformly — the linker treats them
// identically regardless of producer.
var extensionKinds = map[string]InputKind{
	".o":    Object,
	".obj":  Object,
	".a":    StaticLib,
	".lib":  StaticLib,
	".rlib": RustLib,
	".so":   SharedLib,
	".dylib": SharedLib,
	".dll":  DotNetAssembly,
}

// CollectInputs scans each of moduleDirs (one per dependency module's build
// output directory, keyed by module name) for language-appropriate link
// inputs.
func CollectInputs(moduleDirs map[string]string) ([]Input, error) {
	var inputs []Input
	names := make([]string, 0, len(moduleDirs))
	for name := range moduleDirs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		dir := moduleDirs[name]
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, &errs.IoError{Path: dir, Err: err}
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			kind, ok := extensionKinds[strings.ToLower(filepath.Ext(e.Name()))]
			if !ok {
				continue
			}
			inputs = append(inputs, Input{
				Path:   filepath.Join(dir, e.Name()),
				Kind:   kind,
				Module: name,
			})
		}
	}
	return inputs, nil
}

// Result is the outcome of one Link invocation.
type Result struct {
	OutputPath string
	ManagedOnly bool
	Logs        []string
	Duration    time.Duration
}

// candidate names one linker binary preference, most-preferred first for a
// given OS (spec §4.11).
var linkerCandidates = map[string][]string{
	"windows": {"link", "lld-link"},
	"darwin":  {"clang", "ld64.lld"},
	"":        {"ld.lld", "ld", "gcc", "cc"},
}

func candidatesForOS(goos string) []string {
	if c, ok := linkerCandidates[goos]; ok {
		return c
	}
	return linkerCandidates[""]
}

// Manager selects and invokes the platform linker.
type Manager struct {
	sup *process.Supervisor
}

func New() *Manager { return &Manager{sup: process.New()} }

// SelectLinker probes, in platform preference order, for an available
// linker binary.
func (m *Manager) SelectLinker(ctx context.Context, t target.Target) (string, error) {
	candidates := candidatesForOS(t.OS)
	found, _, ok := m.sup.Probe(ctx, candidates, 10*time.Second)
	if !ok {
		return "", &errs.LinkError{Reason: fmt.Sprintf("no linker found (tried %v for os=%s)", candidates, t.OS)}
	}
	path, _ := process.LookPath(found)
	return path, nil
}

// Link produces outputName inside outDir from inputs, for target t, as
// artifactKind (executable or shared library). If every input is a
// DotNetAssembly, no native linker is invoked; instead the managed runtime's
// equivalent of linking runs: copy the main assembly, its siblings, and any
// adjacent .deps.json/.runtimeconfig.json sidecar files into outDir under
// the final name (spec §4.11's special case).
func (m *Manager) Link(ctx context.Context, inputs []Input, rootModule, outDir, outputName string, t target.Target, artifactKind target.Kind) (Result, error) {
	start := time.Now()
	if len(inputs) == 0 {
		return Result{}, &errs.LinkError{Reason: "no link inputs collected"}
	}

	if allManaged(inputs) {
		out, err := linkManaged(inputs, rootModule, outDir, outputName)
		return Result{OutputPath: out, ManagedOnly: true, Duration: time.Since(start)}, err
	}

	linkerPath, err := m.SelectLinker(ctx, t)
	if err != nil {
		return Result{}, err
	}

	outPath := filepath.Join(outDir, outputName+t.Extension(artifactKind))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return Result{}, &errs.IoError{Path: outDir, Err: err}
	}

	args := buildArgs(linkerPath, inputs, outPath, t, artifactKind)
	res, err := m.sup.Run(ctx, linkerPath, args, outDir, nil, 10*time.Minute)
	if err != nil || res.ExitCode != 0 {
		return Result{Logs: []string{res.Stdout, res.Stderr}, Duration: time.Since(start)},
			&errs.LinkError{Reason: fmt.Sprintf("command %v failed", append([]string{linkerPath}, args...)), Err: err}
	}
	return Result{OutputPath: outPath, Logs: []string{res.Stdout, res.Stderr}, Duration: time.Since(start)}, nil
}

func allManaged(inputs []Input) bool {
	for _, in := range inputs {
		if in.Kind != DotNetAssembly {
			return false
		}
	}
	return true
}

// buildArgs assembles the linker invocation. The flag dialect differs by
// linker family: MSVC's link.exe takes bare paths with /OUT:, everything
// else here follows the Unix cc/ld convention of -o.
func buildArgs(linkerPath string, inputs []Input, outPath string, t target.Target, kind target.Kind) []string {
	base := strings.ToLower(filepath.Base(linkerPath))
	var args []string
	for _, in := range inputs {
		args = append(args, in.Path)
	}
	if strings.HasPrefix(base, "link") && t.OS == "windows" && !strings.Contains(base, "lld-link") {
		args = append(args, "/OUT:"+outPath)
		return args
	}
	if kind == target.KindSharedLib && t.OS != "darwin" {
		args = append([]string{"-shared"}, args...)
	}
	for _, lib := range t.LinkLibraries() {
		args = append(args, "-l"+lib)
	}
	args = append(args, "-o", outPath)
	return args
}

// linkManaged implements the DotNetAssembly-only special case: copy the
// "main" assembly, every sibling assembly, and adjacent sidecar files,
// renaming the main assembly and its sidecars to outputName; siblings keep
// their own file names.
//
// The main assembly is the input whose base name matches rootModule (see
// pickMainAssembly). When that rule does not yield exactly one candidate,
// nothing is guessed: the ambiguity (or the absence of a match) is returned
// as a LinkError.
func linkManaged(inputs []Input, rootModule, outDir, outputName string) (string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", &errs.IoError{Path: outDir, Err: err}
	}
	main, err := pickMainAssembly(inputs, rootModule)
	if err != nil {
		return "", err
	}
	outPath := filepath.Join(outDir, outputName+".dll")
	if err := copyFile(main.Path, outPath); err != nil {
		return "", &errs.LinkError{Reason: "copying main assembly " + main.Path, Err: err}
	}
	for _, sidecar := range []string{".deps.json", ".runtimeconfig.json"} {
		src := strings.TrimSuffix(main.Path, filepath.Ext(main.Path)) + sidecar
		if _, err := os.Stat(src); err == nil {
			dst := filepath.Join(outDir, outputName+sidecar)
			if err := copyFile(src, dst); err != nil {
				return "", &errs.LinkError{Reason: "copying sidecar " + src, Err: err}
			}
		}
	}
	for _, in := range inputs {
		if in.Path == main.Path {
			continue
		}
		dst := filepath.Join(outDir, filepath.Base(in.Path))
		if err := copyFile(in.Path, dst); err != nil {
			return "", &errs.LinkError{Reason: "copying sibling assembly " + in.Path, Err: err}
		}
	}
	return outPath, nil
}

// pickMainAssembly resolves the managed-only special case's "main"
// assembly: the input whose base filename (sans extension) equals
// rootModule. Zero or more-than-one match is reported as a LinkError
// rather than guessed.
func pickMainAssembly(inputs []Input, rootModule string) (Input, error) {
	var matches []Input
	for _, in := range inputs {
		base := filepath.Base(in.Path)
		if strings.TrimSuffix(base, filepath.Ext(base)) == rootModule {
			matches = append(matches, in)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		var names []string
		for _, in := range inputs {
			names = append(names, filepath.Base(in.Path))
		}
		return Input{}, &errs.LinkError{Reason: fmt.Sprintf("no assembly named %q.dll among inputs %v", rootModule, names)}
	default:
		var names []string
		for _, in := range matches {
			names = append(names, in.Path)
		}
		return Input{}, &errs.LinkError{Reason: fmt.Sprintf("ambiguous main assembly for %q: multiple candidates %v", rootModule, names)}
	}
}

func copyFile(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	return renameio.WriteFile(dst, b, 0644)
}

// HostLinkerHint reports the platform-preferred linker family name for
// diagnostics (e.g. dry-run plans), without probing PATH.
func HostLinkerHint() string {
	switch runtime.GOOS {
	case "windows":
		return "link.exe (MSVC), falling back to LLD"
	case "darwin":
		return "clang (Apple), falling back to LLD"
	default:
		return "LLD, falling back to GNU ld"
	}
}
