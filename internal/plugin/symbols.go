package plugin

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/forgebuild/forge/internal/iface"
	"github.com/forgebuild/forge/internal/process"
)

// nmSymbolRe matches one line of `nm -D --defined-only` output:
// "0000000000001139 T add"
var nmSymbolRe = regexp.MustCompile(`^[0-9a-fA-F]+\s+([A-Za-z])\s+(\S+)$`)

// exportedTextSymbols runs nm against a native artifact and
// returns the names of its defined, exported (global) text/data symbols.
// This is spec §4.8's "symbol table via nm/objdump (for native)" source of
// truth for extract_interface.
func exportedTextSymbols(ctx context.Context, artifactPath string) ([]string, error) {
	sup := process.New()
	nmPath, ok := process.LookPath("nm")
	if !ok {
		return nil, nil // no nm on this host: treat as no exports discoverable
	}
	res, err := sup.Run(ctx, nmPath, []string{"-D", "--defined-only", artifactPath}, "", nil, 30*time.Second)
	if err != nil && res.ExitCode != 0 {
		// Static archives/executables may not export a dynamic symbol
		// table; retry without -D.
		res, err = sup.Run(ctx, nmPath, []string{"--defined-only", artifactPath}, "", nil, 30*time.Second)
		if err != nil && res.ExitCode != 0 {
			return nil, err
		}
	}
	var names []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		m := nmSymbolRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		kind := m[1]
		// Uppercase nm type letters denote global/external symbols; only T
		// (text, i.e. functions) and D/B (data) are exported ABI surface.
		if kind != "T" && kind != "D" && kind != "B" {
			continue
		}
		name := strings.TrimPrefix(m[2], "_") // strip common C mangling underscore prefix
		names = append(names, name)
	}
	return names, nil
}

// symbolsToInterface builds a minimal ModuleInterface whose exports have
// unknown (variadic-free, untyped) signatures — nm reports names, not
// signatures, so every parameter list is empty and the return type is
// void. This matches what the native symbol-table source can actually
// establish; anything stronger would require parsing DWARF debug info,
// which this implementation does not attempt.
func symbolsToInterface(moduleName, language string, names []string) *iface.ModuleInterface {
	mi := &iface.ModuleInterface{
		SchemaVersion: iface.SchemaVersion,
		Module:        iface.ModuleVersion{Name: moduleName, Version: "0.0.0"},
		Language:      iface.Language{Name: language, ABI: iface.ABIC, Mode: iface.ModeNative},
	}
	for _, n := range names {
		mi.Exports = append(mi.Exports, iface.Export{
			Name: n,
			Signature: iface.Signature{
				ReturnType: iface.Primitive(iface.Void),
				Convention: iface.ConvCDecl,
			},
		})
	}
	return mi
}

// lddRe matches one line of ldd output naming a resolved shared library.
var lddRe = regexp.MustCompile(`^\s*([^\s]+)\s*=>\s*([^\s]+)`)

// SharedLibDeps runs ldd against a native artifact and returns the paths of
// its resolved shared-library dependencies, for the post-link diagnostic
// report (grounded on distr1-distri's findShlibDeps,
// internal/build/shlibdeps.go). Invoked through process.Supervisor, like
// every other external tool call in this package, so it shares the same
// process-group timeout/cancellation handling rather than calling
// os/exec directly.
func SharedLibDeps(ctx context.Context, artifactPath string) ([]string, error) {
	path, ok := process.LookPath("ldd")
	if !ok {
		return nil, nil
	}
	res, err := process.New().Run(ctx, path, []string{artifactPath}, "", nil, 10*time.Second)
	if err != nil || res.ExitCode != 0 {
		return nil, nil // not a dynamic executable, or ldd refused: not fatal
	}
	var deps []string
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		m := lddRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		deps = append(deps, m[2])
	}
	return deps, nil
}
