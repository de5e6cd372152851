// Package plugin implements forge's plugin host and language-plugin
// abstraction (spec §4.7/§4.8, C7/C8): register language plugins, look
// them up by language id or file extension, validate their toolchains, and
// dispatch compile/extract/glue operations to them.
//
// Grounded on distr1-distri's per-builder strategy functions
// (internal/build/buildc.go, buildcmake.go, buildmeson.go, buildproto.go,
// buildpython.go), each of which takes a *pb.Build/*pb.XBuilder and
// returns the shell steps for that build system. Spec §9's design note
// calls for replacing that kind of interface-with-many-implementations
// dispatch with "an enum/tagged union with one variant per built-in plugin
// and a 'dynamic' variant holding a function-pointer table for externally
// loaded plugins" — realized here as the Plugin interface plus the
// declarative/data-driven Generic plugin for the long tail (spec §4.7).
package plugin

import (
	"context"
	"time"

	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/iface"
	"github.com/forgebuild/forge/internal/target"
)

// Capabilities describes what a plugin can do.
type Capabilities struct {
	LanguageID                  string
	SupportedExtensions         []string
	SupportsNative              bool
	SupportsCross               bool
	SupportsInterfaceExtraction bool
	SupportsGlue                bool
	SupportedTargets            []string // empty = all
}

// CompileResult is the outcome of compiling one module (spec §3).
type CompileResult struct {
	Success  bool
	Artifacts []string
	Logs      []string
	Duration  time.Duration
	Err       error
}

// GlueCodeResult is the rendered output of generating FFI glue for one
// (producer, target language) pair.
type GlueCodeResult struct {
	Filename string
	Contents []byte
}

// CompileInput bundles everything a plugin needs to compile one module.
type CompileInput struct {
	Module    config.ModuleConfig
	BuildDir  string // <project>/build/<module>
	Target    target.Target
	Jobs      int
}

// Plugin is forge's per-language strategy: compile a module to an
// artifact, extract its FFI interface, and generate glue code for other
// languages to call into it (spec §4.7/§4.8).
type Plugin interface {
	Capabilities() Capabilities

	// ValidateToolchain discovers the first working backend in a
	// preference-ordered list (spec §4.7).
	ValidateToolchain(ctx context.Context) (available bool, message string)

	Compile(ctx context.Context, in CompileInput) CompileResult

	// ExtractInterface consults the most authoritative source available
	// for this language; returns (nil, nil) if the artifact or the
	// language itself has no meaningful interface to extract (spec §4.8,
	// §9's open question on languages with no interface).
	ExtractInterface(ctx context.Context, artifactPath string) (*iface.ModuleInterface, error)

	// GenerateGlue renders FFI binding source for targetLanguage, to be
	// consumed by consumerModule; returns an error for unsupported targets.
	GenerateGlue(mi *iface.ModuleInterface, targetLanguage, consumerModule string) (GlueCodeResult, error)
}
