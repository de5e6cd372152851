// Package target implements forge's canonical representation of
// OS/architecture/ABI triples (spec §3, §4.2), and the extension/prefix
// rules used to name build artifacts.
//
// Grounded on the teacher's archs.go (distr1-distri), which keeps a
// process-wide table of known architecture identifiers and suffix-matching
// helpers; generalized here from "one Linux distro's arch list" to the
// multi-OS triple model the spec requires.
package target

import (
	"fmt"
	"strings"
)

// Target is a canonical OS/architecture/ABI identifier.
type Target struct {
	Arch   string // e.g. "x86_64", "aarch64", "wasm32"
	Vendor string // e.g. "pc", "apple", "unknown"
	OS     string // e.g. "linux", "darwin", "windows", "wasi"
	ABI    string // e.g. "gnu", "msvc", "musl", "" (none)
}

// Kind names the artifact kind produced by a link/compile step.
type Kind int

const (
	KindExecutable Kind = iota
	KindSharedLib
	KindStaticLib
	KindObject
)

// aliases maps short human-friendly aliases to full targets.
var aliases = map[string]Target{
	"linux-x64":     {Arch: "x86_64", Vendor: "unknown", OS: "linux", ABI: "gnu"},
	"linux-arm64":   {Arch: "aarch64", Vendor: "unknown", OS: "linux", ABI: "gnu"},
	"macos-x64":     {Arch: "x86_64", Vendor: "apple", OS: "darwin"},
	"macos-arm64":   {Arch: "aarch64", Vendor: "apple", OS: "darwin"},
	"windows-x64":   {Arch: "x86_64", Vendor: "pc", OS: "windows", ABI: "msvc"},
	"windows-arm64": {Arch: "aarch64", Vendor: "pc", OS: "windows", ABI: "msvc"},
	"wasm32-wasi":   {Arch: "wasm32", Vendor: "unknown", OS: "wasi"},
	"wasm32-unknown": {Arch: "wasm32", Vendor: "unknown", OS: "unknown"},
}

// defaultVendor and defaultABI fill gaps left by a bare triple.
func defaultVendor(os string) string {
	switch os {
	case "darwin", "ios":
		return "apple"
	case "windows":
		return "pc"
	default:
		return "unknown"
	}
}

func defaultABI(os string) string {
	switch os {
	case "linux":
		return "gnu"
	case "windows":
		return "msvc"
	default:
		return ""
	}
}

// Parse accepts either a short alias ("linux-x64") or a full triple
// ("x86_64-apple-darwin", optionally with a trailing "-<abi>").
func Parse(s string) (Target, error) {
	if s == "" || s == "native" {
		return Native(), nil
	}
	if t, ok := aliases[s]; ok {
		return normalize(t), nil
	}
	parts := strings.Split(s, "-")
	if len(parts) < 2 {
		return Target{}, fmt.Errorf("target: cannot parse triple %q", s)
	}
	t := Target{Arch: parts[0]}
	switch len(parts) {
	case 2:
		t.OS = parts[1]
	case 3:
		t.Vendor = parts[1]
		t.OS = parts[2]
	case 4:
		t.Vendor = parts[1]
		t.OS = parts[2]
		t.ABI = parts[3]
	default:
		return Target{}, fmt.Errorf("target: cannot parse triple %q", s)
	}
	return normalize(t), nil
}

func normalize(t Target) Target {
	if t.Vendor == "" {
		t.Vendor = defaultVendor(t.OS)
	}
	if t.ABI == "" {
		t.ABI = defaultABI(t.OS)
	}
	return t
}

// Triple renders the canonical "<arch>-<vendor>-<os>[-<abi>]" string.
// Identical inputs always produce identical triples.
func (t Target) Triple() string {
	s := fmt.Sprintf("%s-%s-%s", t.Arch, t.Vendor, t.OS)
	if t.ABI != "" {
		s += "-" + t.ABI
	}
	return s
}

func (t Target) String() string { return t.Triple() }

// Canonicalize parses and re-renders s, for round-trip verification.
func Canonicalize(s string) (string, error) {
	t, err := Parse(s)
	if err != nil {
		return "", err
	}
	return t.Triple(), nil
}

// Extension returns the filename extension (including leading dot, if any)
// for an artifact of the given kind on this target.
func (t Target) Extension(kind Kind) string {
	switch kind {
	case KindSharedLib:
		switch t.OS {
		case "windows":
			return ".dll"
		case "darwin", "ios":
			return ".dylib"
		case "wasi", "unknown":
			if t.Arch == "wasm32" || t.Arch == "wasm64" {
				return ".wasm"
			}
			return ".so"
		default:
			return ".so"
		}
	case KindStaticLib:
		if t.OS == "windows" {
			return ".lib"
		}
		return ".a"
	case KindExecutable:
		switch t.OS {
		case "windows":
			return ".exe"
		case "wasi", "unknown":
			if t.Arch == "wasm32" || t.Arch == "wasm64" {
				return ".wasm"
			}
			return ""
		default:
			return ""
		}
	case KindObject:
		if t.OS == "windows" {
			return ".obj"
		}
		return ".o"
	default:
		return ""
	}
}

// Defines returns the platform-specific preprocessor defines conventionally
// passed to a C/C++ compiler for this target.
func (t Target) Defines() []string {
	var d []string
	switch t.OS {
	case "windows":
		d = append(d, "_WIN32", "WIN32")
	case "darwin":
		d = append(d, "__APPLE__")
	case "linux":
		d = append(d, "__linux__")
	case "wasi":
		d = append(d, "__wasi__")
	}
	switch t.Arch {
	case "x86_64":
		d = append(d, "__x86_64__")
	case "aarch64":
		d = append(d, "__aarch64__")
	case "wasm32":
		d = append(d, "__wasm32__")
	}
	return d
}

// LinkLibraries returns the platform-specific system libraries conventionally
// required at link time for this target (e.g. libc on POSIX systems).
func (t Target) LinkLibraries() []string {
	switch t.OS {
	case "windows":
		return []string{"kernel32", "msvcrt"}
	case "darwin":
		return []string{"System"}
	case "linux":
		return []string{"c", "m", "pthread"}
	default:
		return nil
	}
}

// nativeOverride holds the Target describing the host running forge. It is
// resolved by the caller (cmd/forge) from runtime.GOOS/runtime.GOARCH and
// registered with SetNative; this package never consults "runtime" itself,
// so it stays host-agnostic and testable.
var nativeOverride *Target

// SetNative lets the CLI front-end register the actual host target once, at
// startup.
func SetNative(t Target) { nativeOverride = &t }

// Native returns the registered host target, or a generic linux/x86_64
// default if none was registered (e.g. in unit tests).
func Native() Target {
	if nativeOverride != nil {
		return *nativeOverride
	}
	return normalize(Target{Arch: "x86_64", OS: "linux"})
}
