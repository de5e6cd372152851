// Package config implements forge's config loader (spec §4.3, C3): parsing
// and validating forge.json/module.json into an immutable tree.
//
// Grounded on distr1-distri's pb.ReadBuildFile/ReadMetaFile (which read a
// per-package descriptor from disk and unmarshal it), generalized from the
// teacher's single textproto schema to a project-of-modules JSON schema per
// spec §6, and from the teacher's internal/batch.Ctx.Build (which walks
// pkgs/<name>/build.textproto for every package directory) for the
// auto-discovery fallback when a project doesn't list its modules
// explicitly.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/forgebuild/forge/internal/errs"
)

// OutputConfig controls where and what the final artifact is named.
type OutputConfig struct {
	Dir          string `json:"dir"`
	ArtifactName string `json:"artifact_name"`
}

// TargetConfig names the default build target.
type TargetConfig struct {
	Default string `json:"default"`
}

// rawProject mirrors forge.json's on-disk shape.
type rawProject struct {
	Name    string       `json:"name"`
	Version string       `json:"version"`
	Output  OutputConfig `json:"output"`
	Target  TargetConfig `json:"target"`
	Modules []string     `json:"modules"`
	MaxJobs int          `json:"max_jobs"`
}

// rawModule mirrors module.json's on-disk shape.
type rawModule struct {
	Name         string   `json:"name"`
	Language     string   `json:"language"`
	Type         string   `json:"type"`
	Dependencies []string `json:"dependencies"`
	BuildTools   []string `json:"build_tools"`
}

// ModuleKind distinguishes linkable library modules from terminal
// executables.
type ModuleKind string

const (
	KindLibrary    ModuleKind = "library"
	KindExecutable ModuleKind = "executable"
)

// ModuleConfig is the validated, immutable description of one module.
type ModuleConfig struct {
	Name             string
	Language         string
	Kind             ModuleKind
	Dependencies     []string
	BuildTools       []string
	ModulePath       string          // absolute
	LanguageSpecific json.RawMessage // the whole module.json, raw; the per-language sub-object is not split out
	ConfigBytes      []byte          // raw bytes of module.json, for cache config_hash
}

// ProjectConfig is the validated, immutable root of a forge project.
type ProjectConfig struct {
	Root           string // absolute project root, for locating .forge/
	Name           string
	Version        string
	OutputDir      string // absolute
	OutputArtifact string
	DefaultTarget  string
	MaxJobs        int
	Modules        []ModuleConfig
	moduleIndex    map[string]int
}

// Module looks up a module by name.
func (p *ProjectConfig) Module(name string) (ModuleConfig, bool) {
	idx, ok := p.moduleIndex[name]
	if !ok {
		return ModuleConfig{}, false
	}
	return p.Modules[idx], true
}

// LanguageValidator reports whether lang is registered; Load calls this through
// the LanguageValidator supplied by the caller (the plugin host), keeping
// config decoupled from the plugin registry.
type LanguageValidator func(lang string) bool

// Load reads forge.json from root and every module.json it names (or
// auto-discovers under modules/<sub>/module.json when forge.json lists no
// modules), validating as it goes (spec §4.3 a–e; dependency-name
// validation (f) is left to the caller's dependency analyzer, spec §4.4).
func Load(root string, validLang LanguageValidator) (*ProjectConfig, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, &errs.ConfigError{Path: root, Reason: "project root directory missing"}
	}

	forgePath := filepath.Join(root, "forge.json")
	raw, err := os.ReadFile(forgePath)
	if err != nil {
		return nil, &errs.ConfigError{Path: forgePath, Reason: "forge.json missing"}
	}
	var rp rawProject
	if err := json.Unmarshal(stripComments(raw), &rp); err != nil {
		return nil, &errs.ConfigError{Path: forgePath, Reason: "forge.json malformed: " + err.Error()}
	}
	if strings.TrimSpace(rp.Name) == "" {
		return nil, &errs.ConfigError{Path: forgePath, Reason: "project name must not be empty"}
	}

	outDir := rp.Output.Dir
	if outDir == "" {
		outDir = "build"
	}
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(root, outDir)
	}

	defaultTarget := rp.Target.Default
	if defaultTarget == "" {
		defaultTarget = "native"
	}

	var moduleDirs []string
	if len(rp.Modules) > 0 {
		for _, name := range rp.Modules {
			moduleDirs = append(moduleDirs, filepath.Join(root, "modules", name))
		}
	} else {
		moduleDirs, err = discoverModuleDirs(filepath.Join(root, "modules"))
		if err != nil {
			return nil, err
		}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, &errs.IoError{Path: root, Err: err}
	}

	pc := &ProjectConfig{
		Root:           absRoot,
		Name:           rp.Name,
		Version:        rp.Version,
		OutputDir:      outDir,
		OutputArtifact: rp.Output.ArtifactName,
		DefaultTarget:  defaultTarget,
		MaxJobs:        rp.MaxJobs,
		moduleIndex:    make(map[string]int),
	}

	for _, dir := range moduleDirs {
		mc, err := loadModule(dir, validLang)
		if err != nil {
			return nil, err
		}
		if _, exists := pc.moduleIndex[mc.Name]; exists {
			return nil, &errs.ConfigError{Path: dir, Reason: "duplicate module name " + mc.Name}
		}
		pc.moduleIndex[mc.Name] = len(pc.Modules)
		pc.Modules = append(pc.Modules, mc)
	}

	// Deterministic order regardless of discovery order.
	sort.Slice(pc.Modules, func(i, j int) bool { return pc.Modules[i].Name < pc.Modules[j].Name })
	pc.moduleIndex = make(map[string]int, len(pc.Modules))
	for i, m := range pc.Modules {
		pc.moduleIndex[m.Name] = i
	}

	return pc, nil
}

func discoverModuleDirs(modulesRoot string) ([]string, error) {
	entries, err := os.ReadDir(modulesRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &errs.IoError{Path: modulesRoot, Err: err}
	}
	var dirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(modulesRoot, e.Name())
		if _, err := os.Stat(filepath.Join(dir, "module.json")); err == nil {
			dirs = append(dirs, dir)
		}
	}
	return dirs, nil
}

func loadModule(dir string, validLang LanguageValidator) (ModuleConfig, error) {
	path := filepath.Join(dir, "module.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return ModuleConfig{}, &errs.ConfigError{Path: path, Reason: "module.json missing"}
	}
	var rm rawModule
	cleaned := stripComments(raw)
	if err := json.Unmarshal(cleaned, &rm); err != nil {
		return ModuleConfig{}, &errs.ConfigError{Path: path, Reason: "module.json malformed: " + err.Error()}
	}

	if strings.TrimSpace(rm.Name) == "" {
		return ModuleConfig{}, &errs.ConfigError{Path: path, Reason: "module name must not be empty"}
	}
	if strings.TrimSpace(rm.Language) == "" {
		return ModuleConfig{}, &errs.ConfigError{Path: path, Reason: "module language must not be empty"}
	}
	if validLang != nil && !validLang(rm.Language) {
		return ModuleConfig{}, &errs.ConfigError{Path: path, Reason: "unknown language " + rm.Language}
	}

	kind := KindLibrary
	if rm.Type == string(KindExecutable) {
		kind = KindExecutable
	}

	absPath, err := filepath.Abs(dir)
	if err != nil {
		return ModuleConfig{}, &errs.IoError{Path: dir, Err: err}
	}

	return ModuleConfig{
		Name:             rm.Name,
		Language:         rm.Language,
		Kind:             kind,
		Dependencies:     rm.Dependencies,
		BuildTools:       rm.BuildTools,
		ModulePath:       absPath,
		LanguageSpecific: raw,
		ConfigBytes:      raw,
	}, nil
}
