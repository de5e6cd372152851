// Package cache implements forge's incremental cache (spec §4.6, C6):
// content-hash fingerprinting of sources, config, and transitive
// dependencies, an artifact-existence check, and transitive invalidation.
//
// Grounded on distr1-distri's build.Ctx.Digest (internal/build/build.go),
// which hashes the package's proto text plus its resolved build/runtime
// dependency list with fnv128a to decide whether a rebuild is needed, and
// on pb.ReadMetaFile/meta.textproto (the on-disk record of a package's
// last InputDigest). This package generalizes that single combined digest
// into the three separate SHA-256 hashes spec §3/§4.6 require
// (source/config/dependencies) so that transitive invalidation can be
// driven by the dependencies_hash independently of source changes, and
// swaps fnv128a + protobuf text for SHA-256 + JSON per spec §6.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/forgebuild/forge/internal/errs"
	"github.com/google/renameio"
)

// CacheEntry is the persisted fingerprint for one (module, profile) build.
type CacheEntry struct {
	SourceHash       string    `json:"source_hash"`
	ConfigHash       string    `json:"config_hash"`
	DependenciesHash string    `json:"dependencies_hash"`
	ArtifactPaths    []string  `json:"artifact_paths"`
	CompiledAt       time.Time `json:"compiled_at"`
	Profile          string    `json:"profile"`
}

// file is the on-disk shape of .forge-cache.json.
type file struct {
	SchemaVersion string                `json:"schema_version"`
	GeneratedAt   time.Time             `json:"generated_at"`
	Entries       map[string]CacheEntry `json:"entries"`
}

const SchemaVersion = "1.0"

// Cache is the loaded, mutable incremental-build cache for one project.
// Top-level keys this binary doesn't recognize are kept in extra and
// re-emitted verbatim on Save, so a cache file written by a newer forge
// binary isn't silently truncated when read by an older one.
type Cache struct {
	path    string
	entries map[string]CacheEntry
	extra   map[string]json.RawMessage
}

func key(module, profile string) string { return module + "@" + profile }

// Load reads the cache file at <project>/.forge/.forge-cache.json. A
// missing file is not an error: it yields an empty cache.
func Load(projectRoot string) (*Cache, error) {
	path := filepath.Join(projectRoot, ".forge", ".forge-cache.json")
	c := &Cache{path: path, entries: make(map[string]CacheEntry)}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, &errs.IoError{Path: path, Err: err}
	}

	var f file
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, &errs.IoError{Path: path, Err: err}
	}
	if f.Entries != nil {
		c.entries = f.Entries
	}

	var whole map[string]json.RawMessage
	if err := json.Unmarshal(raw, &whole); err == nil {
		delete(whole, "schema_version")
		delete(whole, "generated_at")
		delete(whole, "entries")
		if len(whole) > 0 {
			c.extra = whole
		}
	}
	return c, nil
}

// Get returns the stored entry for (module, profile), if any.
func (c *Cache) Get(module, profile string) (CacheEntry, bool) {
	e, ok := c.entries[key(module, profile)]
	return e, ok
}

// Put records (or replaces) the entry for (module, profile).
func (c *Cache) Put(module, profile string, entry CacheEntry) {
	entry.Profile = profile
	c.entries[key(module, profile)] = entry
}

// Save persists the cache atomically via renameio, so a crash mid-write
// never leaves a torn cache file. Save is called both on successful
// completion and on abort, so partial progress survives a failed run
// (spec §3, §4.6).
func (c *Cache) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return &errs.IoError{Path: filepath.Dir(c.path), Err: err}
	}
	f := file{
		SchemaVersion: SchemaVersion,
		GeneratedAt:   time.Now().UTC(),
		Entries:       c.entries,
	}
	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	if len(c.extra) > 0 {
		raw, err = mergeExtra(raw, c.extra)
		if err != nil {
			return err
		}
	}
	if err := renameio.WriteFile(c.path, raw, 0644); err != nil {
		return &errs.IoError{Path: c.path, Err: err}
	}
	return nil
}

// mergeExtra re-decodes a marshaled cache file to a raw map, adds back any
// top-level keys this binary didn't understand, and re-encodes.
func mergeExtra(marshaled []byte, extra map[string]json.RawMessage) ([]byte, error) {
	var whole map[string]json.RawMessage
	if err := json.Unmarshal(marshaled, &whole); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, exists := whole[k]; !exists {
			whole[k] = v
		}
	}
	return json.MarshalIndent(whole, "", "  ")
}

// SHA256Hex hashes data and returns its hex digest.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// emptyHash is the SHA-256 of the empty byte string, returned for modules
// with no matching source files (spec §4.6: "Empty directories yield the
// empty hash").
var emptyHash = SHA256Hex(nil)

// SourceHash hashes the concatenation of (file_bytes ∥ file_path_utf8) for
// every file under sourceDir whose extension is in extensions, in a
// deterministic (sorted-path) order.
func SourceHash(sourceDir string, extensions map[string]bool) (string, error) {
	var paths []string
	err := filepath.Walk(sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		if extensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return emptyHash, nil
		}
		return "", &errs.IoError{Path: sourceDir, Err: err}
	}
	if len(paths) == 0 {
		return emptyHash, nil
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return "", &errs.IoError{Path: p, Err: err}
		}
		h.Write(b)
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ConfigHash hashes the raw bytes of a module's module.json.
func ConfigHash(configBytes []byte) string {
	return SHA256Hex(configBytes)
}

// DependenciesHash hashes the sorted, "|"-joined dependency name list, or
// the literal "empty" for none.
func DependenciesHash(deps []string) string {
	if len(deps) == 0 {
		return SHA256Hex([]byte("empty"))
	}
	sorted := append([]string{}, deps...)
	sort.Strings(sorted)
	return SHA256Hex([]byte(strings.Join(sorted, "|")))
}

// Reason names why a module must rebuild, or "" if it is cached.
type Reason string

const (
	ReasonNoEntry        Reason = "no cache entry"
	ReasonSourceChanged  Reason = "source changed"
	ReasonConfigChanged  Reason = "config changed"
	ReasonDepsChanged    Reason = "dependencies changed"
)

// ArtifactMissing formats the "artifact missing: <file>" reason.
func ArtifactMissing(file string) Reason {
	return Reason("artifact missing: " + file)
}

// Check decides whether module is cached given its freshly computed
// fingerprints and whether any of its transitive dependencies were rebuilt
// in the current run (the rebuilt set drives spec §4.6's transitive
// invalidation rule). It returns ("", true) when cached, or the first
// applicable reason and false otherwise.
func (c *Cache) Check(module, profile, sourceHash, configHash, depsHash string, rebuilt map[string]bool, transitiveDeps map[string]bool) (Reason, bool) {
	entry, ok := c.Get(module, profile)
	if !ok {
		return ReasonNoEntry, false
	}
	if entry.SourceHash != sourceHash {
		return ReasonSourceChanged, false
	}
	if entry.ConfigHash != configHash {
		return ReasonConfigChanged, false
	}
	if entry.DependenciesHash != depsHash {
		return ReasonDepsChanged, false
	}
	for _, p := range entry.ArtifactPaths {
		if _, err := os.Stat(p); err != nil {
			return ArtifactMissing(p), false
		}
	}
	for dep := range transitiveDeps {
		if dep == module {
			continue
		}
		if rebuilt[dep] {
			return ReasonDepsChanged, false
		}
	}
	return "", true
}
