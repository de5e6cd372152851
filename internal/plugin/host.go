package plugin

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Host is a frozen-after-startup language-plugin registry. Default builds
// the bundled registry lazily, once per process; NewHost builds independent
// registries (e.g. for tests). Lookup by language id and lookup by
// extension are both single map lookups.
type Host struct {
	byID  map[string]Plugin
	byExt map[string]Plugin

	toolchainCache *lru.Cache[string, toolchainResult]
}

type toolchainResult struct {
	available bool
	message   string
}

// NewHost constructs an empty host. Callers register plugins with
// Register, then treat the host as read-only (spec §5's "plugin registry
// is written once at startup and read-only thereafter").
func NewHost() *Host {
	cache, _ := lru.New[string, toolchainResult](64)
	return &Host{
		byID:           make(map[string]Plugin),
		byExt:          make(map[string]Plugin),
		toolchainCache: cache,
	}
}

// Register adds p to the host, keyed case-insensitively by its language id
// and every supported extension.
func (h *Host) Register(p Plugin) {
	caps := p.Capabilities()
	h.byID[strings.ToLower(caps.LanguageID)] = p
	for _, ext := range caps.SupportedExtensions {
		h.byExt[strings.ToLower(ext)] = p
	}
}

// ByLanguage looks up a plugin by its registered language id.
func (h *Host) ByLanguage(id string) (Plugin, bool) {
	p, ok := h.byID[strings.ToLower(id)]
	return p, ok
}

// ByExtension looks up a plugin by file extension (including the leading
// dot, e.g. ".c").
func (h *Host) ByExtension(ext string) (Plugin, bool) {
	p, ok := h.byExt[strings.ToLower(ext)]
	return p, ok
}

// ByFile looks up a plugin for a source file by its extension.
func (h *Host) ByFile(path string) (Plugin, bool) {
	return h.ByExtension(filepath.Ext(path))
}

// IsRegistered reports whether id names a registered plugin; suitable as a
// config.LanguageValidator.
func (h *Host) IsRegistered(id string) bool {
	_, ok := h.byID[strings.ToLower(id)]
	return ok
}

// ValidateToolchain validates the plugin for id, memoizing the result in a
// bounded LRU so that modules sharing a language don't each re-spawn
// version-probe subprocesses (spec §4.7's validate_toolchain is typically
// called once per module, but the underlying toolchain is shared).
func (h *Host) ValidateToolchain(ctx context.Context, id string) (available bool, message string) {
	key := strings.ToLower(id)
	if cached, ok := h.toolchainCache.Get(key); ok {
		return cached.available, cached.message
	}
	p, ok := h.ByLanguage(id)
	if !ok {
		return false, "no plugin registered for language " + id
	}
	available, message = p.ValidateToolchain(ctx)
	h.toolchainCache.Add(key, toolchainResult{available, message})
	return available, message
}

var (
	defaultHost     *Host
	defaultHostOnce sync.Once
)

// Default returns the built-in registry, populated with every bundled
// language plugin, constructed once per process.
func Default() *Host {
	defaultHostOnce.Do(func() {
		defaultHost = NewHost()
		RegisterBuiltins(defaultHost)
	})
	return defaultHost
}
