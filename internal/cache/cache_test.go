package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceHashEmptyDirYieldsEmptyHash(t *testing.T) {
	dir := t.TempDir()
	h, err := SourceHash(dir, map[string]bool{".c": true})
	require.NoError(t, err)
	require.Equal(t, emptyHash, h)
}

func TestSourceHashMissingDirYieldsEmptyHash(t *testing.T) {
	h, err := SourceHash(filepath.Join(t.TempDir(), "nope"), map[string]bool{".c": true})
	require.NoError(t, err)
	require.Equal(t, emptyHash, h)
}

func TestSourceHashDeterministicAndSensitiveToContent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.c"), []byte("int a;"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.c"), []byte("int b;"), 0644))

	exts := map[string]bool{".c": true}
	h1, err := SourceHash(dir, exts)
	require.NoError(t, err)
	h2, err := SourceHash(dir, exts)
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.c"), []byte("int a2;"), 0644))
	h3, err := SourceHash(dir, exts)
	require.NoError(t, err)
	require.NotEqual(t, h1, h3)
}

func TestSourceHashIgnoresUnrelatedExtensions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("docs"), 0644))
	h, err := SourceHash(dir, map[string]bool{".c": true})
	require.NoError(t, err)
	require.Equal(t, emptyHash, h)
}

func TestDependenciesHashOrderIndependent(t *testing.T) {
	require.Equal(t, DependenciesHash([]string{"a", "b"}), DependenciesHash([]string{"b", "a"}))
	require.Equal(t, SHA256Hex([]byte("empty")), DependenciesHash(nil))
}

func TestLoadMissingFileIsEmptyCache(t *testing.T) {
	c, err := Load(t.TempDir())
	require.NoError(t, err)
	_, ok := c.Get("app", "debug")
	require.False(t, ok)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	c, err := Load(root)
	require.NoError(t, err)

	entry := CacheEntry{SourceHash: "s", ConfigHash: "c", DependenciesHash: "d", ArtifactPaths: []string{"out.a"}}
	c.Put("lib", "debug", entry)
	require.NoError(t, c.Save())

	reloaded, err := Load(root)
	require.NoError(t, err)
	got, ok := reloaded.Get("lib", "debug")
	require.True(t, ok)
	require.Equal(t, "s", got.SourceHash)
	require.Equal(t, "debug", got.Profile)
}

func TestSavePreservesUnknownTopLevelKeys(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, ".forge", ".forge-cache.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(`{"schema_version":"1.0","entries":{},"future_field":{"x":1}}`), 0644))

	c, err := Load(root)
	require.NoError(t, err)
	c.Put("app", "debug", CacheEntry{SourceHash: "s"})
	require.NoError(t, c.Save())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "future_field")
}

func TestCheckCacheHit(t *testing.T) {
	c, err := Load(t.TempDir())
	require.NoError(t, err)

	artifact := filepath.Join(t.TempDir(), "out.a")
	require.NoError(t, os.WriteFile(artifact, []byte("x"), 0644))

	c.Put("lib", "debug", CacheEntry{
		SourceHash: "src1", ConfigHash: "cfg1", DependenciesHash: "dep1",
		ArtifactPaths: []string{artifact},
	})

	reason, cached := c.Check("lib", "debug", "src1", "cfg1", "dep1", nil, map[string]bool{"lib": true})
	require.True(t, cached)
	require.Equal(t, Reason(""), reason)
}

func TestCheckNoEntry(t *testing.T) {
	c, err := Load(t.TempDir())
	require.NoError(t, err)
	reason, cached := c.Check("lib", "debug", "s", "c", "d", nil, nil)
	require.False(t, cached)
	require.Equal(t, ReasonNoEntry, reason)
}

func TestCheckSourceChanged(t *testing.T) {
	c, err := Load(t.TempDir())
	require.NoError(t, err)
	c.Put("lib", "debug", CacheEntry{SourceHash: "old", ConfigHash: "c", DependenciesHash: "d"})
	reason, cached := c.Check("lib", "debug", "new", "c", "d", nil, nil)
	require.False(t, cached)
	require.Equal(t, ReasonSourceChanged, reason)
}

func TestCheckArtifactMissing(t *testing.T) {
	c, err := Load(t.TempDir())
	require.NoError(t, err)
	missing := filepath.Join(t.TempDir(), "gone.a")
	c.Put("lib", "debug", CacheEntry{
		SourceHash: "s", ConfigHash: "c", DependenciesHash: "d",
		ArtifactPaths: []string{missing},
	})
	reason, cached := c.Check("lib", "debug", "s", "c", "d", nil, map[string]bool{"lib": true})
	require.False(t, cached)
	require.Equal(t, ArtifactMissing(missing), reason)
}

// TestCheckTransitiveInvalidation exercises spec §8's transitive
// invalidation scenario: a cached module whose own fingerprints are
// unchanged must still rebuild if a transitive dependency rebuilt this run.
func TestCheckTransitiveInvalidation(t *testing.T) {
	c, err := Load(t.TempDir())
	require.NoError(t, err)

	artifact := filepath.Join(t.TempDir(), "out.a")
	require.NoError(t, os.WriteFile(artifact, []byte("x"), 0644))
	c.Put("app", "debug", CacheEntry{
		SourceHash: "s", ConfigHash: "c", DependenciesHash: "d",
		ArtifactPaths: []string{artifact},
	})

	rebuilt := map[string]bool{"base": true}
	transitive := map[string]bool{"app": true, "base": true}

	reason, cached := c.Check("app", "debug", "s", "c", "d", rebuilt, transitive)
	require.False(t, cached)
	require.Equal(t, ReasonDepsChanged, reason)
}
