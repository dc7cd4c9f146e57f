package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anortham/tusk-sub000/internal/checkpoint"
)

func TestResolve_GitRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0755))
	sub := filepath.Join(root, "pkg", "deep")
	require.NoError(t, os.MkdirAll(sub, 0755))

	info := Resolve(sub)
	assert.Equal(t, checkpoint.DetectGitRoot, info.Detection)
	assert.Equal(t, filepath.Base(root), info.Name)
}

func TestResolve_PackageRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module x\n"), 0644))
	sub := filepath.Join(root, "internal")
	require.NoError(t, os.MkdirAll(sub, 0755))

	info := Resolve(sub)
	assert.Equal(t, checkpoint.DetectPackageRoot, info.Detection)
}

func TestResolve_CwdFallback(t *testing.T) {
	// A bare temp dir has no markers anywhere up to / in practice, but an
	// ancestor may coincidentally carry one; only the no-marker case is
	// asserted strictly.
	dir := t.TempDir()
	info := Resolve(dir)
	assert.NotEmpty(t, info.ID)
	assert.NotEmpty(t, info.Path)
}

func TestResolve_DeterministicAcrossStartingPoints(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0755))
	a := filepath.Join(root, "cmd")
	b := filepath.Join(root, "internal", "deep", "nested")
	require.NoError(t, os.MkdirAll(a, 0755))
	require.NoError(t, os.MkdirAll(b, 0755))

	infoA := Resolve(a)
	infoB := Resolve(b)
	assert.Equal(t, infoA.ID, infoB.ID, "same project must always derive the same workspace id")
	assert.Equal(t, infoA.Path, infoB.Path)
}

func TestResolve_IDShape(t *testing.T) {
	info := Resolve(t.TempDir())
	assert.Len(t, info.ID, idLength)
	assert.Regexp(t, "^[0-9a-f]+$", info.ID)
}

func TestResolve_SymlinksCollapse(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0755))

	link := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink(root, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	direct := Resolve(root)
	viaLink := Resolve(link)
	assert.Equal(t, direct.ID, viaLink.ID)
}

func TestID_MatchesResolveForSamePath(t *testing.T) {
	dir := t.TempDir()
	info := Resolve(dir)
	// ID() skips marker probing, so it matches Resolve only when the
	// directory itself is the workspace root.
	if info.Path == normalize(dir) {
		assert.Equal(t, info.ID, ID(dir))
	}
}
