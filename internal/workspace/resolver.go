// Package workspace resolves the logical project boundary for a directory
// and derives the stable workspace id that isolates stored checkpoints.
package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/anortham/tusk-sub000/internal/checkpoint"
)

// idLength is the number of hex chars kept from the SHA-256 digest.
// Long enough that a collision (which would silently merge two projects'
// data) is not a practical concern.
const idLength = 16

// manifestFiles mark a project root when no VCS root is found.
var manifestFiles = []string{
	"package.json",
	"go.mod",
	"Cargo.toml",
	"pyproject.toml",
	"setup.py",
	"pom.xml",
	"build.gradle",
	"Gemfile",
	"composer.json",
}

// Resolve walks upward from startDir looking first for a VCS root, then for
// a project manifest, and falls back to startDir itself. It never returns
// an error: any filesystem failure during probing counts as "marker not
// found" and degrades to the next strategy.
func Resolve(startDir string) checkpoint.WorkspaceInfo {
	start := normalize(startDir)

	if root, ok := findUp(start, isGitRoot); ok {
		return infoFor(root, checkpoint.DetectGitRoot)
	}
	if root, ok := findUp(start, hasManifest); ok {
		return infoFor(root, checkpoint.DetectPackageRoot)
	}
	return infoFor(start, checkpoint.DetectCwd)
}

// ID returns the workspace id a path would resolve to, without probing for
// root markers. Used to scope queries against a specific path.
func ID(path string) string {
	return hashPath(normalize(path))
}

func infoFor(root string, method checkpoint.DetectionMethod) checkpoint.WorkspaceInfo {
	return checkpoint.WorkspaceInfo{
		ID:        hashPath(root),
		Path:      root,
		Name:      filepath.Base(root),
		Detection: method,
	}
}

// findUp walks from dir to the filesystem root, returning the first
// ancestor for which probe reports true.
func findUp(dir string, probe func(string) bool) (string, bool) {
	for {
		if probe(dir) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// isGitRoot accepts both a .git directory and a .git file (worktrees and
// submodules use a file pointer).
func isGitRoot(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

func hasManifest(dir string) bool {
	for _, name := range manifestFiles {
		if fi, err := os.Stat(filepath.Join(dir, name)); err == nil && !fi.IsDir() {
			return true
		}
	}
	return false
}

// normalize resolves symlinks and produces a canonical absolute path with
// forward-slash separators. Original casing is preserved here; lowering
// happens only inside hashPath on case-insensitive filesystems.
func normalize(path string) string {
	if path == "" {
		path, _ = os.Getwd()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return filepath.ToSlash(filepath.Clean(abs))
}

// caseInsensitiveFS reports whether the default filesystem ignores case.
// Windows always, macOS by default.
func caseInsensitiveFS() bool {
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}

// hashPath derives the workspace id: SHA-256 of the normalized path,
// truncated. Cryptographic strength matters — workspace isolation depends
// on ids never colliding.
func hashPath(normalized string) string {
	key := normalized
	if caseInsensitiveFS() {
		key = strings.ToLower(key)
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:idLength]
}
