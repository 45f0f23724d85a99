// Package integration exercises Packforge end to end against real git
// repositories, a real shell build, and a subprocess resolution engine.
package integration

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// TestRepo is a temporary git repository holding a package checkout.
type TestRepo struct {
	t   testing.TB
	Dir string
}

// NewTestRepo creates an initialized git repository in a temporary
// directory. The directory is removed when the test completes.
func NewTestRepo(t testing.TB) *TestRepo {
	t.Helper()

	repo := &TestRepo{t: t, Dir: t.TempDir()}
	repo.Git("init", "--initial-branch=main")
	repo.Git("config", "user.email", "test@example.com")
	repo.Git("config", "user.name", "Test User")
	repo.Git("config", "commit.gpgsign", "false")
	return repo
}

// Git runs a git command in the repository and fails the test on error.
func (r *TestRepo) Git(args ...string) string {
	r.t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		r.t.Fatalf("git %v failed: %v\nOutput: %s", args, err, string(output))
	}
	return string(output)
}

// WriteFile writes a file into the repository, creating parent
// directories as needed.
func (r *TestRepo) WriteFile(path, content string) {
	r.t.Helper()

	fullPath := filepath.Join(r.Dir, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		r.t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		r.t.Fatalf("failed to write %s: %v", path, err)
	}
}

// Commit stages everything and commits, returning the commit hash.
func (r *TestRepo) Commit(message string) string {
	r.t.Helper()

	r.Git("add", "-A")
	r.Git("commit", "-m", message, "--allow-empty")
	return r.HeadHash()
}

// Tag creates an annotated tag at HEAD.
func (r *TestRepo) Tag(name string) {
	r.t.Helper()
	r.Git("tag", "-a", name, "-m", name)
}

// TagMessage returns the annotation message of a tag.
func (r *TestRepo) TagMessage(name string) string {
	r.t.Helper()
	return trimNewline(r.Git("tag", "-l", "--format=%(contents:subject)", name))
}

// HasTag reports whether the tag exists in the repository.
func (r *TestRepo) HasTag(name string) bool {
	r.t.Helper()
	return trimNewline(r.Git("tag", "-l", name)) == name
}

// HeadHash returns the current HEAD commit hash.
func (r *TestRepo) HeadHash() string {
	r.t.Helper()
	return trimNewline(r.Git("rev-parse", "HEAD"))
}

// Path returns the full path of a file in the repository.
func (r *TestRepo) Path(relPath string) string {
	return filepath.Join(r.Dir, relPath)
}

// WriteManifest writes a package manifest with the given build command
// and one platform-linux variant.
func (r *TestRepo) WriteManifest(name, version, buildCommand string) {
	r.t.Helper()

	manifest := fmt.Sprintf(`name = %q
version = %q
uuid = "f47ac10b-58cc-4372-a567-0e02b2c3d479"
description = "integration fixture"
requires = ["python-3.11"]
variants = [["platform-linux"]]

[build]
command = %q
`, name, version, buildCommand)
	r.WriteFile("package.toml", manifest)
}

// WriteSolver writes an executable resolution engine stub that answers
// every request with a solved context, and returns its path.
func WriteSolver(t testing.TB) string {
	t.Helper()

	script := `#!/bin/sh
cat >/dev/null
cat <<'EOF'
{"status":"solved","resolved":[{"name":"python","version":"3.11.4","root":"/opt/python"}],"environ":{"RESOLVED_MARKER":"from-engine"}}
EOF
`
	path := filepath.Join(t.TempDir(), "solver")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write solver stub: %v", err)
	}
	return path
}

// RequireGit skips the test when git is not installed.
func RequireGit(t testing.TB) {
	t.Helper()

	cmd := exec.Command("git", "--version")
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Skipf("git not available: %v", err)
	}
	t.Logf("Git version: %s", trimNewline(string(output)))
}

func trimNewline(s string) string {
	return strings.TrimRight(s, "\r\n")
}
