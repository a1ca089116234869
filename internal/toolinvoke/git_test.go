package toolinvoke

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}
	run("init", "-q")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))
	run("add", "a.txt")
	run("commit", "-q", "-m", "initial commit")
	return dir
}

func TestResolveRepoPathFallsBackToCwdWhenMissing(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	resolved := ResolveRepoPath(map[string]any{"repo_path": "/definitely/not/a/real/path"})
	assert.Equal(t, cwd, resolved)
}

func TestResolveRepoPathFallsBackWhenNotAGitRepo(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	dir := t.TempDir()
	resolved := ResolveRepoPath(map[string]any{"repo_path": dir})
	assert.Equal(t, cwd, resolved)
}

func TestResolveRepoPathUsesValidRepo(t *testing.T) {
	dir := initTestRepo(t)
	resolved := ResolveRepoPath(map[string]any{"repo_path": dir})
	assert.Equal(t, dir, resolved)
}

func TestGitStatusOnCleanRepo(t *testing.T) {
	dir := initTestRepo(t)
	status := NewGitStatus()

	result, err := status.Invoke(context.Background(), map[string]any{"repo_path": dir})
	require.NoError(t, err)
	shaped := result.(map[string]any)
	assert.Equal(t, dir, shaped["repo_path"])
}

func TestGitLogReturnsCommit(t *testing.T) {
	dir := initTestRepo(t)
	gitLog := NewGitLog()

	result, err := gitLog.Invoke(context.Background(), map[string]any{"repo_path": dir, "limit": 5})
	require.NoError(t, err)
	shaped := result.(map[string]any)
	assert.Contains(t, shaped["log"], "initial commit")
}

func TestGitShowDefaultsToHEAD(t *testing.T) {
	dir := initTestRepo(t)
	show := NewGitShow()

	result, err := show.Invoke(context.Background(), map[string]any{"repo_path": dir})
	require.NoError(t, err)
	shaped := result.(map[string]any)
	assert.Equal(t, "HEAD", shaped["commit"])
	assert.Contains(t, shaped["patch"], "initial commit")
}
