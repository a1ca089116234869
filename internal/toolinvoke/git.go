package toolinvoke

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// ResolveRepoPath implements the "path fallback" rule from spec §4.3: for
// any tool taking a repo_path argument, if the supplied path is missing,
// not a directory, or not a valid repository, silently substitute the
// process working directory.
func ResolveRepoPath(args map[string]any) string {
	path, _ := stringArg(args, "repo_path")
	if path == "" {
		if cwd, err := os.Getwd(); err == nil {
			return cwd
		}
		return "."
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		if cwd, err := os.Getwd(); err == nil {
			return cwd
		}
		return "."
	}
	if _, err := os.Stat(path + "/.git"); err != nil {
		if cwd, err := os.Getwd(); err == nil {
			return cwd
		}
		return "."
	}
	return path
}

func runGit(ctx context.Context, repoPath string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoPath
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %v: %w: %s", args, err, string(out))
	}
	return string(out), nil
}

// NewGitStatus builds the git_status invoker.
func NewGitStatus() Invoker {
	return InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		repoPath := ResolveRepoPath(args)
		out, err := runGit(ctx, repoPath, "status", "--short", "--branch")
		if err != nil {
			return nil, err
		}
		return map[string]any{"repo_path": repoPath, "status": out}, nil
	})
}

// NewGitLog builds the git_log invoker.
func NewGitLog() Invoker {
	return InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		repoPath := ResolveRepoPath(args)
		limit := intArg(args, "limit", 10)
		out, err := runGit(ctx, repoPath, "log", "-n", strconv.Itoa(limit), "--oneline")
		if err != nil {
			return nil, err
		}
		return map[string]any{"repo_path": repoPath, "log": out}, nil
	})
}

// NewGitDiff builds the git_diff invoker.
func NewGitDiff() Invoker {
	return InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		repoPath := ResolveRepoPath(args)
		out, err := runGit(ctx, repoPath, "diff")
		if err != nil {
			return nil, err
		}
		return map[string]any{"repo_path": repoPath, "diff": out}, nil
	})
}

// NewGitShow builds the git_show invoker.
func NewGitShow() Invoker {
	return InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		repoPath := ResolveRepoPath(args)
		commit, _ := stringArg(args, "commit")
		if commit == "" {
			commit = "HEAD"
		}
		out, err := runGit(ctx, repoPath, "show", commit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"repo_path": repoPath, "commit": commit, "patch": out}, nil
	})
}
