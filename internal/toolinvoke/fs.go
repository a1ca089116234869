package toolinvoke

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Resolver resolves and validates filesystem-root-relative paths, refusing
// anything that would escape the root.
type Resolver struct {
	Root string
}

// Resolve returns an absolute, cleaned path within the filesystem root.
func (r Resolver) Resolve(path string) (string, error) {
	clean := strings.TrimSpace(path)
	root := strings.TrimSpace(r.Root)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve filesystem root: %w", err)
	}
	if clean == "" {
		return rootAbs, nil
	}

	var target string
	if filepath.IsAbs(clean) {
		target = filepath.Clean(clean)
	} else {
		target = filepath.Join(rootAbs, clean)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes filesystem root")
	}
	return targetAbs, nil
}

// NewFSRead builds the fs_read invoker.
func NewFSRead(resolver Resolver) Invoker {
	return InvokerFunc(func(_ context.Context, args map[string]any) (any, error) {
		path, _ := stringArg(args, "path")
		abs, err := resolver.Resolve(path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		return map[string]any{"path": path, "content": string(data)}, nil
	})
}

// NewFSWrite builds the fs_write invoker.
func NewFSWrite(resolver Resolver) Invoker {
	return InvokerFunc(func(_ context.Context, args map[string]any) (any, error) {
		path, _ := stringArg(args, "path")
		content, _ := stringArg(args, "content")
		abs, err := resolver.Resolve(path)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, fmt.Errorf("create parent directories: %w", err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("write file: %w", err)
		}
		return map[string]any{"path": path, "bytes_written": len(content)}, nil
	})
}

// NewFSList builds the fs_list invoker.
func NewFSList(resolver Resolver) Invoker {
	return InvokerFunc(func(_ context.Context, args map[string]any) (any, error) {
		path, _ := stringArg(args, "path")
		abs, err := resolver.Resolve(path)
		if err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(abs)
		if err != nil {
			return nil, fmt.Errorf("list directory: %w", err)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() {
				name += "/"
			}
			names = append(names, name)
		}
		return map[string]any{"path": path, "entries": names}, nil
	})
}

// NewFSSearch builds the fs_search invoker: a substring scan across files
// beneath the resolved directory.
func NewFSSearch(resolver Resolver) Invoker {
	return InvokerFunc(func(_ context.Context, args map[string]any) (any, error) {
		query, _ := stringArg(args, "query")
		if query == "" {
			return nil, fmt.Errorf("query is required")
		}
		subdir, _ := stringArg(args, "path")
		root, err := resolver.Resolve(subdir)
		if err != nil {
			return nil, err
		}

		var matches []string
		err = filepath.WalkDir(root, func(p string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return nil
			}
			data, readErr := os.ReadFile(p)
			if readErr != nil {
				return nil
			}
			if strings.Contains(string(data), query) {
				rel, _ := filepath.Rel(root, p)
				matches = append(matches, rel)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("search filesystem: %w", err)
		}
		return map[string]any{"query": query, "matches": matches}, nil
	})
}

// ValidateRoot confirms the filesystem root exists and can be watched,
// failing fast at startup rather than on the first fs_* call.
func ValidateRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("filesystem root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("filesystem root %q is not a directory", root)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("filesystem watcher unavailable: %w", err)
	}
	defer watcher.Close()
	return watcher.Add(root)
}
