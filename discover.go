package knot

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
)

// skipDirs are directory names never descended into when walking.
var skipDirs = map[string]bool{
	"node_modules":  true,
	"__pycache__":   true,
	"site-packages": true,
	"venv":          true,
	"build":         true,
	"dist":          true,
}

// isPythonFile reports whether path is a Python source or stub file.
func isPythonFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".py" || ext == ".pyi"
}

// gitListFiles discovers tracked and untracked (but not ignored) Python
// files under dir using the enclosing git repository.
func gitListFiles(dir string) ([]string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("worktree: %w", err)
	}
	root := wt.Filesystem.Root()

	seen := map[string]bool{}
	var paths []string
	add := func(rel string) {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if seen[abs] || !isPythonFile(abs) || !within(dir, abs) {
			return
		}
		// Tracked files deleted from the work tree stay in the index.
		if _, err := os.Stat(abs); err != nil {
			return
		}
		seen[abs] = true
		paths = append(paths, abs)
	}

	idx, err := repo.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	for _, entry := range idx.Entries {
		add(entry.Name)
	}

	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	for rel, st := range status {
		if st.Worktree == git.Untracked {
			add(rel)
		}
	}

	sort.Strings(paths)
	return paths, nil
}

// walkListFiles discovers Python files by walking the filesystem, used as a
// fallback outside git repositories. Skips hidden directories and skipDirs.
func walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if isPythonFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
