// Package discovery lists the files under a directory tree using doublestar
// glob walks: plain file discovery for indexing and scanning, and the
// name-based glob finder.
package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/errors"
)

// ListFiles returns the regular files under root, descending into
// subdirectories when recursive is set. Index files are left out: paths
// ending in excludeExt, index files still being written, and the index
// register.
func ListFiles(ctx context.Context, root string, recursive bool, excludeExt string) ([]string, error) {
	if err := checkRoot(root); err != nil {
		return nil, err
	}
	pattern := "*"
	if recursive {
		pattern = "**"
	}
	var files []string
	err := doublestar.GlobWalk(os.DirFS(root), pattern, func(p string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if isIndexFile(path.Base(p), excludeExt) {
			return nil
		}
		files = append(files, filepath.Join(root, filepath.FromSlash(p)))
		return nil
	}, doublestar.WithFilesOnly(), doublestar.WithNoFollow())
	if err != nil {
		return nil, fmt.Errorf("listing files under %s: %w", root, err)
	}
	return files, nil
}

// FindFiles returns every file and directory under root whose name matches
// glob. A glob containing a separator is matched against the path relative
// to root instead.
func FindFiles(ctx context.Context, root string, glob string) ([]string, error) {
	if err := checkRoot(root); err != nil {
		return nil, err
	}
	glob = filepath.ToSlash(glob)
	if glob == "" || !doublestar.ValidatePattern(glob) {
		return nil, fmt.Errorf("%w: bad glob %q", apperrors.ErrInvalidArgument, glob)
	}
	if !strings.Contains(glob, "/") {
		glob = path.Join("**", glob)
	}
	var matches []string
	err := doublestar.GlobWalk(os.DirFS(root), glob, func(p string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == "." {
			return nil
		}
		matches = append(matches, filepath.Join(root, filepath.FromSlash(p)))
		return nil
	}, doublestar.WithNoFollow())
	if err != nil {
		return nil, fmt.Errorf("finding %q under %s: %w", glob, root, err)
	}
	return matches, nil
}

// isIndexFile reports whether name belongs to an index. An empty excludeExt
// only matches the register.
func isIndexFile(name, excludeExt string) bool {
	if name == segment.RegisterName {
		return true
	}
	if excludeExt == "" {
		return false
	}
	if strings.HasSuffix(name, excludeExt) {
		return true
	}
	return strings.HasSuffix(name, segment.TempSuffix) && strings.Contains(name, excludeExt+".")
}

func checkRoot(root string) error {
	if root == "" {
		return fmt.Errorf("%w: empty root", apperrors.ErrInvalidArgument)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", apperrors.ErrInvalidArgument, root)
	}
	return nil
}
