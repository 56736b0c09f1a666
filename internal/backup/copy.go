package backup

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"serverbackup/internal/logging"
)

// DirectoryCopier abstracts the recursive directory copy mechanism
type DirectoryCopier interface {
	// Copy replicates the source directory tree under destRoot, preserving
	// the source's path structure relative to the filesystem root.
	Copy(ctx context.Context, source string, destRoot string) error
}

// FilesystemCopier copies directory trees in-process, preserving file
// permissions, symlinks, and modification times.
type FilesystemCopier struct {
	logger *logging.Logger
}

// NewFilesystemCopier creates a filesystem-backed DirectoryCopier
func NewFilesystemCopier(logger *logging.Logger) *FilesystemCopier {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &FilesystemCopier{logger: logger}
}

// Copy replicates source under destRoot. A source of /etc/nginx lands at
// <destRoot>/etc/nginx so that archives of several directories never
// collide.
func (c *FilesystemCopier) Copy(ctx context.Context, source string, destRoot string) error {
	start := time.Now()

	info, err := os.Stat(source)
	if err != nil {
		return NewCopyError(fmt.Sprintf("source directory %s not accessible", source), err).
			WithContext("path", source)
	}
	if !info.IsDir() {
		return NewCopyError(fmt.Sprintf("source %s is not a directory", source), nil).
			WithContext("path", source)
	}

	dest := filepath.Join(destRoot, strings.TrimPrefix(filepath.Clean(source), string(filepath.Separator)))

	filesCopied := 0
	walkErr := filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		entryInfo, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, entryInfo.Mode().Perm())
		case entryInfo.Mode()&fs.ModeSymlink != 0:
			linkTarget, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(linkTarget, target)
		case entryInfo.Mode().IsRegular():
			if err := copyFile(path, target, entryInfo); err != nil {
				return err
			}
			filesCopied++
			return nil
		default:
			// Sockets, devices, and pipes are skipped; they cannot be
			// meaningfully archived.
			return nil
		}
	})

	c.logger.LogDirectoryCopy(source, filesCopied, time.Since(start), walkErr)

	if walkErr != nil {
		return NewCopyError(fmt.Sprintf("failed to copy directory %s", source), walkErr).
			WithContext("path", source)
	}

	return nil
}

// copyFile copies one regular file, preserving mode and modification time
func copyFile(source string, target string, info fs.FileInfo) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	return os.Chtimes(target, info.ModTime(), info.ModTime())
}
