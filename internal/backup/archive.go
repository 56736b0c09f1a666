package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"serverbackup/internal/config"
)

// Archiver packages a staging directory into a single compressed tar
// artifact and extracts it back for verification or restore tooling.
type Archiver struct {
	algorithm config.CompressionAlgorithm
	level     int
}

// NewArchiver creates an archiver for the configured compression codec
func NewArchiver(cfg config.CompressionConfig) *Archiver {
	algorithm := cfg.Algorithm
	if algorithm == "" {
		algorithm = config.CompressionGzip
	}
	return &Archiver{
		algorithm: algorithm,
		level:     cfg.Level,
	}
}

// Extension returns the artifact filename extension for this archiver
func (a *Archiver) Extension() string {
	switch a.algorithm {
	case config.CompressionZstd:
		return ".tar.zst"
	case config.CompressionLZ4:
		return ".tar.lz4"
	default:
		return ".tar.gz"
	}
}

// Create archives the full staging directory tree, marker included, into
// artifactPath
func (a *Archiver) Create(ctx context.Context, stagingPath string, artifactPath string) error {
	outFile, err := os.Create(artifactPath)
	if err != nil {
		return NewArchiveError("failed to create artifact file", err).WithContext("path", artifactPath)
	}
	defer outFile.Close()

	compressor, err := a.newCompressionWriter(outFile)
	if err != nil {
		return NewArchiveError("failed to initialize compression writer", err)
	}

	tarWriter := tar.NewWriter(compressor)

	walkErr := filepath.WalkDir(stagingPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(stagingPath, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		var linkTarget string
		if info.Mode()&fs.ModeSymlink != 0 {
			if linkTarget, err = os.Readlink(path); err != nil {
				return err
			}
		}

		header, err := tar.FileInfoHeader(info, linkTarget)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			header.Name += "/"
		}

		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(tarWriter, file)
		return err
	})

	if walkErr != nil {
		tarWriter.Close()
		compressor.Close()
		return NewArchiveError("failed to archive staging directory", walkErr).
			WithContext("staging", stagingPath)
	}

	if err := tarWriter.Close(); err != nil {
		compressor.Close()
		return NewArchiveError("failed to finalize tar stream", err)
	}
	if err := compressor.Close(); err != nil {
		return NewArchiveError("failed to finalize compression stream", err)
	}

	return outFile.Close()
}

// Extract unpacks an artifact into destDir, reproducing the archived tree
func (a *Archiver) Extract(ctx context.Context, artifactPath string, destDir string) error {
	inFile, err := os.Open(artifactPath)
	if err != nil {
		return NewArchiveError("failed to open artifact", err).WithContext("path", artifactPath)
	}
	defer inFile.Close()

	decompressor, err := newDecompressionReader(artifactPath, inFile)
	if err != nil {
		return NewArchiveError("failed to initialize decompression reader", err)
	}
	defer decompressor.Close()

	tarReader := tar.NewReader(decompressor)

	for {
		if err := ctx.Err(); err != nil {
			return NewArchiveError("extraction cancelled", err)
		}

		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return NewArchiveError("failed to read tar stream", err)
		}

		target, err := sanitizeExtractPath(destDir, header.Name)
		if err != nil {
			return NewArchiveError("unsafe path in archive", err).WithContext("name", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, fs.FileMode(header.Mode).Perm()); err != nil {
				return NewArchiveError("failed to create directory", err).WithContext("name", header.Name)
			}
		case tar.TypeSymlink:
			if err := os.Symlink(header.Linkname, target); err != nil {
				return NewArchiveError("failed to create symlink", err).WithContext("name", header.Name)
			}
		case tar.TypeReg:
			if err := extractRegularFile(tarReader, target, header); err != nil {
				return NewArchiveError("failed to extract file", err).WithContext("name", header.Name)
			}
		}
	}
}

// newCompressionWriter wraps w with the configured compression codec
func (a *Archiver) newCompressionWriter(w io.Writer) (io.WriteCloser, error) {
	switch a.algorithm {
	case config.CompressionZstd:
		encoderLevel := zstd.SpeedDefault
		switch {
		case a.level <= 1:
			encoderLevel = zstd.SpeedFastest
		case a.level <= 3:
			encoderLevel = zstd.SpeedDefault
		case a.level <= 6:
			encoderLevel = zstd.SpeedBetterCompression
		default:
			encoderLevel = zstd.SpeedBestCompression
		}
		return zstd.NewWriter(w, zstd.WithEncoderLevel(encoderLevel))
	case config.CompressionLZ4:
		writer := lz4.NewWriter(w)
		if a.level > 6 {
			if err := writer.Apply(lz4.CompressionLevelOption(lz4.Level9)); err != nil {
				return nil, err
			}
		}
		return writer, nil
	default:
		level := a.level
		if level == 0 {
			level = gzip.DefaultCompression
		}
		return gzip.NewWriterLevel(w, level)
	}
}

// newDecompressionReader selects the codec from the artifact extension
func newDecompressionReader(artifactPath string, r io.Reader) (io.ReadCloser, error) {
	switch {
	case strings.HasSuffix(artifactPath, ".tar.zst"):
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return decoder.IOReadCloser(), nil
	case strings.HasSuffix(artifactPath, ".tar.lz4"):
		return io.NopCloser(lz4.NewReader(r)), nil
	case strings.HasSuffix(artifactPath, ".tar.gz"):
		return gzip.NewReader(r)
	default:
		return nil, fmt.Errorf("unrecognized artifact extension: %s", filepath.Base(artifactPath))
	}
}

// sanitizeExtractPath rejects entries that would escape the destination
func sanitizeExtractPath(destDir string, name string) (string, error) {
	target := filepath.Join(destDir, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(filepath.Separator)) {
		return "", fmt.Errorf("entry %q escapes destination directory", name)
	}
	return target, nil
}

// extractRegularFile writes one file entry, restoring mode and mtime
func extractRegularFile(tarReader *tar.Reader, target string, header *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fs.FileMode(header.Mode).Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, tarReader); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	return os.Chtimes(target, header.ModTime, header.ModTime)
}
