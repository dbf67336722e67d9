package fileutils

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const copyChunkSize = 256 * 1024

// CopyReader streams r into a newly created file at dst. The destination must
// not exist yet. On any failure, including ctx being cancelled mid-copy, the
// partial destination is removed.
func CopyReader(ctx context.Context, r io.Reader, dst string) (int64, error) {
	destFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	n, err := copyWithContext(ctx, destFile, r)
	closeErr := destFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		return 0, errors.WithStack(err)
	}

	return n, nil
}

// CopyFile copies src to dst, which must not exist yet.
func CopyFile(ctx context.Context, src, dst string) (int64, error) {
	sourceFile, err := os.Open(src)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	defer sourceFile.Close()

	return CopyReader(ctx, sourceFile, dst)
}

func copyWithContext(ctx context.Context, w io.Writer, r io.Reader) (int64, error) {
	buf := make([]byte, copyChunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		nr, rerr := r.Read(buf)
		if nr > 0 {
			nw, werr := w.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// UniqueFilepath returns path if nothing exists there, otherwise the first
// free variant with a " (n)" suffix before the extension.
func UniqueFilepath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	base := filepath.Base(path)
	nameWithoutExt := base[:len(base)-len(ext)]

	for i := 1; i < 1000; i++ {
		newPath := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", nameWithoutExt, i, ext))
		if _, err := os.Stat(newPath); os.IsNotExist(err) {
			return newPath
		}
	}

	return path
}

// RemoveFiles deletes every given path, ignoring ones that are already gone.
// It keeps going after a failure and returns the first error it saw.
func RemoveFiles(paths ...string) error {
	var first error
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) && first == nil {
			first = errors.WithStack(err)
		}
	}
	return first
}
