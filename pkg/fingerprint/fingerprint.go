package fingerprint

import (
	"context"
	"encoding/hex"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

const chunkSize = 128 * 1024

// File computes the content hash of the file at path: the hex-encoded
// BLAKE2b-256 digest of its bytes. The file is streamed and ctx is checked
// between chunks.
func File(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer f.Close()

	return Reader(ctx, f)
}

// Reader computes the content hash of everything read from r.
func Reader(ctx context.Context, r io.Reader) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", errors.WithStack(err)
	}

	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", errors.WithStack(err)
		}
		n, err := r.Read(buf)
		if n > 0 {
			_, _ = h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.WithStack(err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
