package storage

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Local is managed storage rooted at a directory on the local filesystem.
//
//	<root>/books   imported originals and normalized text files
//	<root>/covers  generated cover images
//	<root>/tmp     downloads in flight
type Local struct {
	Root string
}

// NewLocal creates the storage layout under root if it doesn't exist yet.
func NewLocal(root string) (*Local, error) {
	l := &Local{Root: root}
	for _, dir := range []string{l.BooksDir(), l.CoversDir(), l.TempDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return l, nil
}

func (l *Local) BooksDir() string {
	return filepath.Join(l.Root, "books")
}

func (l *Local) CoversDir() string {
	return filepath.Join(l.Root, "covers")
}

func (l *Local) TempDir() string {
	return filepath.Join(l.Root, "tmp")
}

// CheckWritable probes the books directory by creating and removing a file.
func (l *Local) CheckWritable() error {
	f, err := os.CreateTemp(l.BooksDir(), ".probe-*")
	if err != nil {
		return errors.WithStack(err)
	}
	name := f.Name()
	closeErr := f.Close()
	removeErr := os.Remove(name)
	if closeErr != nil {
		return errors.WithStack(closeErr)
	}
	return errors.WithStack(removeErr)
}

// FreeSpace returns the bytes available to unprivileged users on the
// filesystem holding the books directory.
func (l *Local) FreeSpace() (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(l.BooksDir(), &st); err != nil {
		return 0, errors.WithStack(err)
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}
