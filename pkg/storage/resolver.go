package storage

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/hunt2035/SoundSync-sub002/pkg/errcodes"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// Source is resolved content ready to be read from the local filesystem.
type Source struct {
	Path string
	Name string
	Size int64

	temporary bool
}

// Open opens the underlying content for reading.
func (s *Source) Open() (*os.File, error) {
	f, err := os.Open(s.Path)
	return f, errors.WithStack(err)
}

// Release removes content that was fetched into temporary storage. The
// original source is never touched.
func (s *Source) Release() {
	if s.temporary {
		_ = os.Remove(s.Path)
	}
}

// Resolver turns an opaque content reference into a readable Source. It
// understands bare paths, file:// URIs and http(s) URLs. Remote content is
// downloaded into tempDir and otherwise treated like any other file.
type Resolver struct {
	tempDir string
	client  *http.Client
}

func NewResolver(tempDir string) *Resolver {
	return &Resolver{
		tempDir: tempDir,
		client:  &http.Client{Timeout: 10 * time.Minute},
	}
}

func (r *Resolver) Resolve(ctx context.Context, ref string) (*Source, error) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Bare paths, including Windows drive letters.
		return r.resolveFile(ref)
	}

	switch u.Scheme {
	case "file":
		return r.resolveFile(u.Path)
	case "http", "https":
		return r.download(ctx, u)
	default:
		return nil, errcodes.ValidationError("Unsupported content reference scheme " + u.Scheme + ".")
	}
}

func (r *Resolver) resolveFile(p string) (*Source, error) {
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errcodes.NotFound("Source file")
		}
		return nil, errors.WithStack(err)
	}
	if info.IsDir() {
		return nil, errcodes.ValidationError("Source is a directory.")
	}
	return &Source{Path: p, Name: filepath.Base(p), Size: info.Size()}, nil
}

func (r *Resolver) download(ctx context.Context, u *url.URL) (*Source, error) {
	log := logger.FromContext(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to download source")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("failed to download source: unexpected status %d", resp.StatusCode)
	}

	f, err := os.CreateTemp(r.tempDir, "download-*")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	n, err := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return nil, errors.Wrap(err, "failed to download source")
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = u.Host
	}
	log.Info("downloaded source", logger.Data{"url": u.String(), "bytes": n})

	return &Source{Path: f.Name(), Name: strings.TrimSpace(name), Size: n, temporary: true}, nil
}
