package filesystem

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hunt2035/SoundSync-sub002/pkg/errcodes"
	"github.com/hunt2035/SoundSync-sub002/pkg/formats"
	"github.com/pkg/errors"
)

// Service lists directories on the server so a client can pick files to
// import. Nothing outside root is ever listed.
type Service struct {
	root string
}

func NewService(root string) (*Service, error) {
	if root == "" {
		root = "/"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return &Service{root: abs}, nil
}

type BrowseOptions BrowseQuery

func (s *Service) Browse(opts BrowseOptions) (*BrowseResponse, error) {
	dir, err := s.resolve(opts.Path)
	if err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			return nil, errcodes.NotFound("Directory")
		}
		return nil, errors.WithStack(err)
	}

	search := strings.ToLower(opts.Search)
	entries := []Entry{}
	for _, de := range dirEntries {
		name := de.Name()
		if !opts.ShowHidden && strings.HasPrefix(name, ".") {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(name), search) {
			continue
		}

		entry := Entry{Name: name, Path: filepath.Join(dir, name), IsDir: de.IsDir()}
		if !entry.IsDir {
			if f := formats.Detect(name); f != formats.Unknown {
				entry.Format = f.String()
			} else if !opts.AllFiles {
				continue
			}
			// Entries that vanish or cannot be stat'd keep a zero size.
			if info, err := de.Info(); err == nil {
				entry.Size = info.Size()
			}
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})

	total := len(entries)
	start := min(opts.Offset, total)
	end := min(start+opts.Limit, total)

	parent := ""
	if dir != s.root {
		parent = filepath.Dir(dir)
	}

	return &BrowseResponse{
		CurrentPath: dir,
		ParentPath:  parent,
		Entries:     entries[start:end],
		Total:       total,
		HasMore:     end < total,
	}, nil
}

// resolve maps a requested path onto a resolved directory under root. Symlinks
// are followed before the containment check so they cannot lead outside.
func (s *Service) resolve(path string) (string, error) {
	if path == "" {
		return s.root, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}

	resolved, err := filepath.EvalSymlinks(filepath.Clean(path))
	if err != nil {
		return "", errcodes.NotFound("Directory")
	}
	rel, err := filepath.Rel(s.root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errcodes.NotFound("Directory")
	}

	info, err := os.Stat(resolved)
	if err != nil || !info.IsDir() {
		return "", errcodes.NotFound("Directory")
	}
	return resolved, nil
}
