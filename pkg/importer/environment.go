package importer

import (
	"github.com/hunt2035/SoundSync-sub002/pkg/books"
	"github.com/hunt2035/SoundSync-sub002/pkg/config"
	"github.com/hunt2035/SoundSync-sub002/pkg/converters"
	"github.com/hunt2035/SoundSync-sub002/pkg/covers"
	"github.com/hunt2035/SoundSync-sub002/pkg/mediafile"
	"github.com/hunt2035/SoundSync-sub002/pkg/pdf"
	"github.com/hunt2035/SoundSync-sub002/pkg/storage"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// Environment is the set of long-lived collaborators built from
// configuration that imports and readers share within a process.
type Environment struct {
	Storage    *storage.Local
	Books      *books.Service
	Converters *mediafile.Registry
	// PDFCovers is nil when PDF cover rendering is turned off.
	PDFCovers pdf.FirstPageRenderer
	Pipeline  *Pipeline

	renderer *pdf.CoverRenderer
}

func NewEnvironment(cfg *config.Config, db *bun.DB) (*Environment, error) {
	store, err := storage.NewLocal(cfg.StorageDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare storage")
	}

	env := &Environment{
		Storage: store,
		Books:   books.NewService(db, books.WithMaxRetries(cfg.DatabaseMaxRetries)),
	}
	if cfg.RenderPDFCovers {
		env.renderer = pdf.NewCoverRenderer()
		env.PDFCovers = env.renderer
	}
	env.Converters = converters.New(env.PDFCovers)

	env.Pipeline = New(Deps{
		Catalog:    env.Books,
		Resolver:   storage.NewResolver(store.TempDir()),
		Storage:    store,
		Converters: env.Converters,
		Covers:     covers.NewWriter(store.CoversDir(), cfg.CoverMaxWidth),
	})
	return env, nil
}

// Close releases the PDF renderer, if one was started.
func (env *Environment) Close() error {
	if env.renderer == nil {
		return nil
	}
	return errors.WithStack(env.renderer.Close())
}
