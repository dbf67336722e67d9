package main

import (
	"context"

	"github.com/hunt2035/SoundSync-sub002/pkg/config"
	"github.com/hunt2035/SoundSync-sub002/pkg/database"
	"github.com/hunt2035/SoundSync-sub002/pkg/importer"
	"github.com/hunt2035/SoundSync-sub002/pkg/migrations"
	"github.com/hunt2035/SoundSync-sub002/pkg/reader"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// shell opens the database and import environment on first use, so commands
// that do not touch the catalog run without configuration.
type shell struct {
	log logger.Logger
	cfg *config.Config
	db  *bun.DB
	env *importer.Environment
}

func (sh *shell) open(ctx context.Context) (*importer.Environment, error) {
	if sh.env != nil {
		return sh.env, nil
	}

	cfg, err := config.New()
	if err != nil {
		return nil, errors.Wrap(err, "config error")
	}
	db, err := database.New(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "database error")
	}
	if _, err := migrations.BringUpToDate(ctx, db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "migrations error")
	}
	env, err := importer.NewEnvironment(cfg, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	sh.cfg, sh.db, sh.env = cfg, db, env
	return env, nil
}

// engineDeps returns reader dependencies matching the server's.
func (sh *shell) engineDeps() reader.Deps {
	cfg := reader.DefaultConfig()
	cfg.CharsPerPage = sh.cfg.ReaderCharsPerPage
	return reader.Deps{
		Progress:         sh.env.Books,
		Converters:       sh.env.Converters,
		PDFCovers:        sh.env.PDFCovers,
		Config:           cfg,
		SnippetRadius:    sh.cfg.SearchSnippetRadius,
		MaxSearchResults: sh.cfg.SearchMaxResults,
	}
}

func (sh *shell) close() error {
	if sh.env == nil {
		return nil
	}
	if err := sh.env.Close(); err != nil {
		sh.log.Err(err).Warn("pdf renderer close error")
	}
	return errors.WithStack(sh.db.Close())
}
