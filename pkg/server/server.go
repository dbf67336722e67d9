package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/hunt2035/SoundSync-sub002/pkg/binder"
	"github.com/hunt2035/SoundSync-sub002/pkg/books"
	"github.com/hunt2035/SoundSync-sub002/pkg/config"
	"github.com/hunt2035/SoundSync-sub002/pkg/errcodes"
	"github.com/hunt2035/SoundSync-sub002/pkg/filesystem"
	"github.com/hunt2035/SoundSync-sub002/pkg/joblogs"
	"github.com/hunt2035/SoundSync-sub002/pkg/jobs"
	"github.com/hunt2035/SoundSync-sub002/pkg/ocrtext"
	"github.com/hunt2035/SoundSync-sub002/pkg/reader"
	"github.com/hunt2035/SoundSync-sub002/pkg/search"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/uptrace/bun"
)

func New(cfg *config.Config, db *bun.DB, sessions *reader.Sessions) (*http.Server, error) {
	e, err := newEcho(cfg, db, sessions)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func newEcho(cfg *config.Config, db *bun.DB, sessions *reader.Sessions) (*echo.Echo, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)

	// Books and the reader share the /books group.
	booksGroup := e.Group("/books")
	books.RegisterRoutesWithGroup(booksGroup, db)
	search.RegisterRoutesWithGroup(booksGroup, db)
	reader.RegisterRoutesWithGroup(booksGroup, db, sessions)

	jobsGroup := e.Group("/jobs")
	jobs.RegisterRoutesWithGroup(jobsGroup, db)
	joblogs.RegisterRoutes(jobsGroup, db)

	ocrtext.RegisterRoutes(e)

	if err := filesystem.RegisterRoutes(e, cfg.BrowseRoot); err != nil {
		return nil, err
	}

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	return e, nil
}

// NewReaderSessions builds the reader session registry from configuration.
func NewReaderSessions(cfg *config.Config, deps reader.Deps) *reader.Sessions {
	if deps.Config == (reader.Config{}) {
		deps.Config = reader.DefaultConfig()
	}
	deps.Config.CharsPerPage = cfg.ReaderCharsPerPage
	deps.SnippetRadius = cfg.SearchSnippetRadius
	deps.MaxSearchResults = cfg.SearchMaxResults
	return reader.NewSessions(deps, cfg.ReaderMaxSessions)
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
