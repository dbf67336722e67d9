package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/hunt2035/SoundSync-sub002/pkg/config"
	"github.com/hunt2035/SoundSync-sub002/pkg/database"
	"github.com/hunt2035/SoundSync-sub002/pkg/importer"
	"github.com/hunt2035/SoundSync-sub002/pkg/migrations"
	"github.com/hunt2035/SoundSync-sub002/pkg/reader"
	"github.com/hunt2035/SoundSync-sub002/pkg/server"
	"github.com/hunt2035/SoundSync-sub002/pkg/version"
	"github.com/hunt2035/SoundSync-sub002/pkg/worker"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting shelf", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	if err := database.CheckFTS5Support(db); err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	env, err := importer.NewEnvironment(cfg, db)
	if err != nil {
		log.Err(err).Fatal("storage error")
	}
	log.Info("storage ready", logger.Data{"path": cfg.StorageDir})

	sessions := server.NewReaderSessions(cfg, reader.Deps{
		Progress:   env.Books,
		Converters: env.Converters,
		PDFCovers:  env.PDFCovers,
	})

	wrkr := worker.New(cfg, db, env.Pipeline)

	srv, err := server.New(cfg, db, sessions)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", srv.Addr)
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}
		log.Info("server started", logger.Data{"addr": listener.Addr().String()})

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	wrkr.Start()
	log.Info("worker started", logger.Data{"processes": cfg.WorkerProcesses})

	<-graceful
	log.Info("starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	wrkr.Shutdown()
	log.Info("worker shutdown")

	sessions.SaveAll(log.WithContext(ctx))
	sessions.CloseAll()
	log.Info("reader sessions closed")

	if err := env.Close(); err != nil {
		log.Err(err).Error("pdf renderer close error")
	}

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}
