package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openmirror/mirrorbox/internal/db"
	"github.com/openmirror/mirrorbox/internal/mirror"
	"github.com/openmirror/mirrorbox/internal/store"
)

type Server struct {
	config *Config
	server *http.Server
	db     *sqlx.DB
	svc    *mirror.Service
}

func New(config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	s3Store, err := store.NewS3StoreWithConfig(&config.S3)
	if err != nil {
		return nil, fmt.Errorf("s3 store: %w", err)
	}

	sqlDB, err := db.NewSqliteDB(db.WithPath(config.DBPath))
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	journal, err := mirror.NewJournal(sqlDB)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	engine := mirror.NewEngine(s3Store, &config.Mirror)
	engine.OnProgress(func(req mirror.SyncRequest, synced int64) {
		slog.Info("sync progress", "owner", req.Owner, "repo", req.Repo, "branch", req.Branch, "synced", synced)
	})

	svc, err := mirror.NewService(engine, journal, &config.Mirror)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &Server{
		config: config,
		db:     sqlDB,
		svc:    svc,
		server: &http.Server{
			Addr:    config.HTTP.Addr,
			Handler: SetupRoutes(svc),
		},
	}, nil
}

func (s *Server) Start(ctx context.Context) error {
	slog.Info("mirrorbox server start")
	defer slog.Info("mirrorbox server stop")

	errCh := make(chan error, 1)
	go func() {
		if err := s.runHTTPServer(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("mirrorbox shutdown signal")
	return s.Stop(ctx)
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return s.db.Close()
}

func (s *Server) runHTTPServer() error {
	if s.config.HTTP.CertFile != "" && s.config.HTTP.KeyFile != "" {
		slog.Info("server start tls", "addr", s.config.HTTP.Addr)
		return s.server.ListenAndServeTLS(s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	slog.Info("server start http", "addr", s.config.HTTP.Addr)
	return s.server.ListenAndServe()
}
