package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gridbase/sheetsync/internal/utils"
)

type Server struct {
	config   *Config
	services *Services
	server   *http.Server
}

func New(config *Config, services *Services) (*Server, error) {
	if config.HTTP.Addr == "" {
		config.HTTP.Addr = DefaultAddr
	}
	if config.HTTP.ServiceToken != "" {
		slog.Info("control api auth enabled", "token", utils.MaskSecret(config.HTTP.ServiceToken))
	} else {
		slog.Warn("control api auth disabled")
	}

	return &Server{
		config:   config,
		services: services,
		server: &http.Server{
			Addr:    config.HTTP.Addr,
			Handler: SetupRoutes(config, services),
		},
	}, nil
}

// Start runs the http server and the scheduler until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	slog.Info("sheetsync server start")
	defer slog.Info("sheetsync server stop")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.runHttpServer(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		slog.Info("http server stopped")
		return nil
	})

	g.Go(func() error {
		return s.services.Scheduler.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.Stop(context.Background())
	})

	return g.Wait()
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return s.services.Shutdown(shutdownCtx)
}

func (s *Server) runHttpServer() error {
	if s.config.HTTP.CertFile != "" && s.config.HTTP.KeyFile != "" {
		slog.Info("server start tls", "addr", s.config.HTTP.Addr, "cert", s.config.HTTP.CertFile, "key", s.config.HTTP.KeyFile)
		return s.server.ListenAndServeTLS(s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	slog.Info("server start http", "addr", s.config.HTTP.Addr)
	return s.server.ListenAndServe()
}
