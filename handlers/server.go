package handlers

import (
	"context"
	"net"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-summary/config"
)

type Server struct {
	server *http.Server
	logger *logrus.Logger
	port   string
}

// NewServer builds the HTTP server. Every request context derives from base,
// so cancelling base reaches jobs on hijacked websocket connections that
// Shutdown does not track.
func NewServer(base context.Context, cfg *config.Config, handler http.Handler, logger *logrus.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:         ":" + cfg.ServerPort,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
			BaseContext: func(net.Listener) context.Context {
				return base
			},
		},
		logger: logger,
		port:   cfg.ServerPort,
	}
}

func (s *Server) Start() error {
	s.logger.WithField("port", s.port).Info("Starting server")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}
