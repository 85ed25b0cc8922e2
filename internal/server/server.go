// Package server exposes the keeper's status over HTTP.
package server

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/argus-labs/epoch-keeper/internal/journal"
	"github.com/argus-labs/epoch-keeper/internal/keeper"
)

const shutdownTimeout = 5 * time.Second

// StatusSource provides the keeper's latest observation.
type StatusSource interface {
	Snapshot() keeper.Snapshot
}

type Server struct {
	app    *fiber.App
	port   string
	source StatusSource
	store  journal.Store
	log    zerolog.Logger
}

func New(source StatusSource, store journal.Store, port string, logger zerolog.Logger) (*Server, error) {
	if source == nil {
		return nil, eris.New("server requires a non-nil status source")
	}
	if store == nil {
		return nil, eris.New("server requires a non-nil journal")
	}
	if port == "" {
		return nil, eris.New("server requires a port")
	}

	app := fiber.New(fiber.Config{
		Network:               "tcp", // Enable server listening on both ipv4 & ipv6 (default: ipv4 only)
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	s := &Server{
		app:    app,
		port:   port,
		source: source,
		store:  store,
		log:    logger,
	}
	s.setupRoutes()
	return s, nil
}

// Serve blocks until ctx is cancelled or the listener fails, then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		s.log.Info().Msgf("Starting status server at port %s", s.port)
		if err := s.app.Listen(":" + s.port); err != nil {
			serverErr <- eris.Wrap(err, "error starting http server")
		}
	}()

	select {
	case err := <-serverErr:
		return eris.Wrap(err, "server encountered an error")
	case <-ctx.Done():
		if err := s.shutdown(); err != nil {
			return eris.Wrap(err, "error shutting down server")
		}
	}
	return nil
}

func (s *Server) shutdown() error {
	s.log.Info().Msg("Shutting down status server")
	if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return eris.Wrap(err, "error shutting down server")
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", getHealth(s.source))
	s.app.Get("/task", getTask(s.source))
	s.app.Get("/actions", getActions(s.store))
}
