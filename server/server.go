// Package server exposes a read-only debug HTTP surface over a shared world.
package server

import (
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"pkg.world.dev/world-engine/ecstore/gamestate"
	"pkg.world.dev/world-engine/ecstore/snapshot"
)

type Server struct {
	app      *fiber.App
	shared   *gamestate.Shared
	logger   zerolog.Logger
	snapOpts []snapshot.Option
}

type Option func(s *Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithSnapshotOptions is passed to Serialize by the snapshot endpoint.
func WithSnapshotOptions(opts ...snapshot.Option) Option {
	return func(s *Server) {
		s.snapOpts = append(s.snapOpts, opts...)
	}
}

func New(shared *gamestate.Shared, opts ...Option) *Server {
	s := &Server{
		shared: shared,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          s.errorHandler,
	})
	s.registerHandlers()
	return s
}

func (s *Server) registerHandlers() {
	s.app.Get("/health", getHealth)
	debug := s.app.Group("/debug")
	debug.Get("/components", s.getComponents)
	debug.Get("/archetypes", s.getArchetypes)
	debug.Get("/snapshot", s.getSnapshot)
	debug.Get("/entity/:id", s.getEntity)
	debug.Post("/query", s.postQuery)
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Serve listens on addr until Shutdown is called.
func (s *Server) Serve(addr string) error {
	s.logger.Info().Str("address", addr).Msg("Starting debug server")
	if err := s.app.Listen(addr); err != nil {
		return eris.Wrap(err, "error starting debug server")
	}
	return nil
}

func (s *Server) Shutdown() error {
	s.logger.Info().Msg("Shutting down debug server")
	if err := s.app.Shutdown(); err != nil {
		return eris.Wrap(err, "error shutting down debug server")
	}
	return nil
}

func (s *Server) errorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if eris.As(err, &fiberErr) {
		code = fiberErr.Code
	} else {
		s.logger.Error().Err(err).Str("path", ctx.Path()).Msg("debug request failed")
	}
	return ctx.Status(code).SendString(err.Error())
}
