// Package web serves the pit-side dashboard API: status snapshots, the
// operator e-stop and websocket feeds for status and camera frames.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-brawler/internal/log"
	"github.com/teslashibe/go-brawler/pkg/channels"
	"github.com/teslashibe/go-brawler/pkg/control"
	"github.com/teslashibe/go-brawler/pkg/hub"
	"github.com/teslashibe/go-brawler/pkg/receiver"
)

// EStopReason is the kill reason recorded for a dashboard e-stop.
const EStopReason = "operator e-stop"

// StatusSource returns the latest control tick.
type StatusSource interface {
	Status() control.Status
}

// Killer latches the kill state.
type Killer interface {
	ForceKill(reason string)
	Killed() (bool, string)
}

// Deps are the robot handles the API reads from.
type Deps struct {
	Status    StatusSource
	Store     *channels.Store
	Killer    Killer
	LinkStats func() receiver.LinkStats // nil when there is no live link
}

// Server is the dashboard server
type Server struct {
	app  *fiber.App
	addr string
	deps Deps
	log  *slog.Logger

	// Hubs for websocket broadcast
	statusHub *hub.Hub
	cameraHub *hub.Hub
}

// NewServer creates a server that will listen on addr.
func NewServer(addr string, deps Deps) *Server {
	s := &Server{
		addr:      addr,
		deps:      deps,
		log:       log.Component("web"),
		statusHub: hub.New("status"),
		cameraHub: hub.New("camera"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Brawler",
		DisableStartupMessage: true,
	})

	// CORS for the dashboard on another origin
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/status", s.handleStatus)
	api.Get("/channels", s.handleChannels)
	api.Get("/link", s.handleLink)
	api.Post("/estop", s.handleEStop)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleWS(s.statusHub)))
	app.Get("/ws/camera", websocket.New(s.handleWS(s.cameraHub)))

	s.app = app
	return s
}

// Listen binds the configured address without serving yet.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("dashboard listen %s: %w", s.addr, err)
	}
	return ln, nil
}

// Run serves until ctx is cancelled. The hubs run for the lifetime of the
// server.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.statusHub.Run(ctx) })
	g.Go(func() error { return s.cameraHub.Run(ctx) })
	g.Go(func() error {
		s.log.Info("dashboard listening", "addr", ln.Addr().String())
		if err := s.app.Listener(ln); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		err := s.app.Shutdown()
		ln.Close()
		return err
	})
	return g.Wait()
}

// PublishStatus sends a control status to every status client. It never
// blocks the caller.
func (s *Server) PublishStatus(st control.Status) {
	if err := s.statusHub.BroadcastJSON(st); err != nil {
		s.log.Warn("failed to encode status", "err", err)
	}
}

// PublishFrame sends a JPEG frame to every camera client.
func (s *Server) PublishFrame(jpeg []byte) {
	s.cameraHub.BroadcastBinary(jpeg)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
