package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-brawler/pkg/channels"
	"github.com/teslashibe/go-brawler/pkg/hub"
)

// ChannelsResponse is the channel view the control loop last ticked on.
type ChannelsResponse struct {
	Values    []uint16           `json:"values"`
	Seq       uint64             `json:"seq"`
	Updated   time.Time          `json:"updated"`
	Freshness channels.Freshness `json:"freshness"`
	Rejected  uint64             `json:"rejected"`
}

// EStopResponse reports the kill latch after an e-stop request.
type EStopResponse struct {
	Killed bool   `json:"killed"`
	Reason string `json:"reason"`
}

// handleHealth reports liveness and the connected dashboard clients
func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := fiber.Map{
		"ok":             true,
		"status_clients": s.statusHub.ClientCount(),
		"camera_clients": s.cameraHub.ClientCount(),
	}
	if s.deps.Status != nil {
		resp["run_id"] = s.deps.Status.Status().RunID
	}
	return c.JSON(resp)
}

// handleStatus returns the most recent control tick
func (s *Server) handleStatus(c *fiber.Ctx) error {
	if s.deps.Status == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "control loop not running")
	}
	return c.JSON(s.deps.Status.Status())
}

// handleChannels returns the clamped channel values of the last tick
func (s *Server) handleChannels(c *fiber.Ctx) error {
	if s.deps.Store == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "no channel store")
	}
	view := s.deps.Store.Last()
	return c.JSON(ChannelsResponse{
		Values:    view.Values,
		Seq:       view.Seq,
		Updated:   view.Updated,
		Freshness: view.Freshness,
		Rejected:  s.deps.Store.Rejected(),
	})
}

// handleLink returns receiver link counters
func (s *Server) handleLink(c *fiber.Ctx) error {
	if s.deps.LinkStats == nil {
		return fiber.NewError(fiber.StatusNotFound, "no receiver link")
	}
	return c.JSON(s.deps.LinkStats())
}

// handleEStop latches the kill state. It is idempotent; a robot that is
// already killed keeps its original reason.
func (s *Server) handleEStop(c *fiber.Ctx) error {
	if s.deps.Killer == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "no arbiter")
	}
	s.deps.Killer.ForceKill(EStopReason)
	killed, reason := s.deps.Killer.Killed()
	s.log.Warn("e-stop requested", "remote", c.IP(), "reason", reason)
	return c.JSON(EStopResponse{Killed: killed, Reason: reason})
}

// handleWS attaches a websocket to h until the peer goes away
func (s *Server) handleWS(h *hub.Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		client := hub.NewClient(h, conn)
		if client == nil {
			conn.Close()
			return
		}
		client.Run()
	}
}
