package web

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-attend/pkg/camera"
	"github.com/teslashibe/go-attend/pkg/detection"
	"github.com/teslashibe/go-attend/pkg/history"
	"github.com/teslashibe/go-attend/pkg/hub"
	"github.com/teslashibe/go-attend/pkg/session"
)

// errorBody is the JSON shape of every API error.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func fail(c *fiber.Ctx, status int, kind string, err error) error {
	return c.Status(status).JSON(errorBody{Error: err.Error(), Kind: kind})
}

// handleStatus returns the controller snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Status())
}

// handleStart opens the camera and starts polling.
func (s *Server) handleStart(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), s.cfg.StartTimeout)
	defer cancel()

	err := s.ctrl.Start(ctx)
	switch {
	case err == nil:
		return c.JSON(s.ctrl.Status())
	case errors.Is(err, camera.ErrUnavailable):
		return fail(c, fiber.StatusServiceUnavailable, "camera_unavailable", err)
	case errors.Is(err, detection.ErrModelLoad):
		return fail(c, fiber.StatusServiceUnavailable, "model_unavailable", err)
	case errors.Is(err, session.ErrCanceled):
		return fail(c, fiber.StatusConflict, "canceled", err)
	case errors.Is(err, session.ErrClosed):
		return fail(c, fiber.StatusGone, "closed", err)
	default:
		return fail(c, fiber.StatusInternalServerError, "", err)
	}
}

// handleCapture takes the still and submits it.
func (s *Server) handleCapture(c *fiber.Ctx) error {
	out, err := s.ctrl.Capture(c.UserContext())
	switch {
	case err == nil:
		return c.JSON(out)
	case errors.Is(err, session.ErrCaptureBlocked):
		return c.Status(fiber.StatusConflict).JSON(out)
	case errors.Is(err, session.ErrNotLive):
		return fail(c, fiber.StatusConflict, "not_live", err)
	case errors.Is(err, session.ErrCanceled):
		return fail(c, fiber.StatusConflict, "canceled", err)
	case errors.Is(err, session.ErrClosed):
		return fail(c, fiber.StatusGone, "closed", err)
	default:
		return fail(c, fiber.StatusInternalServerError, "", err)
	}
}

// handleCancel ends the session.
func (s *Server) handleCancel(c *fiber.Ctx) error {
	s.ctrl.Cancel()
	return c.JSON(s.ctrl.Status())
}

// handleHistory lists attendance records. Without query parameters it
// serves the watcher's cached view of today when one is running.
func (s *Server) handleHistory(c *fiber.Ctx) error {
	if s.watcher != nil && c.Query("year") == "" && c.Query("month") == "" && c.Query("day") == "" {
		if err := s.watcher.Err(); err == nil {
			records, rev := s.watcher.Records()
			return c.JSON(fiber.Map{"records": records, "revision": rev})
		}
	}
	if s.history == nil {
		return fail(c, fiber.StatusNotFound, "", errors.New("history not configured"))
	}

	var f history.Filter
	var err error
	if f.Year, err = queryInt(c, "year"); err != nil {
		return fail(c, fiber.StatusBadRequest, "", err)
	}
	if f.Month, err = queryInt(c, "month"); err != nil {
		return fail(c, fiber.StatusBadRequest, "", err)
	}
	if f.Day, err = queryInt(c, "day"); err != nil {
		return fail(c, fiber.StatusBadRequest, "", err)
	}
	if err := f.Validate(); err != nil {
		return fail(c, fiber.StatusBadRequest, "", err)
	}

	records, err := s.history.List(c.UserContext(), f)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"records": records, "revision": s.ctrl.RefreshCount()})
	case errors.Is(err, history.ErrUnauthorized):
		return fail(c, fiber.StatusUnauthorized, "session_expired", err)
	default:
		return fail(c, fiber.StatusBadGateway, "", err)
	}
}

func queryInt(c *fiber.Ctx, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+key)
	}
	return n, nil
}

// handlePreview returns the current live frame.
func (s *Server) handlePreview(c *fiber.Ctx) error {
	frame, err := s.ctrl.Preview(c.UserContext())
	switch {
	case err == nil:
		c.Set(fiber.HeaderContentType, frame.Format)
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.Send(frame.Data)
	case errors.Is(err, session.ErrNotLive):
		return fail(c, fiber.StatusConflict, "not_live", err)
	case errors.Is(err, camera.ErrNotReady):
		return fail(c, fiber.StatusServiceUnavailable, "not_ready", err)
	default:
		return fail(c, fiber.StatusInternalServerError, "", err)
	}
}

// handleStatusWS streams status pushes.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	hub.NewClient(s.statusHub, c).Run()
}

// handleCameraWS streams preview frames.
func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.NewClient(s.cameraHub, c).Run()
}
