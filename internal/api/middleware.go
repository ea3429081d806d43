package api

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const headerRequestID = "X-Request-ID"

// requestContext tags the request with an id, bounds it with a timeout and
// logs and measures it once it is done.
func (s *Server) requestContext(c *fiber.Ctx) error {
	id := c.Get(headerRequestID)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(headerRequestID, id)
	c.Locals("request_id", id)

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()
	c.SetUserContext(ctx)

	start := time.Now()
	err := c.Next()
	if err != nil {
		if herr := s.handleFiberError(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}
	elapsed := time.Since(start)

	status := c.Response().StatusCode()
	s.metrics.ObserveRequest(c.Method(), c.Route().Path, strconv.Itoa(status), elapsed.Seconds())

	entry := s.logger.WithFields(logrus.Fields{
		"request_id": id,
		"method":     c.Method(),
		"path":       c.OriginalURL(),
		"status":     status,
		"duration":   elapsed.String(),
	})
	if status >= fiber.StatusInternalServerError {
		entry.Warn("Request failed")
	} else {
		entry.Debug("Request served")
	}
	return nil
}
