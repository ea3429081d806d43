package api

import (
	"errors"

	"crew-scheduler/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

func success(c *fiber.Ctx, code int, message string, data interface{}) error {
	return c.Status(code).JSON(fiber.Map{
		"code":    code,
		"status":  "success",
		"message": message,
		"data":    data,
	})
}

func errorResponse(c *fiber.Ctx, code int, message string) error {
	return c.Status(code).JSON(fiber.Map{
		"code":    code,
		"status":  "error",
		"message": message,
	})
}

func errorWithDetails(c *fiber.Ctx, code int, message string, details interface{}) error {
	return c.Status(code).JSON(fiber.Map{
		"code":    code,
		"status":  "error",
		"message": message,
		"errors":  details,
	})
}

// writeError maps service errors onto HTTP statuses.
func (s *Server) writeError(c *fiber.Ctx, err error) error {
	var (
		verr     *service.ValidationError
		notFound *service.NotFoundError
		conflict *service.ConflictError
		fields   validator.ValidationErrors
	)

	switch {
	case errors.As(err, &fields):
		details := make(map[string]string, len(fields))
		for _, fe := range fields {
			details[fe.Field()] = fe.Tag()
		}
		return errorWithDetails(c, fiber.StatusBadRequest, "validation failed", details)
	case errors.As(err, &verr):
		return errorWithDetails(c, fiber.StatusBadRequest, verr.Error(), fiber.Map{verr.Field: verr.Message})
	case errors.As(err, &notFound):
		return errorResponse(c, fiber.StatusNotFound, notFound.Error())
	case errors.As(err, &conflict):
		return errorResponse(c, fiber.StatusConflict, conflict.Error())
	default:
		s.logger.WithError(err).WithField("path", c.OriginalURL()).Error("Request failed")
		return errorResponse(c, fiber.StatusInternalServerError, "internal error")
	}
}

// bind decodes and validates a JSON body.
func (s *Server) bind(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return &service.ValidationError{Field: "body", Message: "invalid JSON"}
	}
	return s.validate.Struct(dst)
}
