package api

import (
	"context"
	"errors"
	"time"

	"crew-scheduler/internal/clock"
	"crew-scheduler/internal/logger"
	"crew-scheduler/internal/metrics"
	"crew-scheduler/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

const requestTimeout = 10 * time.Second

type Server struct {
	app      *fiber.App
	svc      *service.Services
	validate *validator.Validate
	metrics  *metrics.Metrics
	logger   *logrus.Logger

	// Now is the wall clock used to default the date of reads.
	Now func() time.Time
}

func NewServer(svc *service.Services, m *metrics.Metrics, log *logrus.Logger) *Server {
	s := &Server{
		svc:      svc,
		validate: newValidator(),
		metrics:  m,
		logger:   logger.OrDefault(log),
		Now:      time.Now,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "crew-scheduler",
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           90 * time.Second,
		ErrorHandler:          s.handleFiberError,
	})

	s.app.Use(s.requestContext)
	s.app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, " + headerRequestID,
	}))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))

	api := s.app.Group("/api")

	api.Get("/assignments", s.getAssignments)
	api.Post("/assignments", s.submitAssignments)
	api.Get("/attendance", s.getAttendance)

	api.Get("/projects", s.listProjects)
	api.Post("/projects", s.createProject)
	api.Patch("/projects/status", s.setProjectStatus)
	api.Get("/projects/:id/report-ref", s.reportRef)
	api.Get("/projects/:id/history", s.projectHistory)

	api.Get("/technicians", s.listTechnicians)
	api.Post("/technicians", s.createTechnician)
	api.Get("/technicians/jobs", s.technicianJobs)
	api.Patch("/technicians/:id", s.updateTechnician)
	api.Delete("/technicians/:id", s.deleteTechnician)

	api.Post("/days/advance", advanceLimiter(), s.advanceDay)
}

// advanceLimiter throttles manual day advances per client.
func advanceLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        10,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return errorResponse(c, fiber.StatusTooManyRequests, "too many day advance requests")
		},
	})
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.WithField("addr", addr).Info("HTTP API listening")
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// today is the effective business date right now.
func (s *Server) today() clock.Date {
	return s.svc.Clock.EffectiveDate(s.Now())
}

// dateParam parses an optional YYYY-MM-DD query value, defaulting to the
// current business day.
func (s *Server) dateParam(c *fiber.Ctx, key string) (clock.Date, error) {
	raw := c.Query(key)
	if raw == "" {
		return s.svc.Days.Current(c.UserContext())
	}
	d, err := clock.ParseDate(raw)
	if err != nil {
		return clock.Date{}, &service.ValidationError{Field: key, Message: "must be a YYYY-MM-DD date"}
	}
	return d, nil
}

func (s *Server) handleFiberError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return errorResponse(c, fe.Code, fe.Message)
	}
	return s.writeError(c, err)
}
