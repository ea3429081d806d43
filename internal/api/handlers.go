package api

import (
	"strings"

	"crew-scheduler/internal/clock"
	"crew-scheduler/internal/service"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) getAssignments(c *fiber.Ctx) error {
	date, err := s.dateParam(c, "date")
	if err != nil {
		return err
	}

	rows, err := s.svc.Assignments.GetEffectiveAssignments(c.UserContext(), date)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, "effective assignments", rows)
}

func (s *Server) submitAssignments(c *fiber.Ctx) error {
	var req submitAssignmentsRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	result, err := s.svc.Assignments.SubmitAssignments(
		c.UserContext(),
		clock.MustParseDate(req.Date),
		req.ProjectIDs,
		req.items(),
	)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusCreated, "assignments saved", result)
}

func (s *Server) getAttendance(c *fiber.Ctx) error {
	date, err := s.dateParam(c, "date")
	if err != nil {
		return err
	}

	var projectIDs []string
	if id := strings.TrimSpace(c.Query("projectId")); id != "" {
		projectIDs = []string{id}
	}

	rows, err := s.svc.Assignments.GetAttendance(c.UserContext(), date, projectIDs)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, "attendance", rows)
}

func (s *Server) listProjects(c *fiber.Ctx) error {
	date, err := s.dateParam(c, "date")
	if err != nil {
		return err
	}

	views, err := s.svc.Projects.List(c.UserContext(), date)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, "projects", views)
}

func (s *Server) createProject(c *fiber.Ctx) error {
	var req createProjectRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	view, err := s.svc.Projects.Create(c.UserContext(), req.input())
	if err != nil {
		return err
	}
	return success(c, fiber.StatusCreated, "project created", view)
}

func (s *Server) setProjectStatus(c *fiber.Ctx) error {
	var req setStatusRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	if err := s.svc.Projects.SetProjectStatus(c.UserContext(), req.ProjectID, req.Status, req.Reason); err != nil {
		return err
	}
	return success(c, fiber.StatusOK, "status updated", fiber.Map{"ok": true})
}

func (s *Server) reportRef(c *fiber.Ctx) error {
	jobID, err := s.svc.Projects.ReportRef(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, "report reference", fiber.Map{"job_id": jobID})
}

func (s *Server) projectHistory(c *fiber.Ctx) error {
	rows, err := s.svc.Projects.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, "membership history", rows)
}

func (s *Server) listTechnicians(c *fiber.Ctx) error {
	views, err := s.svc.Technicians.List(c.UserContext())
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, "technicians", views)
}

func (s *Server) createTechnician(c *fiber.Ctx) error {
	var req createTechnicianRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	view, err := s.svc.Technicians.Create(c.UserContext(), service.TechnicianInput{
		Code:     req.Code,
		Name:     req.Name,
		Initials: req.Initials,
	})
	if err != nil {
		return err
	}
	return success(c, fiber.StatusCreated, "technician created", view)
}

func (s *Server) updateTechnician(c *fiber.Ctx) error {
	var req updateTechnicianRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	view, err := s.svc.Technicians.Update(c.UserContext(), c.Params("id"), service.TechnicianInput{
		Name:     req.Name,
		Initials: req.Initials,
	})
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, "technician updated", view)
}

func (s *Server) deleteTechnician(c *fiber.Ctx) error {
	if err := s.svc.Technicians.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return success(c, fiber.StatusOK, "technician deleted", nil)
}

func (s *Server) technicianJobs(c *fiber.Ctx) error {
	jobs, err := s.svc.Technicians.Jobs(c.UserContext(), c.Query("technician"))
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, "jobs", jobs)
}

func (s *Server) advanceDay(c *fiber.Ctx) error {
	var req advanceDayRequest
	if len(c.Body()) > 0 {
		if err := s.bind(c, &req); err != nil {
			return err
		}
	}

	date := s.today()
	if req.Date != "" {
		date = clock.MustParseDate(req.Date)
	}

	advanced, err := s.svc.Days.AdvanceDay(c.UserContext(), date)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, "day advance", fiber.Map{
		"date":     date,
		"advanced": advanced,
	})
}
