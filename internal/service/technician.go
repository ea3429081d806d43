package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"crew-scheduler/internal/logger"
	"crew-scheduler/internal/models"
	"crew-scheduler/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type TechnicianInput struct {
	Code     string
	Name     string
	Initials string
}

// TechnicianView is a directory entry with its display initial resolved.
type TechnicianView struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Name    string `json:"name"`
	Initial string `json:"initial"`
}

type CrewMember struct {
	Name     string `json:"name"`
	IsLeader bool   `json:"isLeader"`
}

// Job is a project a technician currently belongs to.
type Job struct {
	ID                  string       `json:"id"`
	JobID               string       `json:"job_id"`
	Name                string       `json:"name"`
	Location            string       `json:"lokasi"`
	Status              string       `json:"status"`
	Progress            *int         `json:"progress"`
	AssignedTechnicians []CrewMember `json:"assignedTechnicians"`
}

type TechnicianService struct {
	db     *gorm.DB
	repos  Repositories
	logger *logrus.Logger

	Now func() time.Time
}

func NewTechnicianService(db *gorm.DB, repos Repositories, log *logrus.Logger) *TechnicianService {
	return &TechnicianService{
		db:     db,
		repos:  repos,
		logger: logger.OrDefault(log),
		Now:    time.Now,
	}
}

func toView(t *models.Technician) TechnicianView {
	return TechnicianView{ID: t.ID, Code: t.Code, Name: t.Name, Initial: t.DisplayInitials()}
}

func (s *TechnicianService) Create(ctx context.Context, in TechnicianInput) (*TechnicianView, error) {
	technician := &models.Technician{
		ID:   uuid.NewString(),
		Code: strings.TrimSpace(in.Code),
		Name: strings.TrimSpace(in.Name),
	}
	if technician.Code == "" {
		return nil, validation("code", "is required")
	}
	if technician.Name == "" {
		return nil, validation("name", "is required")
	}
	initials, err := normaliseInitials(in.Initials, technician.Name)
	if err != nil {
		return nil, err
	}
	technician.Initials = initials

	if err := s.repos.Technicians.Create(ctx, technician); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, validation("code", "%q already exists", technician.Code)
		}
		return nil, persistence("create technician", err)
	}

	view := toView(technician)
	return &view, nil
}

// normaliseInitials upper-cases the given initials, defaulting to the first
// letter of the name.
func normaliseInitials(initials, name string) (string, error) {
	initials = strings.ToUpper(strings.TrimSpace(initials))
	if initials == "" {
		r, _ := utf8.DecodeRuneInString(name)
		initials = strings.ToUpper(string(r))
	}
	if utf8.RuneCountInString(initials) > 2 {
		return "", validation("initials", "must be at most 2 letters")
	}
	return initials, nil
}

// List returns the directory ordered by code.
func (s *TechnicianService) List(ctx context.Context) ([]TechnicianView, error) {
	technicians, err := s.repos.Technicians.List(ctx)
	if err != nil {
		return nil, persistence("list technicians", err)
	}

	views := make([]TechnicianView, 0, len(technicians))
	for _, t := range technicians {
		views = append(views, toView(t))
	}
	return views, nil
}

// Update edits name and initials; the code is immutable.
func (s *TechnicianService) Update(ctx context.Context, id string, in TechnicianInput) (*TechnicianView, error) {
	technician, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		technician.Name = name
	}
	if strings.TrimSpace(in.Initials) != "" {
		initials, err := normaliseInitials(in.Initials, technician.Name)
		if err != nil {
			return nil, err
		}
		technician.Initials = initials
	}

	if err := s.repos.Technicians.Update(ctx, technician); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Entity: "technician", ID: id}
		}
		return nil, persistence("update technician", err)
	}

	view := toView(technician)
	return &view, nil
}

// Delete removes the technician after moving their active memberships to history.
func (s *TechnicianService) Delete(ctx context.Context, id string) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}

	now := s.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		removed, err := s.repos.Memberships.WithTx(tx).RemoveTechnician(ctx, id, now)
		if err != nil {
			return err
		}
		if err := s.repos.Technicians.WithTx(tx).Delete(ctx, id); err != nil {
			return err
		}
		s.logger.WithFields(logrus.Fields{
			"id":      id,
			"retired": removed,
		}).Info("Technician removed")
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Entity: "technician", ID: id}
	}
	if err != nil {
		return persistence("delete technician", err)
	}
	return nil
}

// Jobs lists the projects the technician is an active member of. ref may be
// the technician id or code.
func (s *TechnicianService) Jobs(ctx context.Context, ref string) ([]Job, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, validation("technician", "is required")
	}

	technician, err := s.repos.Technicians.GetByID(ctx, ref)
	if err != nil {
		return nil, persistence("get technician", err)
	}
	if technician == nil {
		if technician, err = s.repos.Technicians.GetByCode(ctx, ref); err != nil {
			return nil, persistence("get technician", err)
		}
	}
	if technician == nil {
		return nil, &NotFoundError{Entity: "technician", ID: ref}
	}

	own, err := s.repos.Memberships.ListActiveByTechnician(ctx, technician.ID)
	if err != nil {
		return nil, persistence("list memberships", err)
	}
	if len(own) == 0 {
		return []Job{}, nil
	}

	projectIDs := make([]string, 0, len(own))
	for _, m := range own {
		projectIDs = append(projectIDs, m.ProjectID)
	}
	projects, err := s.repos.Projects.ListByIDs(ctx, projectIDs)
	if err != nil {
		return nil, persistence("list projects", err)
	}
	crew, err := s.repos.Memberships.ListActive(ctx, projectIDs)
	if err != nil {
		return nil, persistence("list memberships", err)
	}

	crewByProject := make(map[string][]models.Membership, len(projectIDs))
	crewIDs := make([]string, 0, len(crew))
	for _, m := range crew {
		crewByProject[m.ProjectID] = append(crewByProject[m.ProjectID], m)
		crewIDs = append(crewIDs, m.TechnicianID)
	}
	names, err := s.repos.Technicians.ListByIDs(ctx, crewIDs)
	if err != nil {
		return nil, persistence("list technicians", err)
	}

	jobs := make([]Job, 0, len(projectIDs))
	for _, id := range projectIDs {
		p := projects[id]
		if p == nil {
			continue
		}

		members := make([]CrewMember, 0, len(crewByProject[id]))
		for _, m := range crewByProject[id] {
			name := "Teknisi"
			if t := names[m.TechnicianID]; t != nil {
				name = t.Name
			}
			members = append(members, CrewMember{Name: name, IsLeader: m.IsLeader})
		}

		jobs = append(jobs, Job{
			ID:                  p.ID,
			JobID:               p.JobID,
			Name:                p.Name,
			Location:            p.Location,
			Status:              JobStatus(p),
			Progress:            CrewProgress(len(members), p.SigmaTeknisi),
			AssignedTechnicians: members,
		})
	}
	return jobs, nil
}

func (s *TechnicianService) load(ctx context.Context, id string) (*models.Technician, error) {
	technician, err := s.repos.Technicians.GetByID(ctx, id)
	if err != nil {
		return nil, persistence("get technician", err)
	}
	if technician == nil {
		return nil, &NotFoundError{Entity: "technician", ID: id}
	}
	return technician, nil
}
