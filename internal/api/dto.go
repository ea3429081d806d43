package api

import (
	"fmt"

	"crew-scheduler/internal/clock"
	"crew-scheduler/internal/service"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New()
	err := v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := clock.ParseDate(fl.Field().String())
		return err == nil
	})
	if err != nil {
		panic(fmt.Sprintf("register isodate validation: %v", err))
	}
	return v
}

type assignmentItemRequest struct {
	ProjectID       string `json:"projectId" validate:"required"`
	TechnicianID    string `json:"technicianId" validate:"required"`
	IsSelected      *bool  `json:"isSelected"`
	IsProjectLeader bool   `json:"isProjectLeader"`
}

type submitAssignmentsRequest struct {
	Date        string                  `json:"date" validate:"required,isodate"`
	ProjectIDs  []string                `json:"projectIds" validate:"omitempty,dive,required"`
	Assignments []assignmentItemRequest `json:"assignments" validate:"dive"`
}

func (r submitAssignmentsRequest) items() []service.AssignmentItem {
	items := make([]service.AssignmentItem, 0, len(r.Assignments))
	for _, a := range r.Assignments {
		items = append(items, service.AssignmentItem{
			ProjectID:    a.ProjectID,
			TechnicianID: a.TechnicianID,
			IsSelected:   a.IsSelected,
			IsLeader:     a.IsProjectLeader,
		})
	}
	return items
}

type createProjectRequest struct {
	JobID        string `json:"jobId" validate:"omitempty,max=40"`
	Name         string `json:"namaProject" validate:"required,max=200"`
	Location     string `json:"lokasi" validate:"max=200"`
	SalesName    string `json:"namaSales" validate:"max=120"`
	PresalesName string `json:"namaPresales" validate:"max=120"`
	StartDate    string `json:"tanggalMulaiProject" validate:"required,isodate"`
	Deadline     string `json:"tanggalDeadlineProject" validate:"required,isodate"`
	SigmaManDays int    `json:"sigmaManDays" validate:"gte=0"`
	SigmaHari    int    `json:"sigmaHari" validate:"gte=0"`
	SigmaTeknisi int    `json:"sigmaTeknisi" validate:"gte=0"`
}

func (r createProjectRequest) input() service.ProjectInput {
	return service.ProjectInput{
		JobID:        r.JobID,
		Name:         r.Name,
		Location:     r.Location,
		SalesName:    r.SalesName,
		PresalesName: r.PresalesName,
		StartDate:    clock.MustParseDate(r.StartDate),
		Deadline:     clock.MustParseDate(r.Deadline),
		SigmaTeknisi: r.SigmaTeknisi,
		SigmaHari:    r.SigmaHari,
		SigmaManDays: r.SigmaManDays,
	}
}

type setStatusRequest struct {
	ProjectID string `json:"projectId" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=unassigned ongoing pending completed"`
	Reason    string `json:"reason"`
}

type createTechnicianRequest struct {
	Code     string `json:"code" validate:"required,max=32"`
	Name     string `json:"name" validate:"required,max=120"`
	Initials string `json:"initials" validate:"omitempty,max=2"`
}

type updateTechnicianRequest struct {
	Name     string `json:"name" validate:"omitempty,max=120"`
	Initials string `json:"initials" validate:"omitempty,max=2"`
}

type advanceDayRequest struct {
	Date string `json:"date" validate:"omitempty,isodate"`
}
