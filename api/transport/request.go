package transport

import (
	"strings"
	"time"

	"github.com/fastygo/taskcache/domain"
)

// TaskRequest is the body of POST /api/v1/tasks. due_date is either a full
// RFC3339 instant or a calendar date combined with time (HH:MM).
type TaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Facility    string   `json:"facility"`
	AssignedTo  string   `json:"assigned_to"`
	Priority    string   `json:"priority"`
	Status      string   `json:"status"`
	DueDate     string   `json:"due_date"`
	Time        string   `json:"time"`
	Tags        []string `json:"tags"`
}

// Draft converts the request into a task draft, resolving wall-clock dates in loc.
func (r TaskRequest) Draft(loc *time.Location) (domain.TaskDraft, error) {
	draft := domain.TaskDraft{
		Title:       r.Title,
		Description: r.Description,
		Facility:    r.Facility,
		AssignedTo:  r.AssignedTo,
		Priority:    domain.Priority(r.Priority),
		Status:      domain.Status(r.Status),
		Tags:        r.Tags,
	}
	if strings.TrimSpace(r.DueDate) == "" {
		// left zero so validation reports it with the other missing fields
		return draft, nil
	}
	due, err := domain.MergeDue(r.DueDate, r.Time, loc)
	if err != nil {
		return draft, err
	}
	draft.DueAt = due
	return draft, nil
}

// TaskPatchRequest is the body of PUT /api/v1/tasks/{id}. Absent fields are
// left unchanged.
type TaskPatchRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Facility    *string   `json:"facility"`
	AssignedTo  *string   `json:"assigned_to"`
	Priority    *string   `json:"priority"`
	Status      *string   `json:"status"`
	DueDate     *string   `json:"due_date"`
	Time        *string   `json:"time"`
	Tags        *[]string `json:"tags"`
}

func (r TaskPatchRequest) Patch(loc *time.Location) (domain.TaskPatch, error) {
	patch := domain.TaskPatch{
		Title:       r.Title,
		Description: r.Description,
		Facility:    r.Facility,
		AssignedTo:  r.AssignedTo,
	}
	if r.Priority != nil {
		p := domain.Priority(*r.Priority)
		patch.Priority = &p
	}
	if r.Status != nil {
		s := domain.Status(*r.Status)
		patch.Status = &s
	}
	if r.Tags != nil {
		patch.Tags = append([]string{}, (*r.Tags)...)
	}
	if r.DueDate != nil {
		clock := ""
		if r.Time != nil {
			clock = *r.Time
		}
		due, err := domain.MergeDue(*r.DueDate, clock, loc)
		if err != nil {
			return patch, err
		}
		patch.DueAt = &due
	}
	return patch, nil
}
