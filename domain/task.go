package domain

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a task. Values outside the canonical set
// are carried verbatim.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusMissed     Status = "Missed"
)

// IsOpen reports whether the scheduler may still move the task to Missed.
func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusInProgress
}

// IsTerminal reports whether the automatic path never leaves this status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusMissed
}

// Priority is the urgency of a task. Values outside the canonical set are
// carried verbatim.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Rank orders priorities for sorting; unknown values sort first.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	default:
		return 0
	}
}

// Task represents a facility-management work item.
type Task struct {
	ID             TaskID    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Facility       string    `json:"facility"`
	AssignedTo     string    `json:"assigned_to,omitempty"`
	Priority       Priority  `json:"priority"`
	Status         Status    `json:"status"`
	DueAt          time.Time `json:"due_date"`
	Tags           []string  `json:"tags,omitempty"`
	StatusOverride bool      `json:"status_override,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsPending reports whether the task has not been confirmed by the remote store yet.
func (t *Task) IsPending() bool {
	return t != nil && t.ID.IsPending()
}

// IsOverdue reports whether the due instant lies strictly before now.
func (t *Task) IsOverdue(now time.Time) bool {
	return t != nil && !t.DueAt.IsZero() && t.DueAt.Before(now)
}

// Draft converts the task back into the shape accepted by a remote create.
func (t *Task) Draft() TaskDraft {
	return TaskDraft{
		Title:       t.Title,
		Description: t.Description,
		Facility:    t.Facility,
		AssignedTo:  t.AssignedTo,
		Priority:    t.Priority,
		Status:      t.Status,
		DueAt:       t.DueAt,
		Tags:        append([]string(nil), t.Tags...),
	}
}

// Clone returns a copy that shares no slices with the receiver.
func (t Task) Clone() Task {
	if t.Tags != nil {
		t.Tags = append([]string(nil), t.Tags...)
	}
	return t
}

// TaskDraft is the user-supplied content of a task that does not exist yet.
type TaskDraft struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Facility    string    `json:"facility"`
	AssignedTo  string    `json:"assigned_to"`
	Priority    Priority  `json:"priority"`
	Status      Status    `json:"status"`
	DueAt       time.Time `json:"due_date"`
	Tags        []string  `json:"tags"`
}

// Validate rejects drafts that miss required fields. An empty allowed list
// accepts any non-empty facility.
func (d TaskDraft) Validate(facilities []string) error {
	var fields []string
	if strings.TrimSpace(d.Title) == "" {
		fields = append(fields, "title")
	}
	if d.DueAt.IsZero() {
		fields = append(fields, "due_date")
	}
	if strings.TrimSpace(d.Facility) == "" || !allowed(facilities, d.Facility) {
		fields = append(fields, "facility")
	}
	if strings.TrimSpace(d.AssignedTo) == "" {
		fields = append(fields, "assigned_to")
	}
	if len(fields) > 0 {
		return NewValidationError(fields...)
	}
	return nil
}

// TaskPatch carries a partial update; nil fields are left untouched.
type TaskPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Facility    *string    `json:"facility,omitempty"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	DueAt       *time.Time `json:"due_date,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Facility == nil &&
		p.AssignedTo == nil && p.Priority == nil && p.Status == nil &&
		p.DueAt == nil && p.Tags == nil
}

// Validate rejects patches that would break a required field.
func (p TaskPatch) Validate(facilities []string) error {
	var fields []string
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		fields = append(fields, "title")
	}
	if p.DueAt != nil && p.DueAt.IsZero() {
		fields = append(fields, "due_date")
	}
	if p.Facility != nil && (strings.TrimSpace(*p.Facility) == "" || !allowed(facilities, *p.Facility)) {
		fields = append(fields, "facility")
	}
	if len(fields) > 0 {
		return NewValidationError(fields...)
	}
	return nil
}

// Apply writes the patch onto the task. A status change that moves a task out
// of Missed marks it as manually overridden; a new due date re-arms the
// scheduler.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Facility != nil {
		t.Facility = *p.Facility
	}
	if p.AssignedTo != nil {
		t.AssignedTo = *p.AssignedTo
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueAt != nil && !p.DueAt.Equal(t.DueAt) {
		t.DueAt = *p.DueAt
		t.StatusOverride = false
	}
	if p.Status != nil {
		if t.Status == StatusMissed && *p.Status != StatusMissed {
			t.StatusOverride = true
		}
		if *p.Status == StatusMissed {
			t.StatusOverride = false
		}
		t.Status = *p.Status
	}
	if p.Tags != nil {
		t.Tags = append([]string(nil), p.Tags...)
	}
}

func allowed(set []string, value string) bool {
	if len(set) == 0 {
		return true
	}
	for _, v := range set {
		if v == value {
			return true
		}
	}
	return false
}
