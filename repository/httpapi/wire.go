package httpapi

import (
	"strings"
	"time"

	"github.com/fastygo/taskcache/domain"
)

// wireTask is the remote store's task shape. Timestamps arrive either as
// RFC3339 or as naive ISO-8601 in UTC, so they are decoded by hand.
type wireTask struct {
	ID          string   `json:"id"`
	MongoID     string   `json:"_id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Facility    string   `json:"facility"`
	AssignedTo  string   `json:"assigned_to"`
	Priority    string   `json:"priority"`
	Status      string   `json:"status"`
	DueDate     string   `json:"due_date"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func (w wireTask) toDomain() domain.Task {
	id := w.ID
	if id == "" {
		id = w.MongoID
	}
	return domain.Task{
		ID:          domain.AuthoritativeID(id),
		Title:       w.Title,
		Description: w.Description,
		Facility:    w.Facility,
		AssignedTo:  w.AssignedTo,
		Priority:    domain.Priority(w.Priority),
		Status:      domain.Status(w.Status),
		DueAt:       parseTime(w.DueDate),
		Tags:        w.Tags,
		CreatedAt:   parseTime(w.CreatedAt),
		UpdatedAt:   parseTime(w.UpdatedAt),
	}
}

type wireDraft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DueDate     string   `json:"due_date"`
	Priority    string   `json:"priority"`
	Status      string   `json:"status"`
	AssignedTo  string   `json:"assigned_to,omitempty"`
	Facility    string   `json:"facility,omitempty"`
	Time        string   `json:"time,omitempty"`
	Tags        []string `json:"tags"`
}

func draftToWire(d domain.TaskDraft) wireDraft {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return wireDraft{
		Title:       d.Title,
		Description: d.Description,
		DueDate:     formatTime(d.DueAt),
		Priority:    priorityToken(d.Priority),
		Status:      statusToken(d.Status),
		AssignedTo:  d.AssignedTo,
		Facility:    d.Facility,
		Time:        d.DueAt.Format("15:04"),
		Tags:        tags,
	}
}

type wirePatch struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	DueDate     *string  `json:"due_date,omitempty"`
	Priority    *string  `json:"priority,omitempty"`
	Status      *string  `json:"status,omitempty"`
	AssignedTo  *string  `json:"assigned_to,omitempty"`
	Facility    *string  `json:"facility,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

func patchToWire(p domain.TaskPatch) wirePatch {
	w := wirePatch{
		Title:       p.Title,
		Description: p.Description,
		AssignedTo:  p.AssignedTo,
		Facility:    p.Facility,
		Tags:        p.Tags,
	}
	if p.DueAt != nil {
		v := formatTime(*p.DueAt)
		w.DueDate = &v
	}
	if p.Priority != nil {
		v := priorityToken(*p.Priority)
		w.Priority = &v
	}
	if p.Status != nil {
		v := statusToken(*p.Status)
		w.Status = &v
	}
	return w
}

type wireUser struct {
	ID       string `json:"id"`
	MongoID  string `json:"_id,omitempty"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

func (w wireUser) toDomain() domain.User {
	id := w.ID
	if id == "" {
		id = w.MongoID
	}
	return domain.User{ID: id, FullName: w.FullName, Email: w.Email}
}

// the remote store spells its enums in snake case
func statusToken(s domain.Status) string {
	switch s {
	case domain.StatusInProgress:
		return "in_progress"
	default:
		return strings.ToLower(string(s))
	}
}

func priorityToken(p domain.Priority) string {
	return strings.ToLower(string(p))
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseTime(v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
