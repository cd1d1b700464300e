// Package normalize maps loosely encoded task fields onto their canonical values.
package normalize

import (
	"strings"

	"github.com/fastygo/taskcache/domain"
)

var statuses = map[string]domain.Status{
	"pending":     domain.StatusPending,
	"in progress": domain.StatusInProgress,
	"in_progress": domain.StatusInProgress,
	"in-progress": domain.StatusInProgress,
	"completed":   domain.StatusCompleted,
	"complete":    domain.StatusCompleted,
	"missed":      domain.StatusMissed,
}

var priorities = map[string]domain.Priority{
	"low":    domain.PriorityLow,
	"medium": domain.PriorityMedium,
	"high":   domain.PriorityHigh,
}

// Normalize returns the canonical status and priority. Unknown values are
// returned unchanged; empty values default to Pending and Medium.
func Normalize(rawStatus, rawPriority string) (domain.Status, domain.Priority) {
	return Status(rawStatus), Priority(rawPriority)
}

func Status(raw string) domain.Status {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return domain.StatusPending
	}
	if s, ok := statuses[key]; ok {
		return s
	}
	return domain.Status(raw)
}

func Priority(raw string) domain.Priority {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return domain.PriorityMedium
	}
	if p, ok := priorities[key]; ok {
		return p
	}
	return domain.Priority(raw)
}

// Task returns t with canonical status and priority.
func Task(t domain.Task) domain.Task {
	t.Status, t.Priority = Normalize(string(t.Status), string(t.Priority))
	return t
}

// Tasks normalizes every record into a new slice.
func Tasks(in []domain.Task) []domain.Task {
	out := make([]domain.Task, len(in))
	for i, t := range in {
		out[i] = Task(t)
	}
	return out
}
