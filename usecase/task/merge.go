package task

import (
	"github.com/fastygo/taskcache/domain"
	"github.com/fastygo/taskcache/internal/normalize"
)

// Merge reconciles the cached collection with a remote snapshot.
//
// Local records with a pending id are kept as they are. Every other record is
// keyed by its authoritative id; the remote copy replaces the local one for
// every id the remote returns. Authoritative records keep their first-seen
// position (local order, then new remote ids in remote order) and pending
// records follow. Records without an id cannot be addressed and are dropped.
// A manual status override is local state: it survives the replacement as
// long as the remote copy still carries the overridden status.
func Merge(local, remote []domain.Task) []domain.Task {
	local = normalize.Tasks(local)
	remote = normalize.Tasks(remote)

	var pending []domain.Task
	order := make([]string, 0, len(local)+len(remote))
	byID := make(map[string]domain.Task, len(local)+len(remote))

	put := func(t domain.Task) {
		key := t.ID.String()
		if key == "" {
			return
		}
		if _, ok := byID[key]; !ok {
			order = append(order, key)
		}
		byID[key] = t
	}

	for _, t := range local {
		if t.ID.IsPending() {
			pending = append(pending, t)
			continue
		}
		put(t)
	}
	for _, t := range remote {
		if prev, ok := byID[t.ID.String()]; ok && prev.StatusOverride && prev.Status == t.Status {
			t.StatusOverride = true
		}
		put(t)
	}

	merged := make([]domain.Task, 0, len(order)+len(pending))
	for _, key := range order {
		merged = append(merged, byID[key])
	}
	return append(merged, pending...)
}
