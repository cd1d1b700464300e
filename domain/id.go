package domain

import (
	"encoding/json"
	"strings"
)

// PendingPrefix tags identifiers that were allocated locally and have not
// been confirmed by the remote store.
const PendingPrefix = "pending-"

// IsPendingID is a pure predicate over the string encoding of an id.
func IsPendingID(id string) bool {
	return strings.HasPrefix(id, PendingPrefix) && len(id) > len(PendingPrefix)
}

// TaskID is either Authoritative(value) or Pending(token). The string form is
// only used at persistence and transport edges.
type TaskID struct {
	value   string
	pending bool
}

// AuthoritativeID wraps an id assigned by the remote store.
func AuthoritativeID(id string) TaskID {
	return TaskID{value: id}
}

// PendingID wraps a locally allocated placeholder token.
func PendingID(token string) TaskID {
	return TaskID{value: token, pending: true}
}

// ParseTaskID decodes the string encoding.
func ParseTaskID(s string) TaskID {
	if IsPendingID(s) {
		return PendingID(strings.TrimPrefix(s, PendingPrefix))
	}
	return AuthoritativeID(s)
}

func (id TaskID) IsPending() bool { return id.pending }

func (id TaskID) IsZero() bool { return id.value == "" }

// Value returns the authoritative id or the pending token, without the tag.
func (id TaskID) Value() string { return id.value }

func (id TaskID) String() string {
	if id.pending {
		return PendingPrefix + id.value
	}
	return id.value
}

func (id TaskID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *TaskID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*id = ParseTaskID(s)
	return nil
}
