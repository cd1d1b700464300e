package domain

import (
	"encoding/json"
	"time"
)

// Warning reports a remote failure that was absorbed by a local fallback.
// The local mutation it accompanies has already succeeded.
type Warning struct {
	Op     string    `json:"op"`
	TaskID string    `json:"task_id,omitempty"`
	Err    error     `json:"-"`
	At     time.Time `json:"at"`
}

func (w Warning) Error() string {
	if w.Err == nil {
		return w.Op
	}
	return w.Op + ": " + w.Err.Error()
}

func (w Warning) Unwrap() error { return w.Err }

func (w Warning) MarshalJSON() ([]byte, error) {
	type alias Warning
	return json.Marshal(struct {
		alias
		Message string `json:"message"`
	}{alias: alias(w), Message: w.Error()})
}
