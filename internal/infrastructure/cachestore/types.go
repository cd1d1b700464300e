package cachestore

import "time"

// Info summarises the persisted collection.
type Info struct {
	Tasks     int       `json:"tasks"`
	Pending   int       `json:"pending"`
	LastSync  time.Time `json:"last_sync"`
	LastWrite time.Time `json:"last_write"`
}
