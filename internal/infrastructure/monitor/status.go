package monitor

import "time"

type Status struct {
	Remote     bool      `json:"remote"`
	Redis      *bool     `json:"redis,omitempty"`
	Cache      bool      `json:"cache"`
	Tasks      int       `json:"tasks"`
	Pending    int       `json:"pending"`
	LastSync   time.Time `json:"last_sync"`
	Breaker    string    `json:"breaker,omitempty"`
	RemoteErr  string    `json:"remote_error,omitempty"`
	LastCheck  time.Time `json:"last_check"`
	OnlineFrom time.Time `json:"online_since,omitempty"`
}
