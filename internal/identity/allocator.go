// Package identity allocates placeholder ids for tasks the remote store has
// not confirmed yet.
package identity

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/taskcache/domain"
)

// Allocator hands out pending ids. Tokens are UUIDv7 so they sort by creation
// time and stay distinct across restarts.
type Allocator struct {
	seq   atomic.Uint64
	newV7 func() (uuid.UUID, error)
	now   func() time.Time
}

func New() *Allocator {
	return &Allocator{newV7: uuid.NewV7, now: time.Now}
}

// Allocate returns a fresh pending id.
func (a *Allocator) Allocate() domain.TaskID {
	n := a.seq.Add(1)
	id, err := a.newV7()
	if err != nil {
		// entropy failure; clock plus counter keeps ids distinct
		return domain.PendingID(fmt.Sprintf("%x-%d", a.now().UnixNano(), n))
	}
	return domain.PendingID(id.String())
}

// Allocated returns how many ids were handed out since start.
func (a *Allocator) Allocated() uint64 {
	return a.seq.Load()
}

// IsPending reports whether id is a placeholder, from its shape alone.
func IsPending(id string) bool {
	return domain.IsPendingID(id)
}
