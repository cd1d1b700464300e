package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownRunsHooksInReverseAndJoinsErrors(t *testing.T) {
	m := New(time.Second, nil)
	var order []string
	errCache := errors.New("cache close failed")

	m.Register("cache", func(context.Context) error {
		order = append(order, "cache")
		return errCache
	})
	m.RegisterStop("sweeper", func(context.Context) { order = append(order, "sweeper") })
	m.Register("http", func(context.Context) error {
		order = append(order, "http")
		return nil
	})
	m.Register("ignored", nil)

	err := m.Shutdown(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errCache)
	assert.Equal(t, []string{"http", "sweeper", "cache"}, order)

	assert.NoError(t, m.Shutdown(context.Background()))
	assert.Len(t, order, 3)
}

func TestShutdownHooksSeeDeadline(t *testing.T) {
	m := New(50*time.Millisecond, nil)
	m.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := m.Shutdown(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSignalContextFollowsParent(t *testing.T) {
	m := New(time.Second, nil)
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := m.SignalContext(parent)
	defer stop()

	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("signal context not cancelled with parent")
	}
}
