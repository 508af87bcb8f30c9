package rebind

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nghyane/stitch-sdk/internal/stitcherr"
)

type recordingBinder struct {
	name   string
	mu     sync.Mutex
	events []Event
	log    *[]string
	onCall func(ctx context.Context)
}

func (b *recordingBinder) OnRebindEvent(ctx context.Context, ev Event) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	if b.log != nil {
		*b.log = append(*b.log, b.name)
	}
	b.mu.Unlock()
	if b.onCall != nil {
		b.onCall(ctx)
	}
}

func (b *recordingBinder) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.events...)
}

func TestRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	b := &recordingBinder{}

	assert.True(t, r.Register(b))
	assert.False(t, r.Register(b))
	assert.Equal(t, 1, r.Len())

	require.NoError(t, r.Broadcast(context.Background(), Event{Kind: LoggedIn}))
	assert.Len(t, b.Events(), 1)

	assert.True(t, r.Unregister(b))
	assert.False(t, r.Unregister(b))
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.Register(nil))
}

func TestBroadcastOrder(t *testing.T) {
	r := NewRegistry()
	var order []string
	a := &recordingBinder{name: "a", log: &order}
	b := &recordingBinder{name: "b", log: &order}
	c := &recordingBinder{name: "c", log: &order}
	r.Register(a)
	r.Register(b)
	r.Register(c)
	r.Unregister(b)
	r.Register(b)

	require.NoError(t, r.Broadcast(context.Background(), Event{Kind: TokenRefreshed, UserID: "u1"}))
	assert.Equal(t, []string{"a", "c", "b"}, order)
	assert.Equal(t, []Event{{Kind: TokenRefreshed, UserID: "u1"}}, a.Events())
}

func TestBroadcastAbortsOnReentrantTransition(t *testing.T) {
	r := NewRegistry()
	var order []string
	first := &recordingBinder{name: "first", log: &order}
	var rejectErr error
	offender := &recordingBinder{name: "offender", log: &order, onCall: func(ctx context.Context) {
		assert.True(t, InBroadcast(ctx))
		rejectErr = Reject(ctx, "logout")
	}}
	last := &recordingBinder{name: "last", log: &order}
	r.Register(first)
	r.Register(offender)
	r.Register(last)

	err := r.Broadcast(context.Background(), Event{Kind: LoggedIn})
	var reentrant *stitcherr.ReentrantRebindError
	require.True(t, errors.As(err, &reentrant))
	assert.Equal(t, "logout", reentrant.Operation)
	assert.Equal(t, rejectErr, err)
	assert.Equal(t, []string{"first", "offender"}, order)
	assert.Empty(t, last.Events())
}

func TestNestedBroadcastSharesAbort(t *testing.T) {
	inner := NewRegistry()
	inner.Register(&recordingBinder{onCall: func(ctx context.Context) {
		_ = Reject(ctx, "login")
	}})

	outer := NewRegistry()
	var innerErr error
	outer.Register(&recordingBinder{onCall: func(ctx context.Context) {
		innerErr = inner.Broadcast(ctx, Event{Kind: LoggedOut})
	}})
	skipped := &recordingBinder{}
	outer.Register(skipped)

	err := outer.Broadcast(context.Background(), Event{Kind: LoggedOut})
	require.Error(t, err)
	require.Error(t, innerErr)
	assert.Empty(t, skipped.Events())
}

func TestRejectOutsideBroadcast(t *testing.T) {
	assert.NoError(t, Reject(context.Background(), "login"))
	assert.False(t, InBroadcast(context.Background()))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "logged_in", LoggedIn.String())
	assert.Equal(t, "invalidated", Invalidated.String())
	assert.Equal(t, "unknown", Kind(0).String())
}

func TestDeliveringDuringBroadcast(t *testing.T) {
	r := NewRegistry()
	var during bool
	r.Register(&recordingBinder{name: "a", onCall: func(context.Context) {
		during = r.Delivering()
	}})

	assert.False(t, r.Delivering())
	require.NoError(t, r.Broadcast(context.Background(), Event{Kind: LoggedIn}))
	assert.True(t, during)
	assert.False(t, r.Delivering())
}
