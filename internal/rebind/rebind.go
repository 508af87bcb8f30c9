// Package rebind notifies dependent clients of session transitions.
package rebind

import (
	"context"
	"sync"
	"sync/atomic"

	log "github.com/nghyane/stitch-sdk/internal/logging"
	"github.com/nghyane/stitch-sdk/internal/stitcherr"
)

// Kind is the session transition that caused an event.
type Kind int

const (
	LoggedIn Kind = iota + 1
	LoggedOut
	TokenRefreshed
	Invalidated
)

func (k Kind) String() string {
	switch k {
	case LoggedIn:
		return "logged_in"
	case LoggedOut:
		return "logged_out"
	case TokenRefreshed:
		return "token_refreshed"
	case Invalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

// Event describes one transition. ProviderName and UserID identify the
// session the transition applied to.
type Event struct {
	Kind         Kind
	ProviderName string
	UserID       string
}

// Binder is implemented by anything that must rebuild itself when the
// session changes. OnRebindEvent must pass ctx to any call it makes back
// into the auth layer; session transitions started from it are rejected.
//
// Binders are compared by identity, so implementations should be pointers.
type Binder interface {
	OnRebindEvent(ctx context.Context, ev Event)
}

type broadcastKey struct{}

type broadcastState struct {
	aborted atomic.Pointer[stitcherr.ReentrantRebindError]
}

// Reject returns a *stitcherr.ReentrantRebindError when ctx belongs to a
// broadcast in progress, and marks that broadcast aborted.
func Reject(ctx context.Context, operation string) error {
	st, ok := ctx.Value(broadcastKey{}).(*broadcastState)
	if !ok {
		return nil
	}
	err := &stitcherr.ReentrantRebindError{Operation: operation}
	st.aborted.CompareAndSwap(nil, err)
	return err
}

// InBroadcast reports whether ctx was handed to a binder by Broadcast.
func InBroadcast(ctx context.Context) bool {
	_, ok := ctx.Value(broadcastKey{}).(*broadcastState)
	return ok
}

// Registry is an ordered set of binders.
type Registry struct {
	mu         sync.Mutex
	binders    []Binder
	delivering atomic.Int32
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds b. Registering the same binder again is a no-op and
// reports false.
func (r *Registry) Register(b Binder) bool {
	if b == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.binders {
		if existing == b {
			return false
		}
	}
	r.binders = append(r.binders, b)
	return true
}

// Unregister removes b and reports whether it was registered.
func (r *Registry) Unregister(b Binder) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.binders {
		if existing == b {
			r.binders = append(r.binders[:i:i], r.binders[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.binders)
}

// Delivering reports whether a Broadcast on r is running.
func (r *Registry) Delivering() bool {
	return r.delivering.Load() > 0
}

// Clear drops every binder.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.binders = nil
}

// Broadcast delivers ev to every binder registered when the call began, in
// registration order, on the calling goroutine. If a binder attempts a
// session transition the remaining binders are skipped and the
// *stitcherr.ReentrantRebindError is returned. Nested broadcasts share the
// outer broadcast's abort state.
func (r *Registry) Broadcast(ctx context.Context, ev Event) error {
	r.mu.Lock()
	targets := make([]Binder, len(r.binders))
	copy(targets, r.binders)
	r.mu.Unlock()

	r.delivering.Add(1)
	defer r.delivering.Add(-1)

	st, nested := ctx.Value(broadcastKey{}).(*broadcastState)
	if !nested {
		st = &broadcastState{}
		ctx = context.WithValue(ctx, broadcastKey{}, st)
	}

	for i, b := range targets {
		b.OnRebindEvent(ctx, ev)
		if err := st.aborted.Load(); err != nil {
			log.WithFields(log.Fields{
				"event":     ev.Kind.String(),
				"delivered": i + 1,
				"skipped":   len(targets) - i - 1,
			}).Warnf("rebind broadcast aborted: %v", err)
			return err
		}
	}
	return nil
}
