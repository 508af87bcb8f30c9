// Package auth owns the session of one app client. It logs in and out,
// attaches session proof to outgoing requests, refreshes the access token
// when the server rejects it and tells bound clients about every change.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/nghyane/stitch-sdk/internal/auth/credential"
	"github.com/nghyane/stitch-sdk/internal/auth/providers"
	"github.com/nghyane/stitch-sdk/internal/auth/session"
	log "github.com/nghyane/stitch-sdk/internal/logging"
	"github.com/nghyane/stitch-sdk/internal/rebind"
	"github.com/nghyane/stitch-sdk/internal/request"
	"github.com/nghyane/stitch-sdk/internal/routes"
	"github.com/nghyane/stitch-sdk/internal/stitcherr"
)

// DefaultRefreshSkew is how early an expiring JWT access token is refreshed.
const DefaultRefreshSkew = 10 * time.Second

// Manager is the authentication owner. All session transitions go through
// it and are serialized by one lock; each transition's state change and its
// rebind broadcast happen inside the same critical section.
type Manager struct {
	requester request.Requester
	routes    routes.AuthRoutes
	state     *session.State
	registry  *rebind.Registry

	login    *providers.LoginClient
	link     *providers.LoginClient
	sessions *providers.SessionClient

	device      providers.DeviceInfo
	refreshSkew time.Duration
	now         func() time.Time

	transitionMu sync.Mutex
	refreshGroup singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithDevice sets the device details sent on login.
func WithDevice(d providers.DeviceInfo) Option {
	return func(m *Manager) { m.device = d }
}

// WithRefreshSkew sets how early an expiring access token is refreshed.
// Zero disables proactive refresh margins but still refreshes expired tokens.
func WithRefreshSkew(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.refreshSkew = d
		}
	}
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRegistry shares an existing binder registry.
func WithRegistry(r *rebind.Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// NewManager builds a logged-out manager sending through requester.
func NewManager(requester request.Requester, r routes.AuthRoutes, opts ...Option) *Manager {
	m := &Manager{
		requester:   requester,
		routes:      r,
		state:       session.New(),
		registry:    rebind.NewRegistry(),
		refreshSkew: DefaultRefreshSkew,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.login = providers.NewLoginClient(requester, r)
	m.link = providers.NewLoginClient(m.Requester(), r)
	m.sessions = providers.NewSessionClient(requester, r)
	return m
}

// Session returns a snapshot of the current session.
func (m *Manager) Session() session.Snapshot {
	return m.state.Snapshot()
}

func (m *Manager) IsLoggedIn() bool {
	return m.state.IsLoggedIn()
}

// TokenSource exposes the current access token as an oauth2.TokenSource.
func (m *Manager) TokenSource() oauth2.TokenSource {
	return m.state
}

// Bind registers b for rebind events.
func (m *Manager) Bind(b rebind.Binder) bool {
	return m.registry.Register(b)
}

// Unbind removes b.
func (m *Manager) Unbind(b rebind.Binder) bool {
	return m.registry.Unregister(b)
}

func (m *Manager) Registry() *rebind.Registry {
	return m.registry
}

// UserPasswordClient returns the registration client for a user/password
// provider. An empty name selects the default provider.
func (m *Manager) UserPasswordClient(providerName string) *providers.UserPasswordClient {
	return providers.NewUserPasswordClient(providerName, m.requester, m.routes)
}

// UserAPIKeyClient returns the API key client of the logged-in user.
func (m *Manager) UserAPIKeyClient() *providers.UserAPIKeyClient {
	return providers.NewUserAPIKeyClient(m, m.routes)
}

// Close tears the session down without contacting the server or notifying
// binders, and drops every binder.
func (m *Manager) Close() {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()
	m.state.Clear()
	m.registry.Clear()
}

// transitionLocked applies mutate and, if it produced an event, broadcasts
// it. The caller holds transitionMu.
func (m *Manager) transitionLocked(ctx context.Context, mutate func() (rebind.Event, bool)) error {
	ev, fire := mutate()
	if !fire {
		return nil
	}
	log.WithFields(log.Fields{
		"event":    ev.Kind.String(),
		"provider": ev.ProviderName,
		"user_id":  ev.UserID,
	}).Debug("session transition")
	return m.registry.Broadcast(ctx, ev)
}

// lockTransition takes transitionMu for op. While the holder is notifying
// binders it fails with a *stitcherr.ReentrantRebindError instead of
// waiting, since the caller may be one of those binders.
func (m *Manager) lockTransition(ctx context.Context, op string) error {
	if err := rebind.Reject(ctx, op); err != nil {
		return err
	}
	if m.transitionMu.TryLock() {
		return nil
	}
	if m.registry.Delivering() {
		log.WithField("operation", op).Warn("session transition attempted while binders are being notified")
		return &stitcherr.ReentrantRebindError{Operation: op}
	}
	m.transitionMu.Lock()
	return nil
}

// transition is transitionLocked for callers that do not hold the lock.
func (m *Manager) transition(ctx context.Context, op string, mutate func() (rebind.Event, bool)) error {
	if err := rebind.Reject(ctx, op); err != nil {
		return err
	}
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()
	return m.transitionLocked(ctx, mutate)
}

// Device returns the device document sent with logins, including the
// server-assigned device id once one is known.
func (m *Manager) Device() providers.DeviceInfo {
	return m.deviceInfo()
}

func (m *Manager) deviceInfo() providers.DeviceInfo {
	d := m.device
	if id := m.state.DeviceID(); id != "" {
		d.DeviceID = id
	}
	return d
}

// LoginWithCredential logs in with cred. An active session under another
// provider is logged out first. A provider that reuses sessions extends an
// active session of its own instead of replacing it.
func (m *Manager) LoginWithCredential(ctx context.Context, cred credential.Credential) (session.Snapshot, error) {
	if err := rebind.Reject(ctx, "login"); err != nil {
		return session.Snapshot{}, err
	}
	if current := m.state.Snapshot(); current.LoggedIn && reuses(current, cred) {
		extended, err := m.extend(ctx, current)
		if err != nil {
			return session.Snapshot{}, err
		}
		if extended {
			return m.state.Snapshot(), nil
		}
	}

	if err := m.lockTransition(ctx, "login"); err != nil {
		return session.Snapshot{}, err
	}
	defer m.transitionMu.Unlock()

	if current := m.state.Snapshot(); current.LoggedIn {
		if reuses(current, cred) {
			// A concurrent login got there first.
			return current, nil
		}
		if err := m.logoutLocked(ctx); err != nil {
			return session.Snapshot{}, err
		}
	}

	desc, err := m.login.Login(ctx, cred, m.deviceInfo(), false)
	if err != nil {
		return session.Snapshot{}, err
	}
	profile, err := m.fetchProfile(ctx, desc.AccessToken)
	if err != nil {
		return session.Snapshot{}, err
	}

	err = m.transitionLocked(ctx, func() (rebind.Event, bool) {
		m.state.Set(session.Info{
			ProviderName: cred.ProviderName(),
			ProviderType: cred.ProviderType(),
			AccessToken:  desc.AccessToken,
			RefreshToken: desc.RefreshToken,
			UserID:       desc.UserID,
			DeviceID:     desc.DeviceID,
		})
		m.state.SetProfile(profile)
		return rebind.Event{Kind: rebind.LoggedIn, ProviderName: cred.ProviderName(), UserID: desc.UserID}, true
	})
	if err != nil {
		return session.Snapshot{}, err
	}
	log.WithField("provider", cred.ProviderName()).Infof("logged in as %s", desc.UserID)
	return m.state.Snapshot(), nil
}

func reuses(current session.Snapshot, cred credential.Credential) bool {
	return cred.Capabilities().ReusesExistingSession &&
		current.ProviderName == cred.ProviderName() &&
		current.ProviderType == cred.ProviderType()
}

// extend refreshes the current session in place, joining any refresh
// already in flight for it. It reports false when the session is gone, in
// which case a fresh login should follow.
func (m *Manager) extend(ctx context.Context, current session.Snapshot) (bool, error) {
	_, err := m.refresh(ctx, current, current.AccessToken)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, stitcherr.ErrSessionExpired), errors.Is(err, stitcherr.ErrNotAuthenticated):
		return false, nil
	}
	return false, err
}

// LinkWithCredential links cred's identity to the logged-in user. The new
// access token replaces the current one.
func (m *Manager) LinkWithCredential(ctx context.Context, cred credential.Credential) (session.Snapshot, error) {
	if err := rebind.Reject(ctx, "link"); err != nil {
		return session.Snapshot{}, err
	}
	current := m.state.Snapshot()
	if !current.LoggedIn {
		return session.Snapshot{}, stitcherr.ErrNotAuthenticated
	}
	if !cred.Capabilities().SupportsLinking {
		return session.Snapshot{}, fmt.Errorf("stitch: provider %s does not support linking", cred.ProviderName())
	}

	desc, err := m.link.Login(ctx, cred, m.deviceInfo(), true)
	if err != nil {
		return session.Snapshot{}, err
	}
	profile, err := m.fetchProfile(ctx, desc.AccessToken)
	if err != nil {
		return session.Snapshot{}, err
	}

	if err := m.lockTransition(ctx, "link"); err != nil {
		return session.Snapshot{}, err
	}
	defer m.transitionMu.Unlock()
	err = m.transitionLocked(ctx, func() (rebind.Event, bool) {
		snap := m.state.Snapshot()
		if !snap.LoggedIn || snap.UserID != current.UserID {
			return rebind.Event{}, false
		}
		m.state.SetAccessToken(desc.AccessToken)
		m.state.SetProfile(profile)
		return rebind.Event{Kind: rebind.TokenRefreshed, ProviderName: snap.ProviderName, UserID: snap.UserID}, true
	})
	if err != nil {
		return session.Snapshot{}, err
	}
	return m.state.Snapshot(), nil
}

// Logout ends the session. Failing to reach the server does not keep the
// session alive. Logging out while logged out does nothing.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.lockTransition(ctx, "logout"); err != nil {
		return err
	}
	defer m.transitionMu.Unlock()
	return m.logoutLocked(ctx)
}

func (m *Manager) logoutLocked(ctx context.Context) error {
	current := m.state.Snapshot()
	if !current.LoggedIn {
		return nil
	}
	if current.RefreshToken != "" {
		if err := m.sessions.Logout(ctx, current.RefreshToken); err != nil {
			log.WithError(err).Debug("server logout failed, clearing session anyway")
		}
	}
	return m.transitionLocked(ctx, func() (rebind.Event, bool) {
		m.state.Clear()
		return rebind.Event{Kind: rebind.LoggedOut, ProviderName: current.ProviderName, UserID: current.UserID}, true
	})
}

// invalidateLocked clears the session identified by refreshToken, if it is
// still the current one, and broadcasts Invalidated.
func (m *Manager) invalidateLocked(ctx context.Context, refreshToken string) error {
	return m.transitionLocked(ctx, func() (rebind.Event, bool) {
		snap := m.state.Snapshot()
		if !snap.LoggedIn || snap.RefreshToken != refreshToken {
			return rebind.Event{}, false
		}
		m.state.Clear()
		log.WithField("user_id", snap.UserID).Warn("session invalidated by server")
		return rebind.Event{Kind: rebind.Invalidated, ProviderName: snap.ProviderName, UserID: snap.UserID}, true
	})
}

func (m *Manager) invalidate(ctx context.Context, refreshToken string) error {
	if err := rebind.Reject(ctx, "invalidate"); err != nil {
		return err
	}
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()
	return m.invalidateLocked(ctx, refreshToken)
}

func (m *Manager) fetchProfile(ctx context.Context, accessToken string) (*session.UserProfile, error) {
	resp, err := m.requester.DoRequest(ctx, request.StitchRequest{
		Method:  http.MethodGet,
		Path:    m.routes.ProfileRoute(),
		Headers: map[string]string{request.HeaderAuthorization: "Bearer " + accessToken},
	})
	if err != nil {
		return nil, err
	}
	var profile session.UserProfile
	if err := resp.DecodeInto(&profile); err != nil {
		return nil, fmt.Errorf("stitch: decode profile: %w", err)
	}
	return &profile, nil
}

// invalidatesSession reports whether a failed refresh means the refresh
// token is dead. Transport failures, rate limits and server errors leave
// the session in place.
func invalidatesSession(err error) bool {
	var reqErr *stitcherr.RequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	switch reqErr.Category {
	case stitcherr.CategoryTransient, stitcherr.CategoryQuotaError:
		return false
	}
	return true
}
