// Package session holds the process-local authentication state of one app
// client.
package session

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/nghyane/stitch-sdk/internal/auth/credential"
	"github.com/nghyane/stitch-sdk/internal/stitcherr"
)

// Identity is one provider identity linked to a user.
type Identity struct {
	ID           string `json:"id"`
	ProviderType string `json:"provider_type"`
	ProviderID   string `json:"provider_id"`
}

// UserProfile is the server's view of the logged-in user.
type UserProfile struct {
	UserID     string         `json:"user_id"`
	Type       string         `json:"type"`
	Identities []Identity     `json:"identities"`
	Data       map[string]any `json:"data"`
}

// Info is what a login establishes.
type Info struct {
	ProviderName string
	ProviderType credential.ProviderType
	AccessToken  string
	RefreshToken string
	UserID       string
	DeviceID     string
}

// Snapshot is a point-in-time copy of the state.
type Snapshot struct {
	Info
	LoggedIn bool
	Profile  *UserProfile
}

// State is guarded by its own lock for reads. Writers are expected to be
// serialized by the owner's transition lock as well.
//
// Invariant: an access token is present exactly when LoggedIn is true.
type State struct {
	mu       sync.RWMutex
	info     Info
	profile  *UserProfile
	deviceID string
}

func New() *State {
	return &State{}
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Info:     s.info,
		LoggedIn: s.info.AccessToken != "",
		Profile:  s.profile,
	}
}

func (s *State) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.AccessToken != ""
}

func (s *State) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.AccessToken
}

func (s *State) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.RefreshToken
}

// DeviceID survives logout so the next login reports the same device.
func (s *State) DeviceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deviceID
}

// Set replaces the session. An empty access token clears it instead.
func (s *State) Set(info Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info.AccessToken == "" {
		s.clearLocked()
		return
	}
	s.info = info
	s.profile = nil
	if info.DeviceID != "" {
		s.deviceID = info.DeviceID
	}
}

// SetAccessToken swaps the access token of an active session. It reports
// false when logged out.
func (s *State) SetAccessToken(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info.AccessToken == "" || token == "" {
		return false
	}
	s.info.AccessToken = token
	return true
}

func (s *State) SetProfile(p *UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info.AccessToken == "" {
		return
	}
	s.profile = p
}

// Clear logs the session out.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *State) clearLocked() {
	s.info = Info{}
	s.profile = nil
}

// Token implements oauth2.TokenSource over the current access token.
func (s *State) Token() (*oauth2.Token, error) {
	snap := s.Snapshot()
	if !snap.LoggedIn {
		return nil, stitcherr.ErrNotAuthenticated
	}
	tok := &oauth2.Token{
		AccessToken:  snap.AccessToken,
		RefreshToken: snap.RefreshToken,
		TokenType:    "Bearer",
	}
	if exp, ok := TokenExpiry(snap.AccessToken); ok {
		tok.Expiry = exp
	}
	return tok, nil
}

var _ oauth2.TokenSource = (*State)(nil)

// TokenExpiry reads the exp claim of a JWT without verifying it. Opaque
// tokens report false.
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Expired reports whether token is a JWT that expires within skew of now.
func Expired(token string, now time.Time, skew time.Duration) bool {
	exp, ok := TokenExpiry(token)
	if !ok {
		return false
	}
	return !now.Add(skew).Before(exp)
}
