package auth

import (
	"context"
	"fmt"

	"github.com/nghyane/stitch-sdk/internal/auth/session"
	log "github.com/nghyane/stitch-sdk/internal/logging"
	"github.com/nghyane/stitch-sdk/internal/rebind"
	"github.com/nghyane/stitch-sdk/internal/request"
	"github.com/nghyane/stitch-sdk/internal/stitcherr"
)

// DoAuthRequest sends req with the session's proof attached. A rejected
// access token is refreshed once and the request retried once; if that does
// not help the session is invalidated and the call fails with
// stitcherr.ErrSessionExpired. Requests with a body are sent as JSON.
//
// The session is read without the transition lock, so a call racing a
// login may use the new session while binders are still being notified.
// Calls started after the login returns always follow the broadcast.
func (m *Manager) DoAuthRequest(ctx context.Context, req request.AuthRequest) (*request.Response, error) {
	current := m.state.Snapshot()
	if !current.LoggedIn {
		return nil, stitcherr.ErrNotAuthenticated
	}

	if req.UseRefreshToken {
		resp, err := m.send(ctx, req, current.RefreshToken)
		if err != nil && stitcherr.IsAuthRejected(err) {
			return nil, m.expire(ctx, current.RefreshToken, err)
		}
		return resp, err
	}

	token := current.AccessToken
	refreshed := false
	if session.Expired(token, m.now(), m.refreshSkew) {
		var err error
		if token, err = m.refresh(ctx, current, token); err != nil {
			return nil, err
		}
		refreshed = true
	}

	resp, err := m.send(ctx, req, token)
	if err == nil || !stitcherr.IsAuthRejected(err) {
		return resp, err
	}
	if !refreshed {
		if token, err = m.refresh(ctx, current, token); err != nil {
			return nil, err
		}
		resp, err = m.send(ctx, req, token)
		if err == nil || !stitcherr.IsAuthRejected(err) {
			return resp, err
		}
	}
	return nil, m.expire(ctx, current.RefreshToken, err)
}

// DoAuthJSONRequestInto sends req authenticated and decodes the response
// into out.
func (m *Manager) DoAuthJSONRequestInto(ctx context.Context, req request.DocRequest, out any) error {
	resp, err := m.DoAuthRequest(ctx, request.AuthRequest{DocRequest: req})
	if err != nil {
		return err
	}
	if err := resp.DecodeInto(out); err != nil {
		return fmt.Errorf("stitch: decode response: %w", err)
	}
	return nil
}

// RefreshAccessToken forces a refresh of the current access token.
func (m *Manager) RefreshAccessToken(ctx context.Context) error {
	current := m.state.Snapshot()
	if !current.LoggedIn {
		return stitcherr.ErrNotAuthenticated
	}
	_, err := m.refresh(ctx, current, current.AccessToken)
	return err
}

func (m *Manager) send(ctx context.Context, req request.AuthRequest, token string) (*request.Response, error) {
	doc := req.DocRequest
	doc.StitchRequest = doc.WithHeader(request.HeaderAuthorization, "Bearer "+token)
	if doc.Document == nil && doc.Body == nil {
		return m.requester.DoRequest(ctx, doc.StitchRequest)
	}
	return m.requester.DoJSONRequest(ctx, doc)
}

// refresh replaces stale, the access token a request of prev failed with,
// and returns the token to retry with. Concurrent callers share one refresh
// request per refresh token; callers arriving after a refresh already
// replaced stale get the newer token without another request.
func (m *Manager) refresh(ctx context.Context, prev session.Snapshot, stale string) (string, error) {
	if rebind.InBroadcast(ctx) {
		return "", rebind.Reject(ctx, "refresh")
	}
	current := m.state.Snapshot()
	if !current.LoggedIn {
		return "", stitcherr.ErrNotAuthenticated
	}
	if current.AccessToken != stale {
		return m.tokenFor(prev.UserID)
	}

	v, err, shared := m.refreshGroup.Do(current.RefreshToken, func() (any, error) {
		latest := m.state.Snapshot()
		if !latest.LoggedIn {
			return "", stitcherr.ErrNotAuthenticated
		}
		if latest.AccessToken != stale {
			return m.tokenFor(prev.UserID)
		}
		return m.doRefresh(context.WithoutCancel(ctx), latest)
	})
	if err != nil {
		return "", err
	}
	if shared {
		log.Debug("joined in-flight token refresh")
	}
	return v.(string), nil
}

func (m *Manager) doRefresh(ctx context.Context, current session.Snapshot) (string, error) {
	if current.RefreshToken == "" {
		return "", m.expire(ctx, current.RefreshToken, fmt.Errorf("no refresh token"))
	}
	access, err := m.sessions.Refresh(ctx, current.RefreshToken)
	if err != nil {
		if !invalidatesSession(err) {
			return "", err
		}
		return "", m.expire(ctx, current.RefreshToken, err)
	}

	applied := false
	err = m.transition(ctx, "refresh", func() (rebind.Event, bool) {
		if m.state.RefreshToken() != current.RefreshToken || !m.state.SetAccessToken(access) {
			return rebind.Event{}, false
		}
		applied = true
		return rebind.Event{Kind: rebind.TokenRefreshed, ProviderName: current.ProviderName, UserID: current.UserID}, true
	})
	if err != nil {
		return "", err
	}
	if !applied {
		// The session ended or was replaced while the refresh was in flight;
		// access belongs to a session that no longer exists locally.
		log.WithField("user_id", current.UserID).Debug("session changed during token refresh")
		return m.tokenFor(current.UserID)
	}
	log.WithField("user_id", current.UserID).Debug("access token refreshed")
	return access, nil
}

// tokenFor returns the current access token if the session still belongs
// to userID.
func (m *Manager) tokenFor(userID string) (string, error) {
	snap := m.state.Snapshot()
	if !snap.LoggedIn || snap.UserID != userID {
		return "", stitcherr.ErrNotAuthenticated
	}
	return snap.AccessToken, nil
}

// expire invalidates the session and returns the error the caller sees.
func (m *Manager) expire(ctx context.Context, refreshToken string, cause error) error {
	if err := m.invalidate(ctx, refreshToken); err != nil {
		return err
	}
	return fmt.Errorf("%w: %v", stitcherr.ErrSessionExpired, cause)
}

// Requester returns a request.Requester that authenticates every request
// through m.
func (m *Manager) Requester() request.Requester {
	return authRequester{m: m}
}

type authRequester struct {
	m *Manager
}

func (a authRequester) DoRequest(ctx context.Context, req request.StitchRequest) (*request.Response, error) {
	return a.m.DoAuthRequest(ctx, request.AuthRequest{DocRequest: request.DocRequest{StitchRequest: req}})
}

func (a authRequester) DoJSONRequest(ctx context.Context, req request.DocRequest) (*request.Response, error) {
	return a.m.DoAuthRequest(ctx, request.AuthRequest{DocRequest: req})
}

var (
	_ request.AuthRequester = (*Manager)(nil)
	_ request.Requester     = authRequester{}
)
