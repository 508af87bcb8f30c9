// Package testutil provides an in-process stand-in for the backend's client
// API, served by gin over httptest.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/nghyane/stitch-sdk/internal/stitcherr"
)

const apiPrefix = "/api/client/v2.0"

type user struct {
	id       string
	email    string
	password string
	provider string
}

// Backend is a stub server holding users, sessions and api keys in memory.
type Backend struct {
	server *httptest.Server

	mu            sync.Mutex
	users         map[string]*user // by email
	accessTokens  map[string]string
	refreshTokens map[string]string
	apiKeys       map[string]map[string]any
	extensionLog  []string
	functions     map[string]func(args []any) (any, error)

	seq          atomic.Int64
	logins       atomic.Int64
	refreshes    atomic.Int64
	logouts      atomic.Int64
	refreshDelay atomic.Int64
	failRefresh  atomic.Bool
}

// NewBackend starts a stub server. It is closed by t.Cleanup when t is
// non-nil.
func NewBackend(t interface{ Cleanup(func()) }) *Backend {
	gin.SetMode(gin.TestMode)
	b := &Backend{
		users:         make(map[string]*user),
		accessTokens:  make(map[string]string),
		refreshTokens: make(map[string]string),
		apiKeys:       make(map[string]map[string]any),
		functions:     make(map[string]func(args []any) (any, error)),
	}
	b.functions["echo"] = func(args []any) (any, error) {
		if len(args) == 0 {
			return nil, nil
		}
		return args[0], nil
	}
	b.functions["sum"] = func(args []any) (any, error) {
		var total float64
		for _, a := range args {
			n, ok := a.(float64)
			if !ok {
				return nil, fmt.Errorf("argument %v is not a number", a)
			}
			total += n
		}
		return total, nil
	}

	b.server = httptest.NewServer(b.routes())
	if t != nil {
		t.Cleanup(b.Close)
	}
	return b
}

func (b *Backend) URL() string { return b.server.URL }

func (b *Backend) Client() *http.Client { return b.server.Client() }

func (b *Backend) Close() { b.server.Close() }

// AddUser registers a confirmed email/password user.
func (b *Backend) AddUser(email, password string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[email] = &user{id: b.nextID("user"), email: email, password: password, provider: "local-userpass"}
}

// ExpireAccessTokens makes every issued access token fail with 401.
func (b *Backend) ExpireAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accessTokens = make(map[string]string)
}

// FailRefresh makes the session refresh route reject every refresh token.
func (b *Backend) FailRefresh(fail bool) { b.failRefresh.Store(fail) }

// SetRefreshDelay holds each refresh for d before answering.
func (b *Backend) SetRefreshDelay(d time.Duration) { b.refreshDelay.Store(int64(d)) }

func (b *Backend) Logins() int64    { return b.logins.Load() }
func (b *Backend) Refreshes() int64 { return b.refreshes.Load() }
func (b *Backend) Logouts() int64   { return b.logouts.Load() }

// ExtensionCalls lists "provider/path" for every provider extension call.
func (b *Backend) ExtensionCalls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.extensionLog...)
}

// RegisterFunction adds a callable server function.
func (b *Backend) RegisterFunction(name string, fn func(args []any) (any, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.functions[name] = fn
}

func (b *Backend) nextID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, b.seq.Add(1))
}

func (b *Backend) routes() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	app := engine.Group(apiPrefix + "/app/:app")
	app.POST("/auth/providers/:provider/*action", func(c *gin.Context) {
		if c.Param("action") == "/login" {
			b.handleLogin(c)
			return
		}
		b.handleExtension(c)
	})
	app.POST("/functions/call", b.requireAccess, b.handleFunctionCall)

	auth := engine.Group(apiPrefix + "/auth")
	auth.POST("/session", b.handleRefresh)
	auth.DELETE("/session", b.handleLogout)
	auth.GET("/profile", b.requireAccess, b.handleProfile)

	keys := auth.Group("/api_keys", b.requireRefresh)
	keys.POST("", b.handleCreateKey)
	keys.GET("", b.handleListKeys)
	keys.GET("/:id", b.handleGetKey)
	keys.PUT("/:id/enable", b.handleToggleKey(false))
	keys.PUT("/:id/disable", b.handleToggleKey(true))
	keys.DELETE("/:id", b.handleDeleteKey)
	return engine
}

func abortWithError(c *gin.Context, status int, code stitcherr.ErrorCode, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "error_code": string(code)})
}

func bearerToken(c *gin.Context) string {
	return strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
}

func (b *Backend) requireAccess(c *gin.Context) {
	b.mu.Lock()
	userID, ok := b.accessTokens[bearerToken(c)]
	b.mu.Unlock()
	if !ok {
		abortWithError(c, http.StatusUnauthorized, stitcherr.CodeInvalidSession, "invalid session")
		return
	}
	c.Set("user_id", userID)
	c.Next()
}

func (b *Backend) requireRefresh(c *gin.Context) {
	b.mu.Lock()
	userID, ok := b.refreshTokens[bearerToken(c)]
	b.mu.Unlock()
	if !ok {
		abortWithError(c, http.StatusUnauthorized, stitcherr.CodeInvalidSession, "invalid session")
		return
	}
	c.Set("user_id", userID)
	c.Next()
}

func (b *Backend) issueAccess(userID string) string {
	token := b.nextID("access")
	b.accessTokens[token] = userID
	return token
}

func (b *Backend) handleLogin(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || !gjson.ValidBytes(body) {
		abortWithError(c, http.StatusBadRequest, stitcherr.CodeInvalidParameter, "invalid body")
		return
	}
	doc := gjson.ParseBytes(body)
	provider := c.Param("provider")

	b.mu.Lock()
	defer b.mu.Unlock()

	var userID string
	if c.Query("link") == "true" {
		linked, ok := b.accessTokens[bearerToken(c)]
		if !ok {
			abortWithError(c, http.StatusUnauthorized, stitcherr.CodeInvalidSession, "invalid session")
			return
		}
		userID = linked
	} else {
		switch provider {
		case "local-userpass":
			u, ok := b.users[doc.Get("username").String()]
			if !ok || u.password != doc.Get("password").String() {
				abortWithError(c, http.StatusUnauthorized, stitcherr.CodeInvalidPassword, "invalid username/password")
				return
			}
			userID = u.id
		default:
			userID = b.nextID("user")
		}
	}

	deviceID := doc.Get("options.device.deviceId").String()
	if deviceID == "" {
		deviceID = b.nextID("device")
	}
	b.logins.Add(1)

	resp := gin.H{
		"access_token": b.issueAccess(userID),
		"user_id":      userID,
		"device_id":    deviceID,
	}
	if c.Query("link") != "true" {
		refresh := b.nextID("refresh")
		b.refreshTokens[refresh] = userID
		resp["refresh_token"] = refresh
	}
	c.JSON(http.StatusOK, resp)
}

func (b *Backend) handleExtension(c *gin.Context) {
	provider := c.Param("provider")
	ext := strings.TrimPrefix(c.Param("action"), "/")
	body, _ := c.GetRawData()
	doc := gjson.ParseBytes(body)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.extensionLog = append(b.extensionLog, provider+"/"+ext)

	if ext == "register" {
		email := doc.Get("email").String()
		if _, exists := b.users[email]; exists {
			abortWithError(c, http.StatusConflict, stitcherr.CodeAccountNameInUse, "name already in use")
			return
		}
		b.users[email] = &user{id: b.nextID("user"), email: email, password: doc.Get("password").String(), provider: provider}
	}
	c.Status(http.StatusNoContent)
}

func (b *Backend) handleRefresh(c *gin.Context) {
	if d := time.Duration(b.refreshDelay.Load()); d > 0 {
		time.Sleep(d)
	}
	b.refreshes.Add(1)
	if b.failRefresh.Load() {
		abortWithError(c, http.StatusUnauthorized, stitcherr.CodeInvalidSession, "invalid session")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	userID, ok := b.refreshTokens[bearerToken(c)]
	if !ok {
		abortWithError(c, http.StatusUnauthorized, stitcherr.CodeInvalidSession, "invalid session")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"access_token": b.issueAccess(userID)})
}

func (b *Backend) handleLogout(c *gin.Context) {
	b.logouts.Add(1)
	b.mu.Lock()
	delete(b.refreshTokens, bearerToken(c))
	b.mu.Unlock()
	c.Status(http.StatusNoContent)
}

func (b *Backend) handleProfile(c *gin.Context) {
	userID := c.GetString("user_id")

	b.mu.Lock()
	defer b.mu.Unlock()
	identity := gin.H{"id": userID, "provider_type": "anon-user", "provider_id": "anon-user"}
	data := gin.H{}
	for _, u := range b.users {
		if u.id == userID {
			identity = gin.H{"id": u.email, "provider_type": u.provider, "provider_id": u.provider}
			data["email"] = u.email
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":    userID,
		"type":       "normal",
		"identities": []gin.H{identity},
		"data":       data,
	})
}

func (b *Backend) handleFunctionCall(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || !gjson.ValidBytes(body) {
		abortWithError(c, http.StatusBadRequest, stitcherr.CodeInvalidParameter, "invalid body")
		return
	}
	doc := gjson.ParseBytes(body)
	name := doc.Get("name").String()

	b.mu.Lock()
	fn, ok := b.functions[name]
	b.mu.Unlock()
	if !ok {
		abortWithError(c, http.StatusNotFound, stitcherr.CodeFunctionNotFound, fmt.Sprintf("function not found: '%s'", name))
		return
	}

	var args []any
	if raw, ok := doc.Get("arguments").Value().([]any); ok {
		args = raw
	}
	result, err := fn(args)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, stitcherr.CodeFunctionExecutionError, err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

func (b *Backend) handleCreateKey(c *gin.Context) {
	body, _ := c.GetRawData()
	name := gjson.GetBytes(body, "name").String()
	if name == "" {
		abortWithError(c, http.StatusBadRequest, stitcherr.CodeInvalidParameter, "name is required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID("key")
	key := map[string]any{"_id": id, "name": name, "disabled": false}
	b.apiKeys[id] = key
	c.JSON(http.StatusCreated, gin.H{"_id": id, "name": name, "disabled": false, "key": "secret-" + id})
}

func (b *Backend) handleListKeys(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]map[string]any, 0, len(b.apiKeys))
	for _, k := range b.apiKeys {
		out = append(out, k)
	}
	c.JSON(http.StatusOK, out)
}

func (b *Backend) handleGetKey(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key, ok := b.apiKeys[c.Param("id")]
	if !ok {
		abortWithError(c, http.StatusNotFound, stitcherr.CodeAPIKeyNotFound, "api key not found")
		return
	}
	c.JSON(http.StatusOK, key)
}

func (b *Backend) handleToggleKey(disabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		b.mu.Lock()
		defer b.mu.Unlock()
		key, ok := b.apiKeys[c.Param("id")]
		if !ok {
			abortWithError(c, http.StatusNotFound, stitcherr.CodeAPIKeyNotFound, "api key not found")
			return
		}
		key["disabled"] = disabled
		c.Status(http.StatusNoContent)
	}
}

func (b *Backend) handleDeleteKey(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.apiKeys[c.Param("id")]; !ok {
		abortWithError(c, http.StatusNotFound, stitcherr.CodeAPIKeyNotFound, "api key not found")
		return
	}
	delete(b.apiKeys, c.Param("id"))
	c.Status(http.StatusNoContent)
}
