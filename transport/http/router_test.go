package http

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/sudomode/adapters/clock"
	"github.com/layer-3/sudomode/adapters/members"
	"github.com/layer-3/sudomode/adapters/password"
	"github.com/layer-3/sudomode/adapters/store"
	"github.com/layer-3/sudomode/adapters/tokenizer"
	"github.com/layer-3/sudomode/core"
	"github.com/layer-3/sudomode/internal/i18n"
	"github.com/layer-3/sudomode/ports"
	"github.com/layer-3/sudomode/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminPassword  = "0p3nS3samE!"
	memberPassword = "hunter22"
)

type testOptions struct {
	securityToken bool
	authorizer    ports.SudoModeAuthorizer
}

type testServer struct {
	t      *testing.T
	srv    *httptest.Server
	client *http.Client
	clock  *clock.Mock
}

func newTestServer(t *testing.T, opts testOptions) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	adminHash, err := password.Hash(adminPassword)
	require.NoError(t, err)
	memberHash, err := password.Hash(memberPassword)
	require.NoError(t, err)

	memberStore := members.NewMemoryStore(
		&core.Member{ID: "1", Email: "admin@example.com", PasswordHash: adminHash, Admin: true},
		&core.Member{ID: "2", Email: "member@example.com", PasswordHash: memberHash},
	)

	mock := clock.NewMock(time.Date(2019, 3, 1, 12, 0, 0, 0, time.UTC))
	sudo, err := service.NewSudoModeService(core.DefaultSudoModeConfig(), service.WithSudoClock(mock))
	require.NoError(t, err)

	var authorizer ports.SudoModeAuthorizer = sudo
	if opts.authorizer != nil {
		authorizer = opts.authorizer
	}

	auth := service.NewAuthService(memberStore,
		[]ports.Authenticator{password.NewAuthenticator(memberStore)},
		service.WithListeners(sudo),
		service.WithAuthClock(mock),
	)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tr, err := i18n.New("en")
	require.NoError(t, err)

	router := SetupRouter(Dependencies{
		Sessions:      store.NewMemoryStore(),
		Tokenizer:     tokenizer.NewJWTTokenizer(key),
		Auth:          auth,
		SudoMode:      authorizer,
		Members:       service.NewMemberService(memberStore, mock, nil),
		SecurityToken: service.NewSecurityTokenService(opts.securityToken),
		Translator:    tr,
		Cookie:        CookieConfig{TTL: time.Hour},
		HelpLink:      "https://example.com/help",
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testServer{t: t, srv: srv, client: &http.Client{Jar: jar}, clock: mock}
}

func (s *testServer) do(req *http.Request) (int, map[string]any) {
	s.t.Helper()

	resp, err := s.client.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	body := map[string]any{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp.StatusCode, body
}

func (s *testServer) get(path string) (int, map[string]any) {
	s.t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.srv.URL+path, nil)
	require.NoError(s.t, err)
	return s.do(req)
}

func (s *testServer) postForm(path string, form url.Values) (int, map[string]any) {
	s.t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

func (s *testServer) sendJSON(method, path string, payload any, header http.Header) (int, map[string]any) {
	s.t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(s.t, err)

	req, err := http.NewRequest(method, s.srv.URL+path, strings.NewReader(string(data)))
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	return s.do(req)
}

func (s *testServer) login(email, pass string) {
	s.t.Helper()
	status, body := s.sendJSON(http.MethodPost, "/auth/login", map[string]string{"email": email, "password": pass}, nil)
	require.Equal(s.t, http.StatusOK, status, body)
}

// loginWithoutSudoMode logs in and lets the activation from the login expire
func (s *testServer) loginWithoutSudoMode(email, pass string) {
	s.t.Helper()
	s.login(email, pass)
	s.clock.Advance(time.Duration(core.DefaultLifetimeMinutes+1) * time.Minute)
}

func (s *testServer) securityToken() string {
	s.t.Helper()
	status, body := s.get("/sudomode/config")
	require.Equal(s.t, http.StatusOK, status)
	token, _ := body[SecurityTokenField].(string)
	require.NotEmpty(s.t, token)
	return token
}

func TestCheckReturnsFalse(t *testing.T) {
	s := newTestServer(t, testOptions{})
	s.loginWithoutSudoMode("admin@example.com", adminPassword)

	status, body := s.get("/sudomode/check")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["active"])
}

func TestCheckRequiresLogin(t *testing.T) {
	s := newTestServer(t, testOptions{})

	status, _ := s.get("/sudomode/check")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestLoginActivatesSudoMode(t *testing.T) {
	s := newTestServer(t, testOptions{})
	s.login("admin@example.com", adminPassword)

	status, body := s.get("/sudomode/check")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["active"])
}

func TestLoginWithWrongPassword(t *testing.T) {
	s := newTestServer(t, testOptions{})

	status, body := s.sendJSON(http.MethodPost, "/auth/login", map[string]string{"email": "admin@example.com", "password": "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.NotEmpty(t, body["error"])

	status, _ = s.get("/auth/me")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestActivateFailsWithIncorrectPassword(t *testing.T) {
	s := newTestServer(t, testOptions{})
	s.loginWithoutSudoMode("admin@example.com", adminPassword)

	status, body := s.postForm(ActivatePath, url.Values{"Password": {"wrongpassword!"}})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["result"])
	assert.Equal(t, "Incorrect password", body["message"])

	status, body = s.postForm(ActivatePath, url.Values{})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["result"])
	assert.Equal(t, "Incorrect password", body["message"])
}

func TestActivateSudoModeWithValidCredentials(t *testing.T) {
	s := newTestServer(t, testOptions{})
	s.loginWithoutSudoMode("admin@example.com", adminPassword)

	status, body := s.postForm(ActivatePath, url.Values{"Password": {adminPassword}})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["result"])

	status, body = s.get("/sudomode/check")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["active"])
}

func TestActivateRejectsOtherMembersPassword(t *testing.T) {
	s := newTestServer(t, testOptions{})
	s.loginWithoutSudoMode("admin@example.com", adminPassword)

	_, body := s.postForm(ActivatePath, url.Values{"Password": {memberPassword}})
	assert.Equal(t, false, body["result"])
}

func TestActivateFailsWithGetRequest(t *testing.T) {
	s := newTestServer(t, testOptions{})
	s.login("admin@example.com", adminPassword)

	status, _ := s.get(ActivatePath)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestActivateChecksSecurityToken(t *testing.T) {
	s := newTestServer(t, testOptions{securityToken: true})
	s.loginWithoutSudoMode("admin@example.com", adminPassword)

	status, body := s.postForm(ActivatePath, url.Values{"Password": {"wrongpassword!"}})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, false, body["result"])
	assert.Equal(t, "Session timed out, please refresh and try again.", body["message"])

	token := s.securityToken()
	status, body = s.postForm(ActivatePath, url.Values{"Password": {adminPassword}, SecurityTokenField: {token}})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["result"])
}

func TestActivateMessageIsLocalized(t *testing.T) {
	s := newTestServer(t, testOptions{})
	s.loginWithoutSudoMode("admin@example.com", adminPassword)

	req, err := http.NewRequest(http.MethodPost, s.srv.URL+ActivatePath, strings.NewReader(url.Values{"Password": {"x"}}.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9")

	_, body := s.do(req)
	assert.Equal(t, "Falsches Passwort", body["message"])
}

type stubAuthorizer struct {
	active bool
	checks int
}

func (a *stubAuthorizer) Check(context.Context, ports.Session) (bool, error) {
	a.checks++
	return a.active, nil
}

func (a *stubAuthorizer) Activate(context.Context, ports.Session) (bool, error) {
	return true, nil
}

func (a *stubAuthorizer) Lifetime() int {
	return core.DefaultLifetimeMinutes
}

func TestClientConfig(t *testing.T) {
	stub := &stubAuthorizer{active: true}
	s := newTestServer(t, testOptions{authorizer: stub})
	s.login("admin@example.com", adminPassword)

	status, body := s.get("/sudomode/config")
	require.Equal(t, http.StatusOK, status)

	endpoints, ok := body["endpoints"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, ActivatePath, endpoints["activate"])
	assert.Equal(t, true, body["sudoModeActive"])
	assert.Equal(t, "https://example.com/help", body["helpLink"])
	assert.NotEmpty(t, body[SecurityTokenField])
	assert.Equal(t, 1, stub.checks)
}

func TestPasswordExpiryRequiresSudoMode(t *testing.T) {
	s := newTestServer(t, testOptions{securityToken: true})
	s.loginWithoutSudoMode("admin@example.com", adminPassword)
	token := s.securityToken()
	header := http.Header{SecurityTokenHeader: {token}}

	status, body := s.sendJSON(http.MethodPut, "/admin/members/2/password-expiry", map[string]bool{"required": true}, header)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "sudo_mode_required", body["error"])

	_, body = s.postForm(ActivatePath, url.Values{"Password": {adminPassword}, SecurityTokenField: {token}})
	require.Equal(t, true, body["result"])

	status, _ = s.sendJSON(http.MethodPut, "/admin/members/2/password-expiry", map[string]bool{"required": true}, nil)
	assert.Equal(t, http.StatusForbidden, status, "security token is still required")

	status, body = s.sendJSON(http.MethodPut, "/admin/members/2/password-expiry", map[string]bool{"required": true}, header)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["password_change_required"])

	status, body = s.get("/admin/members/2")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["password_change_required"])
	assert.Equal(t, true, body["can_require_change"])
}

func TestPasswordExpiryOnOwnAccountIsForbidden(t *testing.T) {
	s := newTestServer(t, testOptions{})
	s.login("admin@example.com", adminPassword)

	status, _ := s.sendJSON(http.MethodPut, "/admin/members/1/password-expiry", map[string]bool{"required": true}, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.sendJSON(http.MethodPut, "/admin/members/404/password-expiry", map[string]bool{"required": true}, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.sendJSON(http.MethodPut, "/admin/members/2/password-expiry", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t, testOptions{})
	s.login("member@example.com", memberPassword)

	status, _ := s.get("/admin/members/1")
	assert.Equal(t, http.StatusForbidden, status)
}

func TestLogoutEndsSudoMode(t *testing.T) {
	s := newTestServer(t, testOptions{})
	s.login("admin@example.com", adminPassword)

	status, body := s.get("/auth/me")
	require.Equal(t, http.StatusOK, status)
	member, _ := body["member"].(map[string]any)
	assert.Equal(t, "admin@example.com", member["email"])

	status, _ = s.sendJSON(http.MethodPost, "/auth/logout", nil, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.get("/sudomode/check")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func (s *testServer) sessionCookie() *http.Cookie {
	s.t.Helper()
	u, err := url.Parse(s.srv.URL)
	require.NoError(s.t, err)
	for _, cookie := range s.client.Jar.Cookies(u) {
		if cookie.Name == DefaultCookieName {
			return cookie
		}
	}
	s.t.Fatalf("no %s cookie in jar", DefaultCookieName)
	return nil
}

func TestLoginRotatesSession(t *testing.T) {
	s := newTestServer(t, testOptions{})

	status, _ := s.get("/auth/me")
	require.Equal(t, http.StatusUnauthorized, status)
	before := s.sessionCookie()

	s.login("admin@example.com", adminPassword)
	after := s.sessionCookie()
	assert.NotEqual(t, before.Value, after.Value)

	// replaying the pre-login cookie from another client gets neither login nor sudo mode
	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/sudomode/check", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: before.Value})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	status, body := s.get("/sudomode/check")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["active"])
}

func TestFailedLoginKeepsSession(t *testing.T) {
	s := newTestServer(t, testOptions{})

	status, _ := s.get("/auth/me")
	require.Equal(t, http.StatusUnauthorized, status)
	before := s.sessionCookie()

	status, _ = s.sendJSON(http.MethodPost, "/auth/login", map[string]string{"email": "admin@example.com", "password": "nope"}, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, before.Value, s.sessionCookie().Value)
}

func TestSessionCookieLifetimeIsFixedAtIssue(t *testing.T) {
	s := newTestServer(t, testOptions{})

	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/auth/me", nil)
	require.NoError(t, err)
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, int(time.Hour.Seconds()), cookies[0].MaxAge)

	// an existing session is not re-issued
	req, err = http.NewRequest(http.MethodGet, s.srv.URL+"/auth/me", nil)
	require.NoError(t, err)
	resp, err = s.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Cookies())
}
