package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/adapters/transport/http/dto"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/adapters/transport/http/middleware"
	authErrors "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() { gin.SetMode(gin.TestMode) }

var userID = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")

type svcStub struct {
	registerErr  error
	loginRes     model.LoginResult
	loginErr     error
	pair         model.TokenPair
	pairErr      error
	gotRefresh   string
	gotLogout    string
	gotAccess    string
	currentUser  model.User
	currentErr   error
	gotTwoFactor dto.TwoFactorDTO
}

func (s *svcStub) Register(_ context.Context, in dto.RegisterDTO) (model.User, error) {
	if s.registerErr != nil {
		return model.User{}, s.registerErr
	}
	return model.User{ID: userID, Email: in.Email, FirstName: in.FirstName, PasswordHash: "$2a$hash"}, nil
}
func (s *svcStub) Login(context.Context, dto.LoginDTO) (model.LoginResult, error) {
	return s.loginRes, s.loginErr
}
func (s *svcStub) VerifySecondFactor(_ context.Context, in dto.TwoFactorDTO) (model.TokenPair, error) {
	s.gotTwoFactor = in
	return s.pair, s.pairErr
}
func (s *svcStub) Refresh(_ context.Context, token string) (model.TokenPair, error) {
	s.gotRefresh = token
	if token == "" {
		return model.TokenPair{}, authErrors.ErrUnauthorized
	}
	return s.pair, s.pairErr
}
func (s *svcStub) Logout(_ context.Context, token string) error {
	s.gotLogout = token
	return nil
}
func (s *svcStub) FederatedLogin(context.Context, dto.FederatedLoginDTO) (model.TokenPair, error) {
	return s.pair, s.pairErr
}
func (s *svcStub) CurrentUser(_ context.Context, token string) (model.User, error) {
	s.gotAccess = token
	return s.currentUser, s.currentErr
}

type resetStub struct {
	requested  []string
	confirmErr error
}

func (r *resetStub) Request(_ context.Context, in dto.ForgotDTO) error {
	r.requested = append(r.requested, in.Email)
	return nil
}
func (r *resetStub) Confirm(context.Context, dto.ResetDTO) error { return r.confirmErr }

func newRouter(t *testing.T, svc *svcStub, reset *resetStub) *gin.Engine {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := middleware.NewMetrics(reg)
	require.NoError(t, err)

	h := NewHandler(svc, reset, CookieConfig{Secure: true}, zap.NewNop())
	return NewRouter(h, RouterConfig{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		Metrics:          m,
		Gatherer:         reg,
	}, zap.NewNop())
}

func do(r *gin.Engine, method, path, body string, mut ...func(*http.Request)) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mut {
		m(req)
	}
	r.ServeHTTP(w, req)
	return w
}

func withRefreshCookie(v string) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: refreshCookie, Value: v}) }
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func samplePair() model.TokenPair {
	return model.TokenPair{
		AccessToken:  "access.jwt",
		RefreshToken: "refresh.jwt",
		AccessTTL:    30 * time.Second,
		RefreshTTL:   7 * 24 * time.Hour,
		UserId:       userID,
	}
}

func TestRegister(t *testing.T) {
	r := newRouter(t, &svcStub{}, &resetStub{})

	w := do(r, http.MethodPost, "/api/register",
		`{"first_name":"Ann","email":"ann@example.com","password":"p","password_confirm":"p"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	out := decode(t, w)
	require.Equal(t, userID.String(), out["id"])
	require.Equal(t, "ann@example.com", out["email"])
	require.NotContains(t, w.Body.String(), "hash")
}

func TestRegister_Errors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{authErrors.ErrPasswordMismatch, http.StatusBadRequest},
		{authErrors.NewInvalidArgument("email is invalid"), http.StatusBadRequest},
		{authErrors.ErrAlreadyExists, http.StatusConflict},
		{authErrors.WrapInternal(errors.New("pq: connection refused"), "CreateUser"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		r := newRouter(t, &svcStub{registerErr: tc.err}, &resetStub{})
		w := do(r, http.MethodPost, "/api/register", `{"email":"a@b.c"}`)
		require.Equal(t, tc.code, w.Code, tc.err.Error())
		require.NotContains(t, w.Body.String(), "pq:")
	}

	r := newRouter(t, &svcStub{}, &resetStub{})
	require.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/register", `{`).Code)
}

func TestLogin(t *testing.T) {
	svc := &svcStub{loginRes: model.LoginResult{UserID: userID, Secret: "JBSWY3DPEHPK3PXP", OTPAuthURL: "otpauth://totp/x"}}
	r := newRouter(t, svc, &resetStub{})

	w := do(r, http.MethodPost, "/api/login", `{"email":"a@b.c","password":"p"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, map[string]any{
		"id": userID.String(), "secret": "JBSWY3DPEHPK3PXP", "otpauth_url": "otpauth://totp/x",
	}, decode(t, w))

	svc.loginRes = model.LoginResult{UserID: userID}
	w = do(r, http.MethodPost, "/api/login", `{"email":"a@b.c","password":"p"}`)
	require.Equal(t, map[string]any{"id": userID.String()}, decode(t, w))

	svc.loginErr = authErrors.ErrInvalidCredentials
	w = do(r, http.MethodPost, "/api/login", `{"email":"a@b.c","password":"p"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, map[string]any{"error": "invalid credentials"}, decode(t, w))

	w = do(r, http.MethodPost, "/api/login", `not json`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTwoFactor_SetsRefreshCookie(t *testing.T) {
	svc := &svcStub{pair: samplePair()}
	r := newRouter(t, svc, &resetStub{})

	w := do(r, http.MethodPost, "/api/two-factor",
		`{"id":"`+userID.String()+`","code":"123456","secret":"ignored"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "access.jwt", decode(t, w)["access_token"])
	require.Equal(t, "123456", svc.gotTwoFactor.Code)

	c := findCookie(w, refreshCookie)
	require.NotNil(t, c)
	require.Equal(t, "refresh.jwt", c.Value)
	require.True(t, c.HttpOnly)
	require.True(t, c.Secure)
	require.Equal(t, 7*24*60*60, c.MaxAge)
	require.Equal(t, http.SameSiteStrictMode, c.SameSite)
	require.NotContains(t, w.Body.String(), "refresh.jwt")

	svc.pairErr = authErrors.ErrInvalidCredentials
	w = do(r, http.MethodPost, "/api/two-factor", `{"id":"x","code":"1"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Nil(t, findCookie(w, refreshCookie))
}

func TestRefresh(t *testing.T) {
	svc := &svcStub{pair: samplePair()}
	r := newRouter(t, svc, &resetStub{})

	w := do(r, http.MethodPost, "/api/refresh", ``, withRefreshCookie("old.jwt"))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "old.jwt", svc.gotRefresh)
	require.Equal(t, "access.jwt", decode(t, w)["access_token"])
	require.Equal(t, "refresh.jwt", findCookie(w, refreshCookie).Value)

	// without rotation the cookie is left alone
	svc.pair.RefreshToken = ""
	w = do(r, http.MethodPost, "/api/refresh", ``, withRefreshCookie("old.jwt"))
	require.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, findCookie(w, refreshCookie))

	w = do(r, http.MethodPost, "/api/refresh", ``)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, map[string]any{"error": "unauthorized"}, decode(t, w))
}

func TestLogout_ClearsCookie(t *testing.T) {
	svc := &svcStub{}
	r := newRouter(t, svc, &resetStub{})

	w := do(r, http.MethodPost, "/api/logout", ``, withRefreshCookie("rt.jwt"))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "rt.jwt", svc.gotLogout)
	require.Equal(t, map[string]any{"message": "success"}, decode(t, w))

	c := findCookie(w, refreshCookie)
	require.NotNil(t, c)
	require.Empty(t, c.Value)
	require.Negative(t, c.MaxAge)

	w = do(r, http.MethodPost, "/api/logout", ``)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestFederatedLogin(t *testing.T) {
	svc := &svcStub{pair: samplePair()}
	r := newRouter(t, svc, &resetStub{})

	w := do(r, http.MethodPost, "/api/federated-login", `{"provider":"google","provider_token":"id-token"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, findCookie(w, refreshCookie))

	svc.pairErr = authErrors.ErrUnauthorized
	w = do(r, http.MethodPost, "/api/federated-login", `{"provider_token":"bad"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCurrentUser(t *testing.T) {
	svc := &svcStub{currentUser: model.User{ID: userID, Email: "ann@example.com"}}
	r := newRouter(t, svc, &resetStub{})

	w := do(r, http.MethodGet, "/api/user", ``, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer access.jwt")
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "access.jwt", svc.gotAccess)
	require.Equal(t, "ann@example.com", decode(t, w)["email"])

	svc.currentErr = authErrors.ErrUnauthorized
	w = do(r, http.MethodGet, "/api/user", ``)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestForgot_AlwaysAcknowledges(t *testing.T) {
	reset := &resetStub{}
	r := newRouter(t, &svcStub{}, reset)

	known := do(r, http.MethodPost, "/api/forgot", `{"email":"ann@example.com"}`)
	garbage := do(r, http.MethodPost, "/api/forgot", `{{{`)

	require.Equal(t, http.StatusOK, known.Code)
	require.Equal(t, known.Code, garbage.Code)
	require.Equal(t, known.Body.String(), garbage.Body.String())
	require.Equal(t, "ann@example.com", reset.requested[0])
}

func TestReset(t *testing.T) {
	reset := &resetStub{}
	r := newRouter(t, &svcStub{}, reset)

	body := `{"token":"t","password":"p","password_confirm":"p"}`
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/reset", body).Code)

	reset.confirmErr = authErrors.ErrInvalidOrExpiredToken
	w := do(r, http.MethodPost, "/api/reset", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, map[string]any{"error": "invalid or expired token"}, decode(t, w))
}

func TestHealthAndMetrics(t *testing.T) {
	r := newRouter(t, &svcStub{}, &resetStub{})

	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", ``).Code)

	w := do(r, http.MethodGet, "/metrics", ``)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), "auth_http_requests_total"))
}

func TestCORS(t *testing.T) {
	r := newRouter(t, &svcStub{}, &resetStub{})

	w := do(r, http.MethodOptions, "/api/login", ``, func(req *http.Request) {
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	})
	require.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = do(r, http.MethodPost, "/api/login", `{}`, func(req *http.Request) {
		req.Header.Set("Origin", "http://evil.example")
	})
	require.Equal(t, http.StatusForbidden, w.Code)
}
