package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/postboard/apiserver/config"
	"github.com/postboard/apiserver/internal/auth"
	"github.com/postboard/apiserver/internal/services"
	"github.com/postboard/apiserver/internal/tests/fake"
	"github.com/postboard/apiserver/types"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Passw0rd!"

type testServer struct {
	router http.Handler
	db     *fake.DB
	events *fake.Events
	tokens *auth.TokenService
	users  *services.UserService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger, _ := test.NewNullLogger()
	db := fake.NewDB()
	events := &fake.Events{}

	tokens, err := auth.NewTokenService("test-secret", "HS256", 30*time.Minute)
	require.NoError(t, err)

	users := services.NewUserService(db.Users(), auth.NewPasswordHasher(bcrypt.MinCost), events, logger)
	posts := services.NewPostService(db.Posts(), events, logger)

	cfg := config.Config{
		APIPrefix: "/api/v1",
		Project: config.ProjectConfig{
			Name:           "Postboard API",
			APIVersion:     "1.0.0",
			PackageVersion: "1.0.0",
		},
		CORSOrigins: []string{"http://localhost:3000"},
	}

	return &testServer{
		router: NewRouter(Dependencies{
			Config:      cfg,
			UserService: users,
			PostService: posts,
			Tokens:      tokens,
			Log:         logger,
		}),
		db:     db,
		events: events,
		tokens: tokens,
		users:  users,
	}
}

// seedUser creates an account directly through the service.
func (s *testServer) seedUser(t *testing.T, username, email string, superuser bool) types.User {
	t.Helper()
	user, err := s.users.Create(context.Background(), types.UserCreate{
		Username:    username,
		Email:       email,
		Password:    testPassword,
		IsActive:    true,
		IsSuperuser: superuser,
	})
	require.NoError(t, err)
	return user
}

func (s *testServer) tokenFor(t *testing.T, user types.User) string {
	t.Helper()
	token, err := s.tokens.Issue(user)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) loginForm(t *testing.T, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"username": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[ErrorResponse](t, rec).Detail
}

func newRequest(method, path, authorization string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return req
}

func serve(s *testServer, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}
