package handlers

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/postboard/apiserver/internal/auth"
	"github.com/postboard/apiserver/internal/services"
	"github.com/postboard/apiserver/types"
	"github.com/sirupsen/logrus"
)

// TokenIssuer signs and verifies access tokens.
type TokenIssuer interface {
	Issue(user types.User) (string, error)
	Parse(token string) (auth.Identity, error)
}

// IdentityResolver loads the current identity behind a token's user id.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, id int) (auth.Identity, error)
}

// Authenticator is the bearer-token gate in front of protected routes.
type Authenticator struct {
	tokens TokenIssuer
	users  IdentityResolver
	log    logrus.FieldLogger
}

func NewAuthenticator(tokens TokenIssuer, users IdentityResolver, log logrus.FieldLogger) *Authenticator {
	return &Authenticator{tokens: tokens, users: users, log: log}
}

// RequireAuth verifies the bearer token, re-reads the account it names and
// stores the resulting identity in the request context.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeUnauthorized(w)
			return
		}

		claimed, err := a.tokens.Parse(tokenString)
		if err != nil {
			writeUnauthorized(w)
			return
		}

		identity, err := a.users.ResolveIdentity(r.Context(), claimed.ID)
		if err != nil {
			writeServiceError(w, r, a.log, err, errorDetails{})
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	})
}

// AuthHandler serves the login endpoint.
type AuthHandler struct {
	userService *services.UserService
	tokens      TokenIssuer
	log         logrus.FieldLogger
}

func NewAuthHandler(userService *services.UserService, tokens TokenIssuer, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{userService: userService, tokens: tokens, log: log}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, userService *services.UserService, tokens TokenIssuer, log logrus.FieldLogger) {
	handler := NewAuthHandler(userService, tokens, log)

	r.Post("/login", handler.Login)
}

// Login accepts an OAuth2 password form, where username carries the email,
// or a JSON body with email and password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := parseLoginRequest(w, r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	user, err := h.userService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.log, err, errorDetails{})
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		writeServiceError(w, r, h.log, err, errorDetails{})
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: auth.TokenType})
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func parseLoginRequest(w http.ResponseWriter, r *http.Request) (LoginRequest, error) {
	var req LoginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := decodeJSON(w, r, &req); err != nil {
			return LoginRequest{}, err
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return LoginRequest{}, errors.New("invalid form body")
		}
		req.Email = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validateStruct(req); err != nil {
		return LoginRequest{}, err
	}
	return req, nil
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

func identityFrom(r *http.Request) auth.Identity {
	identity, _ := auth.IdentityFromContext(r.Context())
	return identity
}
