package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/postboard/apiserver/internal/services"
	"github.com/postboard/apiserver/types"
	"github.com/sirupsen/logrus"
)

// UserHandler provides HTTP handlers for user accounts.
type UserHandler struct {
	userService *services.UserService
	log         logrus.FieldLogger
}

func NewUserHandler(userService *services.UserService, log logrus.FieldLogger) *UserHandler {
	return &UserHandler{userService: userService, log: log}
}

// UserRouter registers user routes. Registration is public; everything else
// goes through authMiddleware.
func UserRouter(r chi.Router, userService *services.UserService, authMiddleware func(http.Handler) http.Handler, log logrus.FieldLogger) {
	handler := NewUserHandler(userService, log)

	r.Post("/create-user", handler.CreateUser)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/get", handler.ListUsers)
		r.Put("/update/{username}", handler.UpdateUser)
		r.Delete("/delete/id/{id}", handler.DeleteUserByID)
		r.Delete("/delete/{username}", handler.DeleteUserByUsername)
	})
}

type UserCreateRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=15"`
	Email       string `json:"email" validate:"required,min=6,max=30,email_domain"`
	Password    string `json:"password" validate:"required,min=6,max=300,password_policy"`
	IsActive    *bool  `json:"is_active"`
	IsSuperuser *bool  `json:"is_superuser"`
}

// UserUpdateRequest only overwrites the fields present in the body.
type UserUpdateRequest struct {
	Username    *string `json:"username" validate:"omitempty,min=3,max=15"`
	Email       *string `json:"email" validate:"omitempty,min=6,max=30,email_domain"`
	Password    *string `json:"password" validate:"omitempty,min=6,max=300,password_policy"`
	IsActive    *bool   `json:"is_active"`
	IsSuperuser *bool   `json:"is_superuser"`
}

func (r *UserCreateRequest) normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
}

func (r *UserUpdateRequest) normalize() {
	r.Username = trimmed(r.Username)
	r.Email = trimmed(r.Email)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req UserCreateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	in := types.UserCreate{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		IsActive: true,
	}
	if req.IsActive != nil {
		in.IsActive = *req.IsActive
	}
	if req.IsSuperuser != nil {
		in.IsSuperuser = *req.IsSuperuser
	}

	user, err := h.userService.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.log, err, errorDetails{
			conflict: fmt.Sprintf("Username: %s or email: %s already exists", in.Username, in.Email),
		})
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, skip, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	users, err := h.userService.List(r.Context(), identityFrom(r), search, skip, limit)
	if err != nil {
		writeServiceError(w, r, h.log, err, errorDetails{})
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req UserUpdateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	patch := types.UserPatch{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		IsActive:    req.IsActive,
		IsSuperuser: req.IsSuperuser,
	}
	user, err := h.userService.UpdateByUsername(r.Context(), identityFrom(r), username, patch)
	if err != nil {
		writeServiceError(w, r, h.log, err, h.details(r, fmt.Sprintf("User with username=%s not found", username)))
		return
	}
	writeJSON(w, http.StatusAccepted, user)
}

func (h *UserHandler) DeleteUserByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.userService.DeleteByID(r.Context(), identityFrom(r), id); err != nil {
		writeServiceError(w, r, h.log, err, h.details(r, fmt.Sprintf("User with id=%d not found", id)))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) DeleteUserByUsername(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	if err := h.userService.DeleteByUsername(r.Context(), identityFrom(r), username); err != nil {
		writeServiceError(w, r, h.log, err, h.details(r, fmt.Sprintf("User with username=%s not found", username)))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) details(r *http.Request, notFound string) errorDetails {
	return errorDetails{
		notFound:  notFound,
		forbidden: fmt.Sprintf("Logged in as user %q: not the account owner or a superuser", identityFrom(r).Username),
		conflict:  "Username or email already exists",
	}
}
