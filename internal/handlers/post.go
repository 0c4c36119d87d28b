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

// PostHandler provides HTTP handlers for posts. Every route requires auth.
type PostHandler struct {
	postService *services.PostService
	log         logrus.FieldLogger
}

func NewPostHandler(postService *services.PostService, log logrus.FieldLogger) *PostHandler {
	return &PostHandler{postService: postService, log: log}
}

// PostRouter registers post routes on the given router.
func PostRouter(r chi.Router, postService *services.PostService, authMiddleware func(http.Handler) http.Handler, log logrus.FieldLogger) {
	handler := NewPostHandler(postService, log)

	r.Use(authMiddleware)
	r.Post("/create", handler.CreatePost)
	r.Get("/get", handler.ListPosts)
	r.Get("/latest", handler.LatestPost)
	r.Get("/id/{id}", handler.GetPost)
	r.Put("/update/{id}", handler.UpdatePost)
	r.Delete("/delete/{id}", handler.DeletePost)
}

// PostCreateRequest has no owner field; the owner is always the caller.
type PostCreateRequest struct {
	Title     string `json:"title" validate:"required,min=1,max=80"`
	Content   string `json:"content" validate:"required,min=1,max=180"`
	Published *bool  `json:"published"`
	Ratings   *int   `json:"ratings" validate:"omitempty,min=-2147483648,max=2147483647"`
}

type PostUpdateRequest struct {
	Title     *string `json:"title" validate:"omitempty,min=1,max=80"`
	Content   *string `json:"content" validate:"omitempty,min=1,max=180"`
	Published *bool   `json:"published"`
	Ratings   *int    `json:"ratings" validate:"omitempty,min=-2147483648,max=2147483647"`
}

func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req PostCreateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	in := types.PostCreate{
		Title:     req.Title,
		Content:   req.Content,
		Published: true,
		Ratings:   req.Ratings,
	}
	if req.Published != nil {
		in.Published = *req.Published
	}

	post, err := h.postService.Create(r.Context(), identityFrom(r), in)
	if err != nil {
		writeServiceError(w, r, h.log, err, errorDetails{})
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	limit, skip, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	posts, err := h.postService.List(r.Context(), identityFrom(r), search, skip, limit)
	if err != nil {
		writeServiceError(w, r, h.log, err, errorDetails{})
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	post, err := h.postService.Get(r.Context(), identityFrom(r), id)
	if err != nil {
		writeServiceError(w, r, h.log, err, h.details(r, id))
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) LatestPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.postService.Latest(r.Context(), identityFrom(r))
	if err != nil {
		writeServiceError(w, r, h.log, err, errorDetails{notFound: "No post found"})
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var req PostUpdateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	patch := types.PostPatch{
		Title:     req.Title,
		Content:   req.Content,
		Published: req.Published,
		Ratings:   req.Ratings,
	}
	post, err := h.postService.Update(r.Context(), identityFrom(r), id, patch)
	if err != nil {
		writeServiceError(w, r, h.log, err, h.details(r, id))
		return
	}
	writeJSON(w, http.StatusAccepted, post)
}

func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.postService.Delete(r.Context(), identityFrom(r), id); err != nil {
		writeServiceError(w, r, h.log, err, h.details(r, id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PostHandler) details(r *http.Request, id int) errorDetails {
	return errorDetails{
		notFound:  fmt.Sprintf("Post with id=%d not found", id),
		forbidden: fmt.Sprintf("Post with id=%d is not owned by user with owner_id=%d", id, identityFrom(r).ID),
	}
}
