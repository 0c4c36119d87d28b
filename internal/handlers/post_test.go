package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/postboard/apiserver/internal/mq"
	"github.com/postboard/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *testServer) createPost(t *testing.T, token, title string) types.Post {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/posts/create", token, map[string]any{"title": title, "content": "body"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[types.Post](t, rec)
}

func TestCreatePost(t *testing.T) {
	s := newTestServer(t)
	alice := s.seedUser(t, "alice", "alice@gmail.com", false)
	token := s.tokenFor(t, alice)

	post := s.createPost(t, token, "hello")
	assert.True(t, post.Published)
	assert.Nil(t, post.Ratings)
	assert.Equal(t, "alice@gmail.com", post.Owner.Email)

	rec := s.do(t, http.MethodPost, "/api/v1/posts/create", token, map[string]any{"title": "", "content": "c"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	long := make([]byte, 81)
	for i := range long {
		long[i] = 'a'
	}
	rec = s.do(t, http.MethodPost, "/api/v1/posts/create", token, map[string]any{"title": string(long), "content": "c"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, detail(t, rec), "title")

	assert.Equal(t, []string{mq.EventPostCreated}, s.events.Types()[1:])
}

func TestListPosts(t *testing.T) {
	s := newTestServer(t)
	admin := s.seedUser(t, "admin", "admin@gmail.com", true)
	alice := s.seedUser(t, "alice", "alice@gmail.com", false)
	bob := s.seedUser(t, "bob", "bob@gmail.com", false)

	s.createPost(t, s.tokenFor(t, alice), "go tips")
	s.createPost(t, s.tokenFor(t, alice), "rust tips")
	s.createPost(t, s.tokenFor(t, bob), "go news")

	rec := s.do(t, http.MethodGet, "/api/v1/posts/get", s.tokenFor(t, admin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]types.Post](t, rec), 3)

	rec = s.do(t, http.MethodGet, "/api/v1/posts/get?search=go", s.tokenFor(t, admin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]types.Post](t, rec), 2)

	rec = s.do(t, http.MethodGet, "/api/v1/posts/get?search=tips", s.tokenFor(t, alice), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, p := range decode[[]types.Post](t, rec) {
		assert.Equal(t, alice.ID, p.OwnerID)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/posts/get?search=rust", s.tokenFor(t, bob), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestLatestPost(t *testing.T) {
	s := newTestServer(t)
	admin := s.seedUser(t, "admin", "admin@gmail.com", true)
	alice := s.seedUser(t, "alice", "alice@gmail.com", false)
	bob := s.seedUser(t, "bob", "bob@gmail.com", false)

	rec := s.do(t, http.MethodGet, "/api/v1/posts/latest", s.tokenFor(t, admin), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No post found", detail(t, rec))

	s.createPost(t, s.tokenFor(t, alice), "first")
	latest := s.createPost(t, s.tokenFor(t, bob), "second")

	rec = s.do(t, http.MethodGet, "/api/v1/posts/latest", s.tokenFor(t, bob), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, latest.ID, decode[types.Post](t, rec).ID)

	rec = s.do(t, http.MethodGet, "/api/v1/posts/latest", s.tokenFor(t, alice), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No post found", detail(t, rec))
}

func TestUpdatePost(t *testing.T) {
	s := newTestServer(t)
	admin := s.seedUser(t, "admin", "admin@gmail.com", true)
	alice := s.seedUser(t, "alice", "alice@gmail.com", false)
	bob := s.seedUser(t, "bob", "bob@gmail.com", false)
	post := s.createPost(t, s.tokenFor(t, alice), "hello")
	path := fmt.Sprintf("/api/v1/posts/update/%d", post.ID)

	patch := map[string]any{"ratings": 5, "published": false}
	rec := s.do(t, http.MethodPut, path, s.tokenFor(t, alice), patch)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	first := decode[types.Post](t, rec)
	assert.Equal(t, "hello", first.Title)
	assert.Equal(t, "body", first.Content)
	assert.False(t, first.Published)
	require.NotNil(t, first.Ratings)
	assert.Equal(t, 5, *first.Ratings)

	rec = s.do(t, http.MethodPut, path, s.tokenFor(t, alice), patch)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, first, decode[types.Post](t, rec))

	rec = s.do(t, http.MethodPut, path, s.tokenFor(t, bob), patch)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/posts/update/999", s.tokenFor(t, admin), patch)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPut, path, s.tokenFor(t, admin), map[string]any{"title": "edited"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "edited", decode[types.Post](t, rec).Title)
}

func TestPostRatingsMustFitColumn(t *testing.T) {
	s := newTestServer(t)
	alice := s.seedUser(t, "alice", "alice@gmail.com", false)
	token := s.tokenFor(t, alice)

	for _, ratings := range []int64{3000000000, -2147483649} {
		rec := s.do(t, http.MethodPost, "/api/v1/posts/create", token, map[string]any{
			"title": "t", "content": "c", "ratings": ratings,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, detail(t, rec), "ratings")
	}

	rec := s.do(t, http.MethodPost, "/api/v1/posts/create", token, map[string]any{
		"title": "t", "content": "c", "ratings": int64(2147483647),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	post := decode[types.Post](t, rec)

	rec = s.do(t, http.MethodPut, fmt.Sprintf("/api/v1/posts/update/%d", post.ID), token, map[string]any{"ratings": int64(3000000000)})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "ratings: must be at most 2147483647", detail(t, rec))
}

func TestDeletePost(t *testing.T) {
	s := newTestServer(t)
	alice := s.seedUser(t, "alice", "alice@gmail.com", false)
	bob := s.seedUser(t, "bob", "bob@gmail.com", false)
	post := s.createPost(t, s.tokenFor(t, alice), "hello")
	path := fmt.Sprintf("/api/v1/posts/delete/%d", post.ID)

	rec := s.do(t, http.MethodDelete, path, s.tokenFor(t, bob), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete, path, s.tokenFor(t, alice), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodDelete, path, s.tokenFor(t, alice), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
