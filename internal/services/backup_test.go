package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/postboard/apiserver/internal/storage"
	"github.com/postboard/apiserver/internal/tests/fake"
	"github.com/postboard/apiserver/types"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupServiceRoundTrip(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	db := fake.NewDB()
	objects := fake.NewObjects()

	alice, err := db.Users().Create(ctx, types.User{Username: "alice", Email: "alice@gmail.com", PasswordHash: "secret-hash", IsActive: true})
	require.NoError(t, err)
	_, err = db.Posts().Create(ctx, types.Post{Title: "t", Content: "c", Published: true, OwnerID: alice.ID})
	require.NoError(t, err)

	service := NewBackupService(db.Users(), db.Posts(), objects, "backups", logger)
	service.now = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC) }

	key, err := service.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "backups/20260301T123000Z.json", key)
	assert.Equal(t, "application/json", objects.ContentType(key))

	reader, err := objects.Get(ctx, key)
	require.NoError(t, err)
	raw, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-hash")

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "generated_at")

	snap, err := service.Load(ctx, key)
	require.NoError(t, err)
	assert.True(t, snap.GeneratedAt.Equal(time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)))
	require.Len(t, snap.Users, 1)
	assert.Equal(t, "alice", snap.Users[0].Username)
	require.Len(t, snap.Posts, 1)
	assert.Equal(t, "alice", snap.Posts[0].Owner.Username)

	require.NoError(t, service.Delete(ctx, key))
	_, err = service.Load(ctx, key)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	assert.ErrorIs(t, service.Delete(ctx, key), storage.ErrObjectNotFound)
}

func TestBackupServiceEmptyTables(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	db := fake.NewDB()
	objects := fake.NewObjects()
	service := NewBackupService(db.Users(), db.Posts(), objects, "snapshots", logger)

	key, err := service.Run(ctx)
	require.NoError(t, err)
	assert.Regexp(t, `^snapshots/\d{8}T\d{6}Z\.json$`, key)

	snap, err := service.Load(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, snap.Users)
	assert.Empty(t, snap.Posts)
}

// shrinkingUsers deletes a user from the front of the table once the first
// page has been read.
type shrinkingUsers struct {
	*fake.UserRepository
	deleteID int
	calls    int
}

func (r *shrinkingUsers) List(ctx context.Context, q types.UserQuery) ([]types.User, error) {
	page, err := r.UserRepository.List(ctx, q)
	r.calls++
	if r.calls == 1 {
		if err := r.UserRepository.Delete(ctx, r.deleteID); err != nil {
			return nil, err
		}
	}
	return page, err
}

func TestBackupServiceConcurrentDeleteDoesNotSkipUsers(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	db := fake.NewDB()

	total := backupPageSize + 2
	var first types.User
	for i := 0; i < total; i++ {
		user, err := db.Users().Create(ctx, types.User{
			Username: fmt.Sprintf("user%04d", i),
			Email:    fmt.Sprintf("user%04d@gmail.com", i),
			IsActive: true,
		})
		require.NoError(t, err)
		if i == 0 {
			first = user
		}
	}

	users := &shrinkingUsers{UserRepository: db.Users(), deleteID: first.ID}
	service := NewBackupService(users, db.Posts(), fake.NewObjects(), "backups", logger)

	key, err := service.Run(ctx)
	require.NoError(t, err)
	snap, err := service.Load(ctx, key)
	require.NoError(t, err)

	require.Len(t, snap.Users, total)
	assert.Equal(t, "user0000", snap.Users[0].Username)
	assert.Equal(t, fmt.Sprintf("user%04d", total-1), snap.Users[total-1].Username)
}

// growingPosts adds a new owner and post before the post pass starts.
type growingPosts struct {
	*fake.PostRepository
	users *fake.UserRepository
	done  bool
}

func (r *growingPosts) List(ctx context.Context, q types.PostQuery) ([]types.Post, error) {
	if !r.done {
		r.done = true
		late, err := r.users.Create(ctx, types.User{Username: "late", Email: "late@gmail.com", IsActive: true})
		if err != nil {
			return nil, err
		}
		if _, err := r.PostRepository.Create(ctx, types.Post{Title: "late", Content: "c", OwnerID: late.ID}); err != nil {
			return nil, err
		}
	}
	return r.PostRepository.List(ctx, q)
}

func TestBackupServiceDropsPostsWithoutSnapshotOwner(t *testing.T) {
	ctx := context.Background()
	logger, hook := test.NewNullLogger()
	db := fake.NewDB()

	alice, err := db.Users().Create(ctx, types.User{Username: "alice", Email: "alice@gmail.com", IsActive: true})
	require.NoError(t, err)
	_, err = db.Posts().Create(ctx, types.Post{Title: "early", Content: "c", OwnerID: alice.ID})
	require.NoError(t, err)

	posts := &growingPosts{PostRepository: db.Posts(), users: db.Users()}
	service := NewBackupService(db.Users(), posts, fake.NewObjects(), "backups", logger)

	key, err := service.Run(ctx)
	require.NoError(t, err)
	snap, err := service.Load(ctx, key)
	require.NoError(t, err)

	require.Len(t, snap.Users, 1)
	require.Len(t, snap.Posts, 1)
	assert.Equal(t, "early", snap.Posts[0].Title)
	assert.Equal(t, 1, hook.LastEntry().Data["posts_skipped"])
}
