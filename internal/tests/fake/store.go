// Package fake provides in-memory stand-ins for the postgres repositories,
// the event publisher and object storage, for use in tests.
package fake

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/postboard/apiserver/internal/store"
	"github.com/postboard/apiserver/types"
)

// DB holds users and posts and enforces the same unique, foreign key and
// cascade rules as the postgres schema.
type DB struct {
	mu       sync.Mutex
	users    map[int]types.User
	posts    map[int]types.Post
	nextUser int
	nextPost int
	now      func() time.Time
}

func NewDB() *DB {
	return &DB{
		users: make(map[int]types.User),
		posts: make(map[int]types.Post),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (db *DB) Users() *UserRepository { return &UserRepository{db: db} }

func (db *DB) Posts() *PostRepository { return &PostRepository{db: db} }

// UserRepository mirrors store.UserRepository.
type UserRepository struct {
	db *DB
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	user, ok := r.db.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return r.find(func(u types.User) bool { return u.Username == username })
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.find(func(u types.User) bool { return u.Email == email })
}

func (r *UserRepository) List(ctx context.Context, q types.UserQuery) ([]types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	search := strings.ToLower(q.Search)
	users := make([]types.User, 0)
	for _, u := range r.db.sortedUsers() {
		if u.ID <= q.AfterID {
			continue
		}
		if q.Username != "" && u.Username != q.Username {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Username), search) {
			continue
		}
		users = append(users, u)
	}
	return page(users, q.Offset, q.Limit), nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.checkUnique(user); err != nil {
		return types.User{}, err
	}
	r.db.nextUser++
	user.ID = r.db.nextUser
	user.CreatedAt = r.db.now()
	user.UpdatedAt = user.CreatedAt
	r.db.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	current, ok := r.db.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if err := r.db.checkUnique(user); err != nil {
		return types.User{}, err
	}
	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = r.db.now()
	r.db.users[user.ID] = user
	return user, nil
}

// Delete removes the user and every post it owns.
func (r *UserRepository) Delete(ctx context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.db.users, id)
	for postID, post := range r.db.posts {
		if post.OwnerID == id {
			delete(r.db.posts, postID)
		}
	}
	return nil
}

func (r *UserRepository) find(match func(types.User) bool) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if match(u) {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

// PostRepository mirrors store.PostRepository.
type PostRepository struct {
	db *DB
}

func (r *PostRepository) List(ctx context.Context, q types.PostQuery) ([]types.Post, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	posts := make([]types.Post, 0)
	for _, p := range r.db.sortedPosts() {
		if p.ID <= q.AfterID {
			continue
		}
		if q.OwnerID != 0 && p.OwnerID != q.OwnerID {
			continue
		}
		if q.Search != "" && !strings.Contains(p.Title, q.Search) {
			continue
		}
		posts = append(posts, r.db.withOwner(p))
	}
	return page(posts, q.Offset, q.Limit), nil
}

func (r *PostRepository) Get(ctx context.Context, id int) (types.Post, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	post, ok := r.db.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	return r.db.withOwner(post), nil
}

func (r *PostRepository) Latest(ctx context.Context) (types.Post, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	posts := r.db.sortedPosts()
	if len(posts) == 0 {
		return types.Post{}, store.ErrNotFound
	}
	return r.db.withOwner(posts[len(posts)-1]), nil
}

func (r *PostRepository) Create(ctx context.Context, post types.Post) (types.Post, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[post.OwnerID]; !ok {
		return types.Post{}, fmt.Errorf("%w: posts_owner_id_fkey", store.ErrConstraint)
	}
	r.db.nextPost++
	post.ID = r.db.nextPost
	post.CreatedAt = r.db.now()
	r.db.posts[post.ID] = post
	return r.db.withOwner(post), nil
}

func (r *PostRepository) Update(ctx context.Context, post types.Post) (types.Post, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	current, ok := r.db.posts[post.ID]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	post.CreatedAt = current.CreatedAt
	post.OwnerID = current.OwnerID
	r.db.posts[post.ID] = post
	return r.db.withOwner(post), nil
}

func (r *PostRepository) Delete(ctx context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.posts[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.db.posts, id)
	return nil
}

// The helpers below expect db.mu to be held.

func (db *DB) checkUnique(user types.User) error {
	for _, other := range db.users {
		if other.ID == user.ID {
			continue
		}
		if other.Username == user.Username {
			return fmt.Errorf("%w: users_username_key", store.ErrConflict)
		}
		if other.Email == user.Email {
			return fmt.Errorf("%w: users_email_key", store.ErrConflict)
		}
	}
	return nil
}

func (db *DB) withOwner(post types.Post) types.Post {
	owner := db.users[post.OwnerID]
	post.Owner = types.UserOwner{
		Username:  owner.Username,
		Email:     owner.Email,
		CreatedAt: owner.CreatedAt,
		UpdatedAt: owner.UpdatedAt,
	}
	return post
}

func (db *DB) sortedUsers() []types.User {
	users := make([]types.User, 0, len(db.users))
	for _, u := range db.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (db *DB) sortedPosts() []types.Post {
	posts := make([]types.Post, 0, len(db.posts))
	for _, p := range db.posts {
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
	return posts
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
