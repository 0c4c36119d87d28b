package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/postboard/apiserver/types"
	"github.com/sirupsen/logrus"
)

const (
	backupPageSize    = 500
	backupContentType = "application/json"
	backupKeyLayout   = "20060102T150405Z"
)

// ObjectStore is the subset of object storage used for backups.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Snapshot is the exported content of the users and posts tables. Password
// hashes are never included.
type Snapshot struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Users       []types.User `json:"users"`
	Posts       []types.Post `json:"posts"`
}

// BackupService writes and reads JSON snapshots in object storage.
type BackupService struct {
	users   UserRepository
	posts   PostRepository
	objects ObjectStore
	prefix  string
	now     func() time.Time
	log     logrus.FieldLogger
}

func NewBackupService(users UserRepository, posts PostRepository, objects ObjectStore, prefix string, log logrus.FieldLogger) *BackupService {
	return &BackupService{
		users:   users,
		posts:   posts,
		objects: objects,
		prefix:  prefix,
		now:     time.Now,
		log:     log,
	}
}

// Run exports every user and post and returns the object key written.
func (s *BackupService) Run(ctx context.Context) (string, error) {
	generatedAt := s.now().UTC()
	snap := Snapshot{GeneratedAt: generatedAt}

	// Pages are keyed on id so concurrent deletes cannot shift rows out of view.
	owners := make(map[int]struct{})
	snap.Users = []types.User{}
	for afterID := 0; ; {
		page, err := s.users.List(ctx, types.UserQuery{AfterID: afterID, Limit: backupPageSize})
		if err != nil {
			return "", fmt.Errorf("list users: %w", err)
		}
		for _, user := range page {
			owners[user.ID] = struct{}{}
		}
		snap.Users = append(snap.Users, page...)
		if len(page) < backupPageSize {
			break
		}
		afterID = page[len(page)-1].ID
	}

	snap.Posts = []types.Post{}
	skipped := 0
	for afterID := 0; ; {
		page, err := s.posts.List(ctx, types.PostQuery{AfterID: afterID, Limit: backupPageSize})
		if err != nil {
			return "", fmt.Errorf("list posts: %w", err)
		}
		for _, post := range page {
			// Owner created after the user pass; keep the snapshot self-contained.
			if _, ok := owners[post.OwnerID]; !ok {
				skipped++
				continue
			}
			snap.Posts = append(snap.Posts, post)
		}
		if len(page) < backupPageSize {
			break
		}
		afterID = page[len(page)-1].ID
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	key := path.Join(s.prefix, generatedAt.Format(backupKeyLayout)+".json")
	if err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), backupContentType); err != nil {
		return "", fmt.Errorf("upload snapshot %s: %w", key, err)
	}

	s.log.WithFields(logrus.Fields{
		"key":           key,
		"users":         len(snap.Users),
		"posts":         len(snap.Posts),
		"bytes":         len(data),
		"posts_skipped": skipped,
	}).Info("backup written")
	return key, nil
}

// Load reads and decodes the snapshot stored under key.
func (s *BackupService) Load(ctx context.Context, key string) (Snapshot, error) {
	reader, err := s.objects.Get(ctx, key)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open snapshot %s: %w", key, err)
	}
	defer reader.Close()

	var snap Snapshot
	if err := json.NewDecoder(reader).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return snap, nil
}

func (s *BackupService) Delete(ctx context.Context, key string) error {
	if err := s.objects.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", key, err)
	}
	s.log.WithField("key", key).Info("backup deleted")
	return nil
}
