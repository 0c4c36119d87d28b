package services

import (
	"context"
	"errors"

	"github.com/postboard/apiserver/internal/auth"
	"github.com/postboard/apiserver/internal/mq"
	"github.com/postboard/apiserver/internal/store"
	"github.com/postboard/apiserver/types"
	"github.com/sirupsen/logrus"
)

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	List(ctx context.Context, q types.PostQuery) ([]types.Post, error)
	Get(ctx context.Context, id int) (types.Post, error)
	Latest(ctx context.Context) (types.Post, error)
	Create(ctx context.Context, post types.Post) (types.Post, error)
	Update(ctx context.Context, post types.Post) (types.Post, error)
	Delete(ctx context.Context, id int) error
}

// PostService encapsulates post use-cases. Every method is scoped to the
// calling identity.
type PostService struct {
	repo   PostRepository
	events EventPublisher
	log    logrus.FieldLogger
}

func NewPostService(repo PostRepository, events EventPublisher, log logrus.FieldLogger) *PostService {
	return &PostService{repo: repo, events: events, log: log}
}

// Create stores a post owned by the caller.
func (s *PostService) Create(ctx context.Context, caller auth.Identity, in types.PostCreate) (types.Post, error) {
	post, err := s.repo.Create(ctx, types.Post{
		Title:     in.Title,
		Content:   in.Content,
		Published: in.Published,
		Ratings:   in.Ratings,
		OwnerID:   caller.ID,
	})
	if err != nil {
		return types.Post{}, err
	}

	s.log.WithFields(logrus.Fields{"post_id": post.ID, "owner_id": post.OwnerID}).Info("post created")
	s.publish(ctx, mq.NewEvent(mq.EventPostCreated, post.ID, caller.ID))
	return post, nil
}

// List returns posts whose title contains search. Non-superusers only see
// their own posts. An empty result is not an error.
func (s *PostService) List(ctx context.Context, caller auth.Identity, search string, offset, limit int) ([]types.Post, error) {
	q := types.PostQuery{Search: search, Offset: offset, Limit: limit}
	if !caller.IsSuperuser {
		q.OwnerID = caller.ID
	}
	return s.repo.List(ctx, q)
}

func (s *PostService) Get(ctx context.Context, caller auth.Identity, id int) (types.Post, error) {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Post{}, err
	}
	if err := auth.Require(caller, postResource(post), auth.ActionRead); err != nil {
		return types.Post{}, err
	}
	return post, nil
}

// Latest returns the newest post in the system. A caller who may not read it
// gets store.ErrNotFound, the same as when there are no posts at all.
func (s *PostService) Latest(ctx context.Context, caller auth.Identity) (types.Post, error) {
	post, err := s.repo.Latest(ctx)
	if err != nil {
		return types.Post{}, err
	}
	if err := auth.Require(caller, postResource(post), auth.ActionRead); err != nil {
		if errors.Is(err, auth.ErrForbidden) {
			return types.Post{}, store.ErrNotFound
		}
		return types.Post{}, err
	}
	return post, nil
}

func (s *PostService) Update(ctx context.Context, caller auth.Identity, id int, patch types.PostPatch) (types.Post, error) {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Post{}, err
	}
	if err := auth.Require(caller, postResource(post), auth.ActionUpdate); err != nil {
		return types.Post{}, err
	}

	updated, err := s.repo.Update(ctx, patch.Apply(post))
	if err != nil {
		return types.Post{}, err
	}

	s.log.WithFields(logrus.Fields{"post_id": updated.ID, "actor_id": caller.ID}).Info("post updated")
	s.publish(ctx, mq.NewEvent(mq.EventPostUpdated, updated.ID, caller.ID))
	return updated, nil
}

func (s *PostService) Delete(ctx context.Context, caller auth.Identity, id int) error {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.Require(caller, postResource(post), auth.ActionDelete); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"post_id": id, "actor_id": caller.ID}).Info("post deleted")
	s.publish(ctx, mq.NewEvent(mq.EventPostDeleted, id, caller.ID))
	return nil
}

func (s *PostService) publish(ctx context.Context, evt mq.Event) {
	if s.events != nil {
		s.events.Publish(ctx, mq.ChannelPosts, evt)
	}
}

func postResource(post types.Post) auth.Resource {
	return auth.Resource{OwnerID: post.OwnerID}
}
