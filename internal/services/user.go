package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/postboard/apiserver/internal/auth"
	"github.com/postboard/apiserver/internal/mq"
	"github.com/postboard/apiserver/internal/store"
	"github.com/postboard/apiserver/types"
	"github.com/sirupsen/logrus"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context, q types.UserQuery) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// EventPublisher receives lifecycle events after a mutation has committed.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, evt mq.Event)
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo   UserRepository
	hasher PasswordHasher
	events EventPublisher
	log    logrus.FieldLogger
}

func NewUserService(repo UserRepository, hasher PasswordHasher, events EventPublisher, log logrus.FieldLogger) *UserService {
	return &UserService{repo: repo, hasher: hasher, events: events, log: log}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// ResolveIdentity loads the current record behind a verified token. Deleted
// and deactivated accounts are treated as an invalid token.
func (s *UserService) ResolveIdentity(ctx context.Context, id int) (auth.Identity, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return auth.Identity{}, auth.ErrInvalidToken
		}
		return auth.Identity{}, err
	}
	if !user.IsActive {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return auth.IdentityFromUser(user), nil
}

// Create hashes the password and inserts the user in one statement; the
// unique constraints decide conflicts.
func (s *UserService) Create(ctx context.Context, in types.UserCreate) (types.User, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		IsActive:     in.IsActive,
		IsSuperuser:  in.IsSuperuser,
	})
	if err != nil {
		return types.User{}, err
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("user created")
	s.publish(ctx, mq.NewEvent(mq.EventUserCreated, user.ID, user.ID))
	return user, nil
}

// Authenticate checks an email/password pair for login.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		return types.User{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// List returns every user matching search for superusers. Anyone else gets
// only their own record; search, offset and limit are ignored for them.
func (s *UserService) List(ctx context.Context, caller auth.Identity, search string, offset, limit int) ([]types.User, error) {
	if !caller.IsSuperuser {
		return s.repo.List(ctx, types.UserQuery{Username: caller.Username, Limit: 1})
	}
	return s.repo.List(ctx, types.UserQuery{Search: search, Offset: offset, Limit: limit})
}

// UpdateByUsername applies patch to the named user. A plaintext password in
// the patch is hashed before it is stored. Only superusers may change the
// superuser flag.
func (s *UserService) UpdateByUsername(ctx context.Context, caller auth.Identity, username string, patch types.UserPatch) (types.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return types.User{}, err
	}
	if err := auth.Require(caller, userResource(user), auth.ActionUpdate); err != nil {
		return types.User{}, err
	}
	if patch.IsSuperuser != nil && *patch.IsSuperuser != user.IsSuperuser && !caller.IsSuperuser {
		return types.User{}, auth.ErrForbidden
	}

	if patch.Password != nil {
		hash, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			return types.User{}, fmt.Errorf("hash password: %w", err)
		}
		patch.Password = &hash
	}

	updated, err := s.repo.Update(ctx, patch.Apply(user))
	if err != nil {
		return types.User{}, err
	}

	s.log.WithFields(logrus.Fields{"user_id": updated.ID, "actor_id": caller.ID}).Info("user updated")
	s.publish(ctx, mq.NewEvent(mq.EventUserUpdated, updated.ID, caller.ID))
	return updated, nil
}

func (s *UserService) DeleteByID(ctx context.Context, caller auth.Identity, id int) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.delete(ctx, caller, user)
}

func (s *UserService) DeleteByUsername(ctx context.Context, caller auth.Identity, username string) error {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	return s.delete(ctx, caller, user)
}

func (s *UserService) delete(ctx context.Context, caller auth.Identity, user types.User) error {
	if err := auth.Require(caller, userResource(user), auth.ActionDelete); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, user.ID); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "actor_id": caller.ID}).Info("user deleted")
	s.publish(ctx, mq.NewEvent(mq.EventUserDeleted, user.ID, caller.ID))
	return nil
}

func (s *UserService) publish(ctx context.Context, evt mq.Event) {
	if s.events != nil {
		s.events.Publish(ctx, mq.ChannelUsers, evt)
	}
}

func userResource(user types.User) auth.Resource {
	return auth.Resource{OwnerID: user.ID, Username: user.Username}
}
