package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/threadline-ai/threadline/internal/event"
	"github.com/threadline-ai/threadline/internal/storage"
	"github.com/threadline-ai/threadline/pkg/types"
)

// ErrUserNotFound is returned by a UserStore when no persisted record
// exists for the requested identifier.
var ErrUserNotFound = errors.New("user not found")

// UserStore persists authenticated users across sessions. Implementations
// are expected to be safe for concurrent use.
type UserStore interface {
	// GetUser returns the persisted record for the identifier, or
	// ErrUserNotFound when none exists.
	GetUser(ctx context.Context, identifier string) (*types.PersistedUser, error)

	// CreateUser persists the user and returns the stored record.
	CreateUser(ctx context.Context, user *types.User) (*types.PersistedUser, error)
}

// StorageUserStore keeps user records in the local JSON store under
// the "user" namespace, keyed by identifier.
type StorageUserStore struct {
	store *storage.Storage
}

func NewStorageUserStore(store *storage.Storage) *StorageUserStore {
	return &StorageUserStore{store: store}
}

func (s *StorageUserStore) GetUser(ctx context.Context, identifier string) (*types.PersistedUser, error) {
	var user types.PersistedUser
	err := s.store.Get(ctx, []string{"user", identifier}, &user)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *StorageUserStore) CreateUser(ctx context.Context, user *types.User) (*types.PersistedUser, error) {
	now := time.Now()
	record := &types.PersistedUser{
		User:      *user,
		RecordID:  ulid.Make().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Put(ctx, []string{"user", user.ID}, record); err != nil {
		return nil, err
	}
	event.Publish(event.Event{
		Type: event.UserPersisted,
		Data: event.UserPersistedData{Identifier: user.ID},
	})
	return record, nil
}
