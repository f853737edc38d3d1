package cache

import (
	"context"
	"errors"

	"github.com/atria-live/presence/internal/model"
)

var (
	// ErrNotFound is returned when a mutation targets a user the cache
	// does not hold. Expected under a lossy transport; callers log and
	// move on.
	ErrNotFound = errors.New("cache: user not found")

	// ErrNoLoader is returned by FetchUserCollection when no roster
	// loader was configured.
	ErrNoLoader = errors.New("cache: no roster loader configured")
)

// Loader fetches the room's full current roster, typically from the REST
// API.
type Loader func(ctx context.Context) ([]model.User, error)

// UserCache is the mutation contract the event router drives. Backends
// implement it; the router never sees a concrete store.
type UserCache interface {
	// FetchUserCollection replaces the cached roster with the loader's
	// view. Triggered once per handshake.
	FetchUserCollection(ctx context.Context) error

	// AddUser inserts or replaces one occupant.
	AddUser(ctx context.Context, id string, user model.User) error

	// RemoveUser drops one occupant. Removing an absent user is not an
	// error.
	RemoveUser(ctx context.Context, id string) error

	// UpdatePosition moves an occupant already in the cache. Returns
	// ErrNotFound if the user is absent.
	UpdatePosition(ctx context.Context, id string, pos model.Position) error
}
