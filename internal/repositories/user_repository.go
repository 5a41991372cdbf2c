package repositories

import (
	"context"
	"errors"

	"github.com/friendgraph/backend/internal/models"
)

var (
	// ErrNotFound indicates the requested user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrConflict indicates the username is already taken.
	ErrConflict = errors.New("username already taken")
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	// FindByIDs skips unknown ids and orders the result by username.
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	List(ctx context.Context) ([]models.User, error)
}
