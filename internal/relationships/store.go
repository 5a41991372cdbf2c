package relationships

import (
	"context"

	"github.com/friendgraph/backend/internal/models"
)

// Store owns edges and friends-set membership. Every engine call runs its
// reads and writes inside a single WithinTx invocation; when fn returns an
// error none of its writes become visible.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx exposes the primitives available inside one atomic unit.
type Tx interface {
	// GetEdge returns ErrEdgeNotFound when no edge exists for (from, to).
	GetEdge(ctx context.Context, from, to string) (models.Edge, error)
	GetEdgeByID(ctx context.Context, edgeID string) (models.Edge, error)
	// CreateEdge fails with ErrDuplicateEdge when (from, to) already has an edge.
	CreateEdge(ctx context.Context, from, to string, state models.EdgeState) (models.Edge, error)
	UpdateEdge(ctx context.Context, edgeID string, state models.EdgeState) error
	DeleteEdge(ctx context.Context, edgeID string) error
	// AddFriendPair and RemoveFriendPair write both directions of the symmetric friends set.
	AddFriendPair(ctx context.Context, a, b string) error
	RemoveFriendPair(ctx context.Context, a, b string) error
	IsFriend(ctx context.Context, a, b string) (bool, error)
}

// Reader serves read-only listings outside of engine transactions.
type Reader interface {
	ListFriends(ctx context.Context, userID string) ([]string, error)
	ListIncoming(ctx context.Context, userID string) ([]models.Edge, error)
	ListOutgoing(ctx context.Context, userID string) ([]models.Edge, error)
	CountFriends(ctx context.Context, userID string) (int, error)
	CountFollowers(ctx context.Context, userID string) (int, error)
}
