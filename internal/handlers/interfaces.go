package handlers

import (
	"context"

	"github.com/friendgraph/backend/internal/models"
	"github.com/friendgraph/backend/internal/relationships"
)

// UserStore captures the persistence operations required by the auth and user handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

// SessionManager issues, refreshes and revokes authentication tokens for users.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	RevokeUser(ctx context.Context, userID string) error
}

// RelationshipEngine applies friend request transitions.
type RelationshipEngine interface {
	RequestFriendship(ctx context.Context, actor, target string) (relationships.Outcome, error)
	AcceptIncoming(ctx context.Context, recipient, edgeID string) (relationships.Outcome, error)
	DeclineIncoming(ctx context.Context, recipient, edgeID string) (relationships.Outcome, error)
	CancelOutgoing(ctx context.Context, requester, edgeID string) (relationships.Outcome, error)
	RemoveFriend(ctx context.Context, user, friend string) (relationships.Outcome, error)
	Relation(ctx context.Context, viewer, other string) (relationships.Relation, error)
}

// RelationshipReader serves friend and request listings.
type RelationshipReader interface {
	relationships.Reader
}
