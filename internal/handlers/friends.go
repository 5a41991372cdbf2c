package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/friendgraph/backend/internal/logging"
	"github.com/friendgraph/backend/internal/models"
	"github.com/friendgraph/backend/internal/relationships"
	"github.com/friendgraph/backend/internal/repositories"
)

// FriendHandler exposes friend requests and the friends list of the caller.
type FriendHandler struct {
	Users         UserStore
	Engine        RelationshipEngine
	Relationships RelationshipReader
	Limiter       RateLimiter
}

// SendRequest handles POST /api/v1/users/{id}/friend-request.
func (h FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !h.ready(ctx, w) {
		return
	}

	if !allowRequest(h.Limiter, r, "friend-request") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many friend requests")
		return
	}

	target, ok := h.loadUser(ctx, w, r.PathValue("id"))
	if !ok {
		return
	}

	out, err := h.Engine.RequestFriendship(ctx, actor, target.ID)
	if err != nil {
		respondRelationshipError(ctx, w, err)
		return
	}

	message := fmt.Sprintf("friend request sent to %s", target.Username)
	if out.Status == relationships.StatusBecameFriends {
		message = fmt.Sprintf("you are now friends with %s", target.Username)
	}
	h.respondOutcome(ctx, w, http.StatusCreated, out, message)
}

// List handles GET /api/v1/friends.
func (h FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !h.ready(ctx, w) {
		return
	}
	logger := logging.FromContext(ctx)

	ids, err := h.Relationships.ListFriends(ctx, viewer)
	if err != nil {
		logger.Error("list friends failed", "error", err, "userId", viewer)
		respondError(ctx, w, http.StatusInternalServerError, "failed to list friends")
		return
	}

	friends, err := h.Users.FindByIDs(ctx, ids)
	if err != nil {
		logger.Error("load friends failed", "error", err, "userId", viewer)
		respondError(ctx, w, http.StatusInternalServerError, "failed to list friends")
		return
	}

	resp := listFriendsResponse{Friends: make([]userResponse, 0, len(friends))}
	for _, friend := range friends {
		described, err := describeUser(ctx, h.Users, h.Relationships, friend)
		if err != nil {
			logger.Error("describe friend failed", "error", err, "friendId", friend.ID)
			respondError(ctx, w, http.StatusInternalServerError, "failed to list friends")
			return
		}
		// Everyone in the friends set is mutual by construction.
		described.Status = string(relationships.RelationMutualFriend)
		resp.Friends = append(resp.Friends, described)
	}

	respondJSON(ctx, w, http.StatusOK, resp)
}

// Relation handles GET /api/v1/users/{id}/relation.
func (h FriendHandler) Relation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !h.ready(ctx, w) {
		return
	}

	other, ok := h.loadUser(ctx, w, r.PathValue("id"))
	if !ok {
		return
	}

	relation, err := h.Engine.Relation(ctx, viewer, other.ID)
	if err != nil {
		logging.FromContext(ctx).Error("classify relation failed", "error", err, "userId", other.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load relation")
		return
	}

	respondJSON(ctx, w, http.StatusOK, relationResponse{User: summarize(other), Status: string(relation)})
}

// Remove handles DELETE /api/v1/friends/{id}.
func (h FriendHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !h.ready(ctx, w) {
		return
	}

	friend, ok := h.loadUser(ctx, w, r.PathValue("id"))
	if !ok {
		return
	}

	if _, err := h.Engine.RemoveFriend(ctx, userID, friend.ID); err != nil {
		respondRelationshipError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListIncoming handles GET /api/v1/friend-requests/incoming.
func (h FriendHandler) ListIncoming(w http.ResponseWriter, r *http.Request) {
	h.listEdges(w, r, func(reader RelationshipReader) edgeLister { return reader.ListIncoming })
}

// ListOutgoing handles GET /api/v1/friend-requests/outgoing.
func (h FriendHandler) ListOutgoing(w http.ResponseWriter, r *http.Request) {
	h.listEdges(w, r, func(reader RelationshipReader) edgeLister { return reader.ListOutgoing })
}

// Accept handles POST /api/v1/friend-requests/incoming/{id}/accept.
func (h FriendHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, userID, edgeID string) (relationships.Outcome, error) {
		return h.Engine.AcceptIncoming(ctx, userID, edgeID)
	}, "friend request accepted")
}

// Decline handles POST /api/v1/friend-requests/incoming/{id}/decline.
func (h FriendHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, userID, edgeID string) (relationships.Outcome, error) {
		return h.Engine.DeclineIncoming(ctx, userID, edgeID)
	}, "requester kept as a follower")
}

// Cancel handles DELETE /api/v1/friend-requests/outgoing/{id}.
func (h FriendHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, userID, edgeID string) (relationships.Outcome, error) {
		return h.Engine.CancelOutgoing(ctx, userID, edgeID)
	}, "friend request cancelled")
}

type edgeLister func(ctx context.Context, userID string) ([]models.Edge, error)

func (h FriendHandler) listEdges(w http.ResponseWriter, r *http.Request, pick func(RelationshipReader) edgeLister) {
	ctx := r.Context()
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !h.ready(ctx, w) {
		return
	}
	logger := logging.FromContext(ctx)

	edges, err := pick(h.Relationships)(ctx, userID)
	if err != nil {
		logger.Error("list friend requests failed", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to list friend requests")
		return
	}

	rendered, err := h.renderEdges(ctx, edges)
	if err != nil {
		logger.Error("render friend requests failed", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to list friend requests")
		return
	}

	respondJSON(ctx, w, http.StatusOK, listRequestsResponse{Requests: rendered})
}

func (h FriendHandler) transition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, userID, edgeID string) (relationships.Outcome, error), message string) {
	ctx := r.Context()
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !h.ready(ctx, w) {
		return
	}

	out, err := apply(ctx, userID, r.PathValue("id"))
	if err != nil {
		respondRelationshipError(ctx, w, err)
		return
	}

	h.respondOutcome(ctx, w, http.StatusOK, out, message)
}

func (h FriendHandler) ready(ctx context.Context, w http.ResponseWriter) bool {
	if h.Users == nil || h.Engine == nil || h.Relationships == nil {
		logging.FromContext(ctx).Error("friend dependencies unavailable",
			"hasUsers", h.Users != nil, "hasEngine", h.Engine != nil, "hasRelationships", h.Relationships != nil)
		respondError(ctx, w, http.StatusInternalServerError, "friend service unavailable")
		return false
	}
	return true
}

func (h FriendHandler) loadUser(ctx context.Context, w http.ResponseWriter, id string) (models.User, bool) {
	user, err := h.Users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, statusResponse{Message: "user not found"})
			return models.User{}, false
		}
		logging.FromContext(ctx).Error("find user failed", "error", err, "userId", id)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load user")
		return models.User{}, false
	}
	return user, true
}

func (h FriendHandler) respondOutcome(ctx context.Context, w http.ResponseWriter, status int, out relationships.Outcome, message string) {
	rendered, err := h.renderEdges(ctx, []models.Edge{out.Edge})
	if err != nil {
		logging.FromContext(ctx).Error("render outcome failed", "error", err, "edgeId", out.Edge.ID)
		respondJSON(ctx, w, status, statusResponse{Status: string(out.Status), Message: message})
		return
	}
	respondJSON(ctx, w, status, statusResponse{Status: string(out.Status), Message: message, Request: &rendered[0]})
}

// renderEdges resolves both endpoints of each edge to user summaries.
func (h FriendHandler) renderEdges(ctx context.Context, edges []models.Edge) ([]edgeResponse, error) {
	ids := make([]string, 0, 2*len(edges))
	seen := make(map[string]struct{}, 2*len(edges))
	for _, edge := range edges {
		for _, id := range []string{edge.From, edge.To} {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	users, err := h.Users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	byID := make(map[string]userSummary, len(users))
	for _, user := range users {
		byID[user.ID] = summarize(user)
	}
	lookup := func(id string) userSummary {
		if summary, ok := byID[id]; ok {
			return summary
		}
		return userSummary{ID: id}
	}

	out := make([]edgeResponse, 0, len(edges))
	for _, edge := range edges {
		out = append(out, edgeResponse{
			ID:        edge.ID,
			From:      lookup(edge.From),
			To:        lookup(edge.To),
			State:     string(edge.State),
			Accepted:  edge.Accepted(),
			Declined:  edge.Declined(),
			CreatedAt: edge.CreatedAt,
		})
	}
	return out, nil
}

// respondRelationshipError maps engine failures onto HTTP statuses.
func respondRelationshipError(ctx context.Context, w http.ResponseWriter, err error) {
	resp := statusResponse{Status: string(relationships.StatusOf(err)), Message: err.Error()}

	switch {
	case errors.Is(err, relationships.ErrNotFriends):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, relationships.ErrSelfRequest):
		respondJSON(ctx, w, http.StatusBadRequest, resp)
	case errors.Is(err, relationships.ErrNotPending):
		resp.Status = "NOT_PENDING"
		respondJSON(ctx, w, http.StatusBadRequest, resp)
	case errors.Is(err, relationships.ErrAlreadyFriends),
		errors.Is(err, relationships.ErrAlreadyRequested),
		errors.Is(err, relationships.ErrDuplicateEdge):
		respondJSON(ctx, w, http.StatusConflict, resp)
	case errors.Is(err, relationships.ErrEdgeNotFound), errors.Is(err, relationships.ErrUnknownUser):
		respondJSON(ctx, w, http.StatusNotFound, resp)
	default:
		logging.FromContext(ctx).Error("relationship operation failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, statusResponse{Message: "relationship update failed"})
	}
}

type edgeResponse struct {
	ID        string      `json:"id"`
	From      userSummary `json:"from"`
	To        userSummary `json:"to"`
	State     string      `json:"state"`
	Accepted  bool        `json:"accepted"`
	Declined  bool        `json:"declined"`
	CreatedAt time.Time   `json:"created_at"`
}

type statusResponse struct {
	Status  string        `json:"status,omitempty"`
	Message string        `json:"message"`
	Request *edgeResponse `json:"request,omitempty"`
}

type relationResponse struct {
	User   userSummary `json:"user"`
	Status string      `json:"status"`
}

type listFriendsResponse struct {
	Friends []userResponse `json:"friends"`
}

type listRequestsResponse struct {
	Requests []edgeResponse `json:"requests"`
}
