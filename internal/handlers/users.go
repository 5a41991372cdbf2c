package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/friendgraph/backend/internal/logging"
	"github.com/friendgraph/backend/internal/models"
	"github.com/friendgraph/backend/internal/repositories"
)

// UserHandler serves the public user directory.
type UserHandler struct {
	Users         UserStore
	Relationships RelationshipReader
}

// List handles GET /api/v1/users.
func (h UserHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Relationships == nil {
		logger.Error("user directory dependencies unavailable", "hasUsers", h.Users != nil, "hasRelationships", h.Relationships != nil)
		respondError(ctx, w, http.StatusInternalServerError, "user directory unavailable")
		return
	}

	users, err := h.Users.List(ctx)
	if err != nil {
		logger.Error("list users failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to list users")
		return
	}

	resp := listUsersResponse{Users: make([]userResponse, 0, len(users))}
	for _, user := range users {
		described, err := describeUser(ctx, h.Users, h.Relationships, user)
		if err != nil {
			logger.Error("describe user failed", "error", err, "userId", user.ID)
			respondError(ctx, w, http.StatusInternalServerError, "failed to list users")
			return
		}
		resp.Users = append(resp.Users, described)
	}

	respondJSON(ctx, w, http.StatusOK, resp)
}

// Get handles GET /api/v1/users/{id}.
func (h UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Relationships == nil {
		logger.Error("user directory dependencies unavailable", "hasUsers", h.Users != nil, "hasRelationships", h.Relationships != nil)
		respondError(ctx, w, http.StatusInternalServerError, "user directory unavailable")
		return
	}

	user, err := h.Users.FindByID(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "user not found")
			return
		}
		logger.Error("find user failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load user")
		return
	}

	described, err := describeUser(ctx, h.Users, h.Relationships, user)
	if err != nil {
		logger.Error("describe user failed", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load user")
		return
	}

	respondJSON(ctx, w, http.StatusOK, described)
}

type userSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type userResponse struct {
	ID           string        `json:"id"`
	Username     string        `json:"username"`
	Status       string        `json:"status,omitempty"`
	FriendsCount int           `json:"friends_count"`
	Subscribers  int           `json:"subscribers"`
	Friends      []userSummary `json:"friends"`
}

type listUsersResponse struct {
	Users []userResponse `json:"users"`
}

func summarize(user models.User) userSummary {
	return userSummary{ID: user.ID, Username: user.Username}
}

// describeUser expands user with its friends and follower counters.
func describeUser(ctx context.Context, users UserStore, reader RelationshipReader, user models.User) (userResponse, error) {
	friendIDs, err := reader.ListFriends(ctx, user.ID)
	if err != nil {
		return userResponse{}, fmt.Errorf("list friends: %w", err)
	}

	subscribers, err := reader.CountFollowers(ctx, user.ID)
	if err != nil {
		return userResponse{}, fmt.Errorf("count followers: %w", err)
	}

	friends, err := users.FindByIDs(ctx, friendIDs)
	if err != nil {
		return userResponse{}, fmt.Errorf("load friends: %w", err)
	}

	resp := userResponse{
		ID:           user.ID,
		Username:     user.Username,
		FriendsCount: len(friendIDs),
		Subscribers:  subscribers,
		Friends:      make([]userSummary, 0, len(friends)),
	}
	for _, friend := range friends {
		resp.Friends = append(resp.Friends, summarize(friend))
	}
	return resp, nil
}
