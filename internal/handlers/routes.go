package handlers

import (
	"net/http"

	"github.com/friendgraph/backend/internal/middleware"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Database: deps.Database}
	auth := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Limiter: deps.Limiter}
	users := UserHandler{Users: deps.Users, Relationships: deps.Relationships}
	friends := FriendHandler{
		Users:         deps.Users,
		Engine:        deps.Engine,
		Relationships: deps.Relationships,
		Limiter:       deps.Limiter,
	}

	protect := middleware.RequireUser(deps.Tokens)
	guarded := func(h http.HandlerFunc) http.Handler { return protect(h) }

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/v1/auth/login", auth.Login)
	mux.HandleFunc("/api/v1/auth/signup", auth.SignUp)
	mux.HandleFunc("/api/v1/auth/refresh", auth.Refresh)
	mux.Handle("/api/v1/auth/logout", guarded(auth.Logout))

	mux.HandleFunc("GET /api/v1/users", users.List)
	mux.HandleFunc("GET /api/v1/users/{id}", users.Get)
	mux.Handle("GET /api/v1/users/{id}/relation", guarded(friends.Relation))
	mux.Handle("POST /api/v1/users/{id}/friend-request", guarded(friends.SendRequest))

	mux.Handle("GET /api/v1/friends", guarded(friends.List))
	mux.Handle("DELETE /api/v1/friends/{id}", guarded(friends.Remove))

	mux.Handle("GET /api/v1/friend-requests/incoming", guarded(friends.ListIncoming))
	mux.Handle("POST /api/v1/friend-requests/incoming/{id}/accept", guarded(friends.Accept))
	mux.Handle("POST /api/v1/friend-requests/incoming/{id}/decline", guarded(friends.Decline))
	mux.Handle("GET /api/v1/friend-requests/outgoing", guarded(friends.ListOutgoing))
	mux.Handle("DELETE /api/v1/friend-requests/outgoing/{id}", guarded(friends.Cancel))
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserStore
	Sessions      SessionManager
	Tokens        middleware.TokenAuthenticator
	Engine        RelationshipEngine
	Relationships RelationshipReader
	Limiter       RateLimiter
	Database      Pinger
}
