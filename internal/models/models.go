package models

import "time"

// User represents an account within the friend graph.
type User struct {
	ID        string
	Username  string
	Password  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EdgeState is the lifecycle state of a directed friend request edge.
type EdgeState string

const (
	// EdgeStatePending marks a request that has not been answered.
	EdgeStatePending EdgeState = "pending"
	// EdgeStateAccepted marks one half of a mutual friendship.
	EdgeStateAccepted EdgeState = "accepted"
	// EdgeStateFollower marks a declined request or a demoted friendship;
	// the sender keeps following the receiver.
	EdgeStateFollower EdgeState = "follower"
)

// Valid reports whether s is one of the known edge states.
func (s EdgeState) Valid() bool {
	switch s {
	case EdgeStatePending, EdgeStateAccepted, EdgeStateFollower:
		return true
	}
	return false
}

// EdgeStateFromFlags maps the legacy accepted/declined pair onto an EdgeState.
// Any combination with declined set reads as a follower.
func EdgeStateFromFlags(accepted, declined bool) EdgeState {
	switch {
	case declined:
		return EdgeStateFollower
	case accepted:
		return EdgeStateAccepted
	default:
		return EdgeStatePending
	}
}

// Edge is a directed request/follow relationship from one user to another.
type Edge struct {
	ID        string
	From      string
	To        string
	State     EdgeState
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Accepted reports the legacy accepted flag for the edge.
func (e Edge) Accepted() bool {
	return e.State == EdgeStateAccepted || e.State == EdgeStateFollower
}

// Declined reports the legacy declined flag for the edge.
func (e Edge) Declined() bool {
	return e.State == EdgeStateFollower
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
