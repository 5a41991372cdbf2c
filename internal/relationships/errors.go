package relationships

import "errors"

var (
	// ErrSelfRequest indicates a user tried to befriend themselves.
	ErrSelfRequest = errors.New("cannot send a friend request to yourself")
	// ErrAlreadyFriends indicates the pair is already mutual.
	ErrAlreadyFriends = errors.New("users are already friends")
	// ErrAlreadyRequested indicates the actor already has an edge towards the target.
	ErrAlreadyRequested = errors.New("friend request already sent")
	// ErrDuplicateEdge indicates a concurrent writer created the same ordered edge first.
	ErrDuplicateEdge = errors.New("edge already exists for this pair")
	// ErrEdgeNotFound indicates the referenced edge does not exist or does not belong to the caller.
	ErrEdgeNotFound = errors.New("edge not found")
	// ErrNotPending indicates the request has already been answered.
	ErrNotPending = errors.New("friend request is no longer pending")
	// ErrNotFriends indicates a removal was attempted on a pair that is not mutual.
	ErrNotFriends = errors.New("users are not friends")
	// ErrUnknownUser indicates one of the identities does not exist in storage.
	ErrUnknownUser = errors.New("user not found")
)

// StatusOf maps an engine error onto the status reported to callers.
// It returns the empty status for errors the engine does not own.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSelfRequest):
		return StatusSelfRequest
	case errors.Is(err, ErrAlreadyFriends):
		return StatusAlreadyFriends
	case errors.Is(err, ErrAlreadyRequested), errors.Is(err, ErrDuplicateEdge):
		return StatusAlreadyRequested
	case errors.Is(err, ErrNotFriends):
		return StatusNotFriends
	}
	return ""
}
