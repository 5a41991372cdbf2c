package relationships

import "github.com/friendgraph/backend/internal/models"

// Status is the outcome reported for an engine operation.
type Status string

const (
	StatusSent             Status = "SENT"
	StatusBecameFriends    Status = "BECAME_FRIENDS"
	StatusAlreadyFriends   Status = "ALREADY_FRIENDS"
	StatusAlreadyRequested Status = "ALREADY_REQUESTED"
	StatusSelfRequest      Status = "SELF_REQUEST"
	StatusAccepted         Status = "ACCEPTED"
	StatusDeclined         Status = "DECLINED"
	StatusCancelled        Status = "CANCELLED"
	StatusRemoved          Status = "REMOVED"
	StatusNotFriends       Status = "NOT_FRIENDS"
)

// Outcome is returned by every engine operation. Edge holds the edge the
// operation acted on, when there is one.
type Outcome struct {
	Status Status
	Edge   models.Edge
}

// Relation is the composite state of an ordered pair of users as seen by the first one.
type Relation string

const (
	RelationNone            Relation = "NONE"
	RelationPendingOutgoing Relation = "PENDING_OUTGOING"
	RelationPendingIncoming Relation = "PENDING_INCOMING"
	RelationMutualFriend    Relation = "MUTUAL_FRIEND"
	RelationFollowerOnly    Relation = "FOLLOWER_ONLY"
	// RelationFollowedBy is the receiving side of FOLLOWER_ONLY.
	RelationFollowedBy      Relation = "FOLLOWED_BY"
)

// Classify derives the composite relation of (a, b) from the edge a->b, the
// edge b->a and whether b is in a's friends set. Nil edges are absent.
func Classify(forward, reverse *models.Edge, friends bool) Relation {
	switch {
	case friends:
		return RelationMutualFriend
	case forward != nil && forward.State == models.EdgeStateFollower:
		return RelationFollowerOnly
	case forward != nil:
		return RelationPendingOutgoing
	case reverse != nil && reverse.State == models.EdgeStatePending:
		return RelationPendingIncoming
	case reverse != nil && reverse.State == models.EdgeStateFollower:
		return RelationFollowedBy
	default:
		return RelationNone
	}
}
