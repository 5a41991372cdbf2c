package relationships

import (
	"context"
	"errors"
	"time"

	"github.com/friendgraph/backend/internal/logging"
	"github.com/friendgraph/backend/internal/models"
)

// Engine applies the friend request state machine on top of a Store. It keeps
// no state between calls: each operation re-reads the edges it needs, decides
// and writes inside one store transaction.
type Engine struct {
	store     Store
	publisher Publisher

	// NowFunc overrides the clock used for event timestamps.
	NowFunc func() time.Time
}

// NewEngine constructs an Engine. The publisher may be nil.
func NewEngine(store Store, publisher Publisher) *Engine {
	if store == nil {
		panic("relationships: store must not be nil")
	}
	return &Engine{store: store, publisher: publisher}
}

// RequestFriendship records that actor wants to befriend target. When target
// already has an edge towards actor the pair becomes mutual immediately.
func (e *Engine) RequestFriendship(ctx context.Context, actor, target string) (Outcome, error) {
	if actor == target {
		return Outcome{Status: StatusSelfRequest}, ErrSelfRequest
	}

	var out Outcome
	err := e.execute(ctx, "request", func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetEdge(ctx, actor, target); err == nil {
			friends, err := tx.IsFriend(ctx, actor, target)
			if err != nil {
				return err
			}
			if friends {
				return ErrAlreadyFriends
			}
			return ErrAlreadyRequested
		} else if !errors.Is(err, ErrEdgeNotFound) {
			return err
		}

		reverse, err := tx.GetEdge(ctx, target, actor)
		if errors.Is(err, ErrEdgeNotFound) {
			edge, err := tx.CreateEdge(ctx, actor, target, models.EdgeStatePending)
			if err != nil {
				return err
			}
			out = Outcome{Status: StatusSent, Edge: edge}
			return nil
		}
		if err != nil {
			return err
		}

		edge, err := tx.CreateEdge(ctx, actor, target, models.EdgeStateAccepted)
		if err != nil {
			return err
		}
		if err := tx.UpdateEdge(ctx, reverse.ID, models.EdgeStateAccepted); err != nil {
			return err
		}
		if err := tx.AddFriendPair(ctx, actor, target); err != nil {
			return err
		}
		out = Outcome{Status: StatusBecameFriends, Edge: edge}
		return nil
	})
	if err != nil {
		return Outcome{Status: StatusOf(err)}, err
	}

	e.publish(ctx, out.Status, actor, target, out.Edge.ID)
	return out, nil
}

// AcceptIncoming accepts the pending request edgeID addressed to recipient and
// makes both users friends.
func (e *Engine) AcceptIncoming(ctx context.Context, recipient, edgeID string) (Outcome, error) {
	var out Outcome
	err := e.execute(ctx, "accept", func(ctx context.Context, tx Tx) error {
		incoming, err := tx.GetEdgeByID(ctx, edgeID)
		if err != nil {
			return err
		}
		if incoming.To != recipient {
			return ErrEdgeNotFound
		}
		if incoming.State != models.EdgeStatePending {
			return ErrNotPending
		}

		reverse, err := tx.GetEdge(ctx, recipient, incoming.From)
		switch {
		case errors.Is(err, ErrEdgeNotFound):
			if _, err := tx.CreateEdge(ctx, recipient, incoming.From, models.EdgeStateAccepted); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := tx.UpdateEdge(ctx, reverse.ID, models.EdgeStateAccepted); err != nil {
				return err
			}
		}

		if err := tx.AddFriendPair(ctx, recipient, incoming.From); err != nil {
			return err
		}
		if err := tx.UpdateEdge(ctx, incoming.ID, models.EdgeStateAccepted); err != nil {
			return err
		}
		incoming.State = models.EdgeStateAccepted
		out = Outcome{Status: StatusAccepted, Edge: incoming}
		return nil
	})
	if err != nil {
		return Outcome{Status: StatusOf(err)}, err
	}

	e.publish(ctx, out.Status, recipient, out.Edge.From, out.Edge.ID)
	return out, nil
}

// DeclineIncoming leaves the requester as a follower of recipient. Declining
// an already declined request changes nothing.
func (e *Engine) DeclineIncoming(ctx context.Context, recipient, edgeID string) (Outcome, error) {
	var (
		out     Outcome
		changed bool
	)
	err := e.execute(ctx, "decline", func(ctx context.Context, tx Tx) error {
		changed = false
		incoming, err := tx.GetEdgeByID(ctx, edgeID)
		if err != nil {
			return err
		}
		if incoming.To != recipient {
			return ErrEdgeNotFound
		}

		switch incoming.State {
		case models.EdgeStateFollower:
		case models.EdgeStatePending:
			if err := tx.UpdateEdge(ctx, incoming.ID, models.EdgeStateFollower); err != nil {
				return err
			}
			incoming.State = models.EdgeStateFollower
			changed = true
		default:
			return ErrNotPending
		}

		out = Outcome{Status: StatusDeclined, Edge: incoming}
		return nil
	})
	if err != nil {
		return Outcome{Status: StatusOf(err)}, err
	}

	if changed {
		e.publish(ctx, out.Status, recipient, out.Edge.From, out.Edge.ID)
	}
	return out, nil
}

// CancelOutgoing deletes an edge created by requester. The reverse edge and
// the friends sets are left untouched.
func (e *Engine) CancelOutgoing(ctx context.Context, requester, edgeID string) (Outcome, error) {
	var out Outcome
	err := e.execute(ctx, "cancel", func(ctx context.Context, tx Tx) error {
		outgoing, err := tx.GetEdgeByID(ctx, edgeID)
		if err != nil {
			return err
		}
		if outgoing.From != requester {
			return ErrEdgeNotFound
		}
		if err := tx.DeleteEdge(ctx, outgoing.ID); err != nil {
			return err
		}
		out = Outcome{Status: StatusCancelled, Edge: outgoing}
		return nil
	})
	if err != nil {
		return Outcome{Status: StatusOf(err)}, err
	}

	e.publish(ctx, out.Status, requester, out.Edge.To, out.Edge.ID)
	return out, nil
}

// RemoveFriend ends a mutual friendship. The user's edge is deleted and the
// friend's edge is demoted so the friend stays a follower.
func (e *Engine) RemoveFriend(ctx context.Context, user, friend string) (Outcome, error) {
	var out Outcome
	err := e.execute(ctx, "remove", func(ctx context.Context, tx Tx) error {
		friends, err := tx.IsFriend(ctx, user, friend)
		if err != nil {
			return err
		}
		if !friends {
			return ErrNotFriends
		}

		if err := tx.RemoveFriendPair(ctx, user, friend); err != nil {
			return err
		}

		forward, err := tx.GetEdge(ctx, user, friend)
		if err != nil {
			return err
		}
		if err := tx.DeleteEdge(ctx, forward.ID); err != nil {
			return err
		}

		reverse, err := tx.GetEdge(ctx, friend, user)
		if err != nil {
			return err
		}
		if err := tx.UpdateEdge(ctx, reverse.ID, models.EdgeStateFollower); err != nil {
			return err
		}
		reverse.State = models.EdgeStateFollower
		out = Outcome{Status: StatusRemoved, Edge: reverse}
		return nil
	})
	if err != nil {
		return Outcome{Status: StatusOf(err)}, err
	}

	e.publish(ctx, out.Status, user, friend, out.Edge.ID)
	return out, nil
}

// Relation reports how viewer relates to other.
func (e *Engine) Relation(ctx context.Context, viewer, other string) (Relation, error) {
	if viewer == other {
		return RelationNone, nil
	}

	var rel Relation
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		forward, err := optionalEdge(ctx, tx, viewer, other)
		if err != nil {
			return err
		}
		reverse, err := optionalEdge(ctx, tx, other, viewer)
		if err != nil {
			return err
		}
		friends, err := tx.IsFriend(ctx, viewer, other)
		if err != nil {
			return err
		}
		rel = Classify(forward, reverse, friends)
		return nil
	})
	if err != nil {
		return "", err
	}
	return rel, nil
}

func optionalEdge(ctx context.Context, tx Tx, from, to string) (*models.Edge, error) {
	edge, err := tx.GetEdge(ctx, from, to)
	if errors.Is(err, ErrEdgeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

func (e *Engine) execute(ctx context.Context, op string, fn func(ctx context.Context, tx Tx) error) error {
	ctx, span := logging.StartSpan(ctx, "relationships."+op)
	defer span.End()

	err := e.store.WithinTx(ctx, fn)
	if err == nil {
		return nil
	}

	logger := logging.FromContext(ctx)
	if isRejection(err) {
		logger.Info("relationship transition rejected", "op", op, "error", err)
	} else {
		span.RecordError(err)
		logger.Error("relationship transition failed", "op", op, "error", err)
	}
	return err
}

func isRejection(err error) bool {
	for _, target := range []error{
		ErrAlreadyFriends, ErrAlreadyRequested, ErrDuplicateEdge, ErrEdgeNotFound,
		ErrNotPending, ErrNotFriends, ErrUnknownUser,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (e *Engine) publish(ctx context.Context, status Status, actor, target, edgeID string) {
	if e.publisher == nil {
		return
	}

	event := Event{
		Type:       status,
		Actor:      actor,
		Target:     target,
		EdgeID:     edgeID,
		OccurredAt: e.now(),
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		logging.FromContext(ctx).Warn("publish relationship event", "type", status, "error", err)
	}
}

func (e *Engine) now() time.Time {
	if e.NowFunc != nil {
		return e.NowFunc()
	}
	return time.Now().UTC()
}
