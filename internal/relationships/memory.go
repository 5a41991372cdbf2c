package relationships

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/friendgraph/backend/internal/models"
)

type edgeKey struct {
	from string
	to   string
}

type memoryState struct {
	edges   map[string]models.Edge
	pairs   map[edgeKey]string
	friends map[string]map[string]struct{}
}

func newMemoryState() memoryState {
	return memoryState{
		edges:   make(map[string]models.Edge),
		pairs:   make(map[edgeKey]string),
		friends: make(map[string]map[string]struct{}),
	}
}

func (s memoryState) clone() memoryState {
	out := newMemoryState()
	for id, edge := range s.edges {
		out.edges[id] = edge
	}
	for key, id := range s.pairs {
		out.pairs[key] = id
	}
	for user, set := range s.friends {
		copied := make(map[string]struct{}, len(set))
		for friend := range set {
			copied[friend] = struct{}{}
		}
		out.friends[user] = copied
	}
	return out
}

// MemoryStore implements Store and Reader for tests and local development.
// Transactions are serialized and work on a private copy of the state that
// replaces the shared one only when the callback succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state memoryState
	now   func() time.Time
}

// NewMemoryStore returns an empty in-memory relationship store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: newMemoryState(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithinTx runs fn against a snapshot and commits it atomically on success.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := s.state.clone()
	if err := fn(ctx, &memoryTx{state: working, now: s.now}); err != nil {
		return err
	}
	s.state = working
	return nil
}

// ListFriends returns the ids in the user's friends set.
func (s *MemoryStore) ListFriends(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.state.friends[userID]))
	for friend := range s.state.friends[userID] {
		out = append(out, friend)
	}
	sort.Strings(out)
	return out, nil
}

// ListIncoming returns pending edges addressed to the user.
func (s *MemoryStore) ListIncoming(_ context.Context, userID string) ([]models.Edge, error) {
	return s.filterEdges(func(e models.Edge) bool {
		return e.To == userID && e.State == models.EdgeStatePending
	}), nil
}

// ListOutgoing returns the user's edges that have not turned into friendships.
func (s *MemoryStore) ListOutgoing(_ context.Context, userID string) ([]models.Edge, error) {
	return s.filterEdges(func(e models.Edge) bool {
		return e.From == userID && e.State != models.EdgeStateAccepted
	}), nil
}

// CountFriends returns the size of the user's friends set.
func (s *MemoryStore) CountFriends(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.friends[userID]), nil
}

// CountFollowers returns the number of edges pointing at the user.
func (s *MemoryStore) CountFollowers(_ context.Context, userID string) (int, error) {
	return len(s.filterEdges(func(e models.Edge) bool { return e.To == userID })), nil
}

func (s *MemoryStore) filterEdges(keep func(models.Edge) bool) []models.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Edge
	for _, edge := range s.state.edges {
		if keep(edge) {
			out = append(out, edge)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

type memoryTx struct {
	state memoryState
	now   func() time.Time
}

func (t *memoryTx) GetEdge(_ context.Context, from, to string) (models.Edge, error) {
	id, ok := t.state.pairs[edgeKey{from: from, to: to}]
	if !ok {
		return models.Edge{}, ErrEdgeNotFound
	}
	return t.state.edges[id], nil
}

func (t *memoryTx) GetEdgeByID(_ context.Context, edgeID string) (models.Edge, error) {
	edge, ok := t.state.edges[edgeID]
	if !ok {
		return models.Edge{}, ErrEdgeNotFound
	}
	return edge, nil
}

func (t *memoryTx) CreateEdge(_ context.Context, from, to string, state models.EdgeState) (models.Edge, error) {
	if !state.Valid() {
		return models.Edge{}, fmt.Errorf("create edge: unknown state %q", state)
	}
	key := edgeKey{from: from, to: to}
	if _, exists := t.state.pairs[key]; exists {
		return models.Edge{}, ErrDuplicateEdge
	}

	now := t.now()
	edge := models.Edge{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		State:     state,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.state.edges[edge.ID] = edge
	t.state.pairs[key] = edge.ID
	return edge, nil
}

func (t *memoryTx) UpdateEdge(_ context.Context, edgeID string, state models.EdgeState) error {
	if !state.Valid() {
		return fmt.Errorf("update edge: unknown state %q", state)
	}
	edge, ok := t.state.edges[edgeID]
	if !ok {
		return ErrEdgeNotFound
	}
	edge.State = state
	edge.UpdatedAt = t.now()
	t.state.edges[edgeID] = edge
	return nil
}

func (t *memoryTx) DeleteEdge(_ context.Context, edgeID string) error {
	edge, ok := t.state.edges[edgeID]
	if !ok {
		return ErrEdgeNotFound
	}
	delete(t.state.edges, edgeID)
	delete(t.state.pairs, edgeKey{from: edge.From, to: edge.To})
	return nil
}

func (t *memoryTx) AddFriendPair(_ context.Context, a, b string) error {
	t.link(a, b)
	t.link(b, a)
	return nil
}

func (t *memoryTx) RemoveFriendPair(_ context.Context, a, b string) error {
	delete(t.state.friends[a], b)
	delete(t.state.friends[b], a)
	return nil
}

func (t *memoryTx) IsFriend(_ context.Context, a, b string) (bool, error) {
	_, ok := t.state.friends[a][b]
	return ok, nil
}

func (t *memoryTx) link(user, friend string) {
	set, ok := t.state.friends[user]
	if !ok {
		set = make(map[string]struct{})
		t.state.friends[user] = set
	}
	set[friend] = struct{}{}
}

var _ Store = (*MemoryStore)(nil)
var _ Reader = (*MemoryStore)(nil)
