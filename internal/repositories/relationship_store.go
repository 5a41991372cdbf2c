package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/friendgraph/backend/internal/db"
	"github.com/friendgraph/backend/internal/logging"
	"github.com/friendgraph/backend/internal/models"
	"github.com/friendgraph/backend/internal/relationships"
)

const (
	txMaxAttempts = 5
	txBaseBackoff = 20 * time.Millisecond
	txMaxBackoff  = 500 * time.Millisecond
)

const edgeColumns = `id, from_id, to_id, state, created_at, updated_at`

// PostgresRelationshipStore persists friend edges and the symmetric friends set.
type PostgresRelationshipStore struct {
	pool db.Pool
	now  func() time.Time
}

// NewPostgresRelationshipStore constructs a relationship store backed by PostgreSQL.
func NewPostgresRelationshipStore(pool db.Pool) *PostgresRelationshipStore {
	return &PostgresRelationshipStore{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// WithinTx runs fn in a SERIALIZABLE transaction. Serialization failures
// re-run fn from the start in a fresh transaction; any other error from fn
// rolls back and is returned as is.
func (s *PostgresRelationshipStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx relationships.Tx) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var attempt int
	for attempt = 0; attempt < txMaxAttempts; attempt++ {
		if err := db.Sleep(ctx, db.Backoff(attempt, txBaseBackoff, txMaxBackoff)); err != nil {
			return err
		}

		err = s.runOnce(ctx, conn, fn)
		if err == nil {
			return nil
		}
		if !db.IsRetryable(err) {
			return err
		}
		logging.FromContext(ctx).Warn("relationship transaction conflict", "attempt", attempt+1, "error", err)
	}

	return fmt.Errorf("relationship transaction: exceeded max attempts (%d): %w", attempt, err)
}

func (s *PostgresRelationshipStore) runOnce(ctx context.Context, conn *pgxpool.Conn, fn func(ctx context.Context, tx relationships.Tx) error) (err error) {
	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin relationship transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(ctx, &postgresTx{tx: tx, now: s.now}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit relationship transaction: %w", err)
	}
	return nil
}

// ListFriends returns the ids in the user's friends set.
func (s *PostgresRelationshipStore) ListFriends(ctx context.Context, userID string) ([]string, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT friend_id
        FROM friendships
        WHERE user_id = $1
        ORDER BY friend_id
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query friends: %w", err)
	}
	defer rows.Close()

	var friends []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		friends = append(friends, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friends: %w", err)
	}

	return friends, nil
}

// ListIncoming returns pending edges addressed to the user.
func (s *PostgresRelationshipStore) ListIncoming(ctx context.Context, userID string) ([]models.Edge, error) {
	return s.listEdges(ctx, `
        SELECT `+edgeColumns+`
        FROM friend_edges
        WHERE to_id = $1 AND state = 'pending'
        ORDER BY created_at DESC, id
    `, userID)
}

// ListOutgoing returns the user's edges that have not turned into friendships.
func (s *PostgresRelationshipStore) ListOutgoing(ctx context.Context, userID string) ([]models.Edge, error) {
	return s.listEdges(ctx, `
        SELECT `+edgeColumns+`
        FROM friend_edges
        WHERE from_id = $1 AND state <> 'accepted'
        ORDER BY created_at DESC, id
    `, userID)
}

// CountFriends returns the size of the user's friends set.
func (s *PostgresRelationshipStore) CountFriends(ctx context.Context, userID string) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM friendships WHERE user_id = $1`, userID)
}

// CountFollowers returns the number of edges pointing at the user.
func (s *PostgresRelationshipStore) CountFollowers(ctx context.Context, userID string) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM friend_edges WHERE to_id = $1`, userID)
}

func (s *PostgresRelationshipStore) listEdges(ctx context.Context, query, userID string) ([]models.Edge, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query friend edges: %w", err)
	}
	defer rows.Close()

	var edges []models.Edge
	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan friend edge: %w", err)
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend edges: %w", err)
	}

	return edges, nil
}

func (s *PostgresRelationshipStore) count(ctx context.Context, query, userID string) (int, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var n int64
	if err := conn.QueryRow(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return int(n), nil
}

type postgresTx struct {
	tx  pgx.Tx
	now func() time.Time
}

func (t *postgresTx) GetEdge(ctx context.Context, from, to string) (models.Edge, error) {
	row := t.tx.QueryRow(ctx, `
        SELECT `+edgeColumns+`
        FROM friend_edges
        WHERE from_id = $1 AND to_id = $2
    `, from, to)
	return t.scanOne(row)
}

func (t *postgresTx) GetEdgeByID(ctx context.Context, edgeID string) (models.Edge, error) {
	row := t.tx.QueryRow(ctx, `
        SELECT `+edgeColumns+`
        FROM friend_edges
        WHERE id = $1
    `, edgeID)
	return t.scanOne(row)
}

func (t *postgresTx) scanOne(row pgx.Row) (models.Edge, error) {
	edge, err := scanEdge(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Edge{}, relationships.ErrEdgeNotFound
		}
		return models.Edge{}, fmt.Errorf("select friend edge: %w", err)
	}
	return edge, nil
}

func (t *postgresTx) CreateEdge(ctx context.Context, from, to string, state models.EdgeState) (models.Edge, error) {
	now := t.now()
	edge := models.Edge{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		State:     state,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := t.tx.Exec(ctx, `
        INSERT INTO friend_edges (id, from_id, to_id, state, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, edge.ID, edge.From, edge.To, string(edge.State), edge.CreatedAt, edge.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return models.Edge{}, relationships.ErrDuplicateEdge
			case "23503":
				return models.Edge{}, relationships.ErrUnknownUser
			}
		}
		return models.Edge{}, fmt.Errorf("insert friend edge: %w", err)
	}

	return edge, nil
}

func (t *postgresTx) UpdateEdge(ctx context.Context, edgeID string, state models.EdgeState) error {
	tag, err := t.tx.Exec(ctx, `
        UPDATE friend_edges
        SET state = $2, updated_at = $3
        WHERE id = $1
    `, edgeID, string(state), t.now())
	if err != nil {
		return fmt.Errorf("update friend edge: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return relationships.ErrEdgeNotFound
	}

	return nil
}

func (t *postgresTx) DeleteEdge(ctx context.Context, edgeID string) error {
	tag, err := t.tx.Exec(ctx, `
        DELETE FROM friend_edges
        WHERE id = $1
    `, edgeID)
	if err != nil {
		return fmt.Errorf("delete friend edge: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return relationships.ErrEdgeNotFound
	}

	return nil
}

func (t *postgresTx) AddFriendPair(ctx context.Context, a, b string) error {
	_, err := t.tx.Exec(ctx, `
        INSERT INTO friendships (user_id, friend_id, created_at)
        VALUES ($1, $2, $3), ($2, $1, $3)
        ON CONFLICT (user_id, friend_id) DO NOTHING
    `, a, b, t.now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return relationships.ErrUnknownUser
		}
		return fmt.Errorf("insert friendship: %w", err)
	}

	return nil
}

func (t *postgresTx) RemoveFriendPair(ctx context.Context, a, b string) error {
	_, err := t.tx.Exec(ctx, `
        DELETE FROM friendships
        WHERE (user_id = $1 AND friend_id = $2)
           OR (user_id = $2 AND friend_id = $1)
    `, a, b)
	if err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}
	return nil
}

func (t *postgresTx) IsFriend(ctx context.Context, a, b string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM friendships WHERE user_id = $1 AND friend_id = $2
        )
    `, a, b).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return exists, nil
}

func scanEdge(row pgx.Row) (models.Edge, error) {
	var (
		edge  models.Edge
		state string
	)
	if err := row.Scan(&edge.ID, &edge.From, &edge.To, &state, &edge.CreatedAt, &edge.UpdatedAt); err != nil {
		return models.Edge{}, err
	}
	edge.State = models.EdgeState(state)
	if !edge.State.Valid() {
		return models.Edge{}, fmt.Errorf("friend edge %s: unknown state %q", edge.ID, state)
	}
	edge.CreatedAt = edge.CreatedAt.UTC()
	edge.UpdatedAt = edge.UpdatedAt.UTC()
	return edge, nil
}

var _ relationships.Store = (*PostgresRelationshipStore)(nil)
var _ relationships.Reader = (*PostgresRelationshipStore)(nil)
