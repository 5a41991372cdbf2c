package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/friendgraph/backend/internal/auth"
	"github.com/friendgraph/backend/internal/models"
	"github.com/friendgraph/backend/internal/relationships"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUserRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)

	user := models.User{
		ID:        uuid.NewString(),
		Username:  "alice",
		Password:  "secret-hash",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	dup := models.User{
		ID:        uuid.NewString(),
		Username:  user.Username,
		Password:  "another-hash",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when creating duplicate username, got %v", err)
	}

	fetched, err := repo.FindByUsername(ctx, user.Username)
	if err != nil {
		t.Fatalf("find by username: %v", err)
	}
	if fetched.ID != user.ID || fetched.Username != user.Username || fetched.Password != user.Password {
		t.Fatalf("unexpected user fetched: %+v", fetched)
	}

	byID, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if byID.Username != user.Username {
		t.Fatalf("unexpected user fetched by id: %+v", byID)
	}

	if _, err := repo.FindByID(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}

	bob := createTestUser(t, repo, "bob")
	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(all) != 2 || all[0].Username != "alice" || all[1].Username != "bob" {
		t.Fatalf("unexpected user list: %+v", all)
	}

	some, err := repo.FindByIDs(ctx, []string{bob.ID, uuid.NewString()})
	if err != nil {
		t.Fatalf("find by ids: %v", err)
	}
	if len(some) != 1 || some[0].ID != bob.ID {
		t.Fatalf("unexpected users by ids: %+v", some)
	}
}

func TestPostgresSessionStore_SaveFindAndDelete(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, userRepo, "owner")

	store := NewPostgresSessionStore(testPool)
	expires := time.Now().UTC().Add(24 * time.Hour)
	session := auth.Session{
		RefreshToken:    uuid.NewString(),
		AccessToken:     uuid.NewString(),
		UserID:          user.ID,
		ExpiresAt:       expires,
		AccessExpiresAt: expires.Add(-23 * time.Hour),
	}

	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	loaded, err := store.Find(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if loaded.UserID != session.UserID || !timesClose(loaded.ExpiresAt, expires.UTC(), time.Millisecond) {
		t.Fatalf("unexpected session loaded: %+v", loaded)
	}

	byAccess, err := store.FindByAccessToken(ctx, session.AccessToken)
	if err != nil {
		t.Fatalf("find session by access token: %v", err)
	}
	if byAccess.RefreshToken != session.RefreshToken {
		t.Fatalf("unexpected session loaded by access token: %+v", byAccess)
	}

	updated := session
	updated.ExpiresAt = expires.Add(48 * time.Hour)
	if err := store.Save(ctx, updated); err != nil {
		t.Fatalf("update session: %v", err)
	}

	loaded, err = store.Find(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("find session after update: %v", err)
	}
	if !timesClose(loaded.ExpiresAt, updated.ExpiresAt.UTC(), time.Millisecond) {
		t.Fatalf("expected updated expiry, got %v", loaded.ExpiresAt)
	}

	if err := store.Delete(ctx, session.RefreshToken); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := store.Find(ctx, session.RefreshToken); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, session.RefreshToken); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound deleting twice, got %v", err)
	}

	other := session
	other.RefreshToken = uuid.NewString()
	other.AccessToken = uuid.NewString()
	if err := store.Save(ctx, other); err != nil {
		t.Fatalf("save second session: %v", err)
	}
	if err := store.DeleteForUser(ctx, user.ID); err != nil {
		t.Fatalf("delete sessions for user: %v", err)
	}
	if _, err := store.FindByAccessToken(ctx, other.AccessToken); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after user revoke, got %v", err)
	}
}

func TestPostgresRelationshipStore_EndToEnd(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, userRepo, "alice")
	bob := createTestUser(t, userRepo, "bob")

	store := NewPostgresRelationshipStore(testPool)
	engine := relationships.NewEngine(store, nil)

	sent, err := engine.RequestFriendship(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if sent.Status != relationships.StatusSent {
		t.Fatalf("expected SENT got %s", sent.Status)
	}

	incoming, err := store.ListIncoming(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list incoming: %v", err)
	}
	if len(incoming) != 1 || incoming[0].ID != sent.Edge.ID || incoming[0].State != models.EdgeStatePending {
		t.Fatalf("unexpected incoming: %+v", incoming)
	}

	mutual, err := engine.RequestFriendship(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("reciprocal request: %v", err)
	}
	if mutual.Status != relationships.StatusBecameFriends {
		t.Fatalf("expected BECAME_FRIENDS got %s", mutual.Status)
	}

	assertFriends(t, store, alice.ID, bob.ID)
	assertFriends(t, store, bob.ID, alice.ID)

	outgoing, err := store.ListOutgoing(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list outgoing: %v", err)
	}
	if len(outgoing) != 0 {
		t.Fatalf("expected accepted edges to leave the outgoing list, got %+v", outgoing)
	}

	removed, err := engine.RemoveFriend(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("remove friend: %v", err)
	}
	if removed.Edge.From != bob.ID || removed.Edge.State != models.EdgeStateFollower {
		t.Fatalf("expected bob's edge demoted, got %+v", removed.Edge)
	}
	assertFriends(t, store, alice.ID)
	assertFriends(t, store, bob.ID)

	followers, err := store.CountFollowers(ctx, alice.ID)
	if err != nil {
		t.Fatalf("count followers: %v", err)
	}
	if followers != 1 {
		t.Fatalf("expected bob to remain a follower of alice, got %d", followers)
	}

	bobOutgoing, err := store.ListOutgoing(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list outgoing: %v", err)
	}
	if len(bobOutgoing) != 1 || !bobOutgoing[0].Declined() {
		t.Fatalf("expected bob's follower edge in outgoing list, got %+v", bobOutgoing)
	}
}

func TestPostgresRelationshipStore_DeclineAndCancel(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, userRepo, "alice")
	bob := createTestUser(t, userRepo, "bob")

	store := NewPostgresRelationshipStore(testPool)
	engine := relationships.NewEngine(store, nil)

	sent, err := engine.RequestFriendship(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	for i := 0; i < 2; i++ {
		out, err := engine.DeclineIncoming(ctx, bob.ID, sent.Edge.ID)
		if err != nil {
			t.Fatalf("decline #%d: %v", i+1, err)
		}
		if out.Edge.State != models.EdgeStateFollower {
			t.Fatalf("expected follower edge, got %+v", out.Edge)
		}
	}
	assertFriends(t, store, alice.ID)

	if _, err := engine.CancelOutgoing(ctx, alice.ID, sent.Edge.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := engine.CancelOutgoing(ctx, alice.ID, sent.Edge.ID); !errors.Is(err, relationships.ErrEdgeNotFound) {
		t.Fatalf("expected ErrEdgeNotFound on second cancel, got %v", err)
	}
}

func TestPostgresRelationshipStore_UniqueAndForeignKeys(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, userRepo, "alice")
	bob := createTestUser(t, userRepo, "bob")

	store := NewPostgresRelationshipStore(testPool)

	create := func(from, to string) error {
		return store.WithinTx(ctx, func(ctx context.Context, tx relationships.Tx) error {
			_, err := tx.CreateEdge(ctx, from, to, models.EdgeStatePending)
			return err
		})
	}

	if err := create(alice.ID, bob.ID); err != nil {
		t.Fatalf("create edge: %v", err)
	}
	if err := create(alice.ID, bob.ID); !errors.Is(err, relationships.ErrDuplicateEdge) {
		t.Fatalf("expected ErrDuplicateEdge, got %v", err)
	}
	if err := create(alice.ID, uuid.NewString()); !errors.Is(err, relationships.ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}

	engine := relationships.NewEngine(store, nil)
	if _, err := engine.RequestFriendship(ctx, bob.ID, uuid.NewString()); !errors.Is(err, relationships.ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser from engine, got %v", err)
	}
}

func TestPostgresRelationshipStore_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, userRepo, "alice")
	bob := createTestUser(t, userRepo, "bob")

	store := NewPostgresRelationshipStore(testPool)
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context, tx relationships.Tx) error {
		if _, err := tx.CreateEdge(ctx, alice.ID, bob.ID, models.EdgeStateAccepted); err != nil {
			return err
		}
		if err := tx.AddFriendPair(ctx, alice.ID, bob.ID); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	assertFriends(t, store, alice.ID)
	outgoing, err := store.ListOutgoing(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list outgoing: %v", err)
	}
	followers, err := store.CountFollowers(ctx, bob.ID)
	if err != nil {
		t.Fatalf("count followers: %v", err)
	}
	if len(outgoing) != 0 || followers != 0 {
		t.Fatalf("expected no edges after rollback, got outgoing=%d followers=%d", len(outgoing), followers)
	}
}

func TestPostgresRelationshipStore_ConcurrentDuplicateRequests(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, userRepo, "alice")
	bob := createTestUser(t, userRepo, "bob")

	engine := relationships.NewEngine(NewPostgresRelationshipStore(testPool), nil)

	const callers = 4
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.RequestFriendship(ctx, alice.ID, bob.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, relationships.ErrAlreadyRequested), errors.Is(err, relationships.ErrDuplicateEdge):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || rejected != callers-1 {
		t.Fatalf("expected 1 success and %d rejections, got %d/%d", callers-1, successes, rejected)
	}
}

func TestPostgresRelationshipStore_ConcurrentMutualRequests(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, userRepo, "alice")
	bob := createTestUser(t, userRepo, "bob")

	store := NewPostgresRelationshipStore(testPool)
	engine := relationships.NewEngine(store, nil)

	var wg sync.WaitGroup
	statuses := make([]relationships.Status, 2)
	for idx, pair := range [][2]string{{alice.ID, bob.ID}, {bob.ID, alice.ID}} {
		wg.Add(1)
		go func(idx int, actor, target string) {
			defer wg.Done()
			out, err := engine.RequestFriendship(ctx, actor, target)
			if err != nil {
				t.Errorf("request: %v", err)
			}
			statuses[idx] = out.Status
		}(idx, pair[0], pair[1])
	}
	wg.Wait()

	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })
	if statuses[0] != relationships.StatusBecameFriends || statuses[1] != relationships.StatusSent {
		t.Fatalf("expected one SENT and one BECAME_FRIENDS, got %v", statuses)
	}
	assertFriends(t, store, alice.ID, bob.ID)
	assertFriends(t, store, bob.ID, alice.ID)
}

func assertFriends(t *testing.T, store *PostgresRelationshipStore, userID string, want ...string) {
	t.Helper()
	got, err := store.ListFriends(context.Background(), userID)
	if err != nil {
		t.Fatalf("list friends: %v", err)
	}
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("expected friends %v got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected friends %v got %v", want, got)
		}
	}
	count, err := store.CountFriends(context.Background(), userID)
	if err != nil {
		t.Fatalf("count friends: %v", err)
	}
	if count != len(want) {
		t.Fatalf("expected friend count %d got %d", len(want), count)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE friendships, friend_edges, sessions, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, username string) models.User {
	t.Helper()
	user := models.User{
		ID:        uuid.NewString(),
		Username:  username,
		Password:  "password-hash",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func timesClose(a, b time.Time, delta time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= delta
}
