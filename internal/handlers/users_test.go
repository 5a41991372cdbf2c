package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/friendgraph/backend/internal/models"
	"github.com/friendgraph/backend/internal/relationships"
)

type failingReader struct {
	relationships.Reader
}

func (failingReader) ListFriends(context.Context, string) ([]string, error) {
	return nil, errors.New("db down")
}

func TestUserHandlerList(t *testing.T) {
	api := newTestAPI(t, "alice", "bob", "carol")
	if rec := api.do(t, "alice", http.MethodPost, "/api/v1/users/bob/friend-request"); rec.Code != http.StatusCreated {
		t.Fatalf("send: %d", rec.Code)
	}
	if rec := api.do(t, "bob", http.MethodPost, "/api/v1/users/alice/friend-request"); rec.Code != http.StatusCreated {
		t.Fatalf("reciprocal send: %d", rec.Code)
	}

	rec := api.do(t, "", http.MethodGet, "/api/v1/users")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	resp := decodeBody[listUsersResponse](t, rec)
	if len(resp.Users) != 3 {
		t.Fatalf("expected 3 users got %d", len(resp.Users))
	}
	alice := resp.Users[0]
	if alice.Username != "alice" || alice.FriendsCount != 1 || alice.Subscribers != 1 {
		t.Fatalf("unexpected alice entry: %+v", alice)
	}
	if len(alice.Friends) != 1 || alice.Friends[0].Username != "bob" {
		t.Fatalf("unexpected alice friends: %+v", alice.Friends)
	}
	if carol := resp.Users[2]; carol.FriendsCount != 0 || len(carol.Friends) != 0 {
		t.Fatalf("unexpected carol entry: %+v", carol)
	}
}

func TestUserHandlerFailures(t *testing.T) {
	users := newInMemoryUserStore(models.User{ID: "alice", Username: "alice"})

	cases := []struct {
		name       string
		handler    UserHandler
		wantStatus int
	}{
		{"missingDeps", UserHandler{}, http.StatusInternalServerError},
		{"readerFails", UserHandler{Users: users, Relationships: failingReader{}}, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tc.handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))
			if rec.Code != tc.wantStatus {
				t.Fatalf("list: expected status %d got %d", tc.wantStatus, rec.Code)
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/alice", nil)
			req.SetPathValue("id", "alice")
			rec = httptest.NewRecorder()
			tc.handler.Get(rec, req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("get: expected status %d got %d", tc.wantStatus, rec.Code)
			}
		})
	}
}
