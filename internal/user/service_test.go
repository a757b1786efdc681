package user

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/scottschroeder/storyestimate/internal/apperr"
)

func newTestService() (*Service, *MemoryStore) {
	store := NewMemoryStore()
	return NewService(store, bcrypt.MinCost), store
}

func TestIssue(t *testing.T) {
	svc, store := newTestService()

	creds, err := svc.Issue(context.Background())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if creds.UserID == "" {
		t.Fatal("expected non-empty user id")
	}
	if len(creds.Token) != 24 {
		t.Errorf("expected 24 char token, got %q", creds.Token)
	}
	if store.Count() != 1 {
		t.Errorf("expected 1 stored user, got %d", store.Count())
	}

	u, _ := store.Get(context.Background(), creds.UserID)
	if string(u.TokenHash) == creds.Token {
		t.Error("token stored in plain text")
	}
}

func TestIssueUnique(t *testing.T) {
	svc, _ := newTestService()

	c1, _ := svc.Issue(context.Background())
	c2, _ := svc.Issue(context.Background())
	if c1.UserID == c2.UserID {
		t.Error("expected unique user ids")
	}
	if c1.Token == c2.Token {
		t.Error("expected unique tokens")
	}
}

func TestAuthenticateValid(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	creds, _ := svc.Issue(ctx)
	id, err := svc.Authenticate(ctx, creds.UserID, creds.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if id != creds.UserID {
		t.Errorf("expected user id %q, got %q", creds.UserID, id)
	}
}

func TestAuthenticateInvalid(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	alice, _ := svc.Issue(ctx)
	bob, _ := svc.Issue(ctx)

	cases := []struct {
		name      string
		id, token string
	}{
		{"wrong token", alice.UserID, bob.Token},
		{"unknown user", "not-a-user", alice.Token},
		{"empty token", alice.UserID, ""},
		{"empty id", "", alice.Token},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Authenticate(ctx, tc.id, tc.token)
			if !apperr.Is(err, apperr.KindUnauthorized) {
				t.Fatalf("expected unauthorized, got %v", err)
			}
		})
	}
}

func TestCredentialsStringRedactsToken(t *testing.T) {
	c := Credentials{UserID: "u1", Token: "secret"}
	if got := c.String(); got != "Credentials{UserID: u1, Token: REDACTED}" {
		t.Errorf("unexpected string %q", got)
	}
}
