package user

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/scottschroeder/storyestimate/internal/apperr"
)

// tokenBytes of randomness give a 24 character URL-safe token.
const tokenBytes = 18

// Service issues identities and checks credentials against a Store.
type Service struct {
	store Store
	cost  int
}

// NewService creates a Service. cost is the bcrypt cost used to hash tokens.
func NewService(store Store, cost int) *Service {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Service{store: store, cost: cost}
}

// Issue creates a new user and returns its credentials. The plain token is
// not recoverable afterwards.
func (s *Service) Issue(ctx context.Context) (*Credentials, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash token: %w", err)
	}

	for {
		u := &User{
			ID:        uuid.NewString(),
			TokenHash: hash,
			CreatedAt: time.Now().UTC(),
		}
		err := s.store.Add(ctx, u)
		if errors.Is(err, ErrExists) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &Credentials{UserID: u.ID, Token: token}, nil
	}
}

// Authenticate returns the user id if token belongs to id.
func (s *Service) Authenticate(ctx context.Context, id, token string) (string, error) {
	if id == "" || token == "" {
		return "", apperr.Unauthorized("user could not be authenticated")
	}
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", apperr.Unauthorized("user could not be authenticated")
	}
	if err := bcrypt.CompareHashAndPassword(u.TokenHash, []byte(token)); err != nil {
		return "", apperr.Unauthorized("user could not be authenticated")
	}
	return u.ID, nil
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
