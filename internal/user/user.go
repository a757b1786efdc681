package user

import (
	"fmt"
	"time"
)

// User is the persisted identity record. Only a hash of the token is kept.
type User struct {
	ID        string    `json:"id"`
	TokenHash []byte    `json:"token_hash"`
	CreatedAt time.Time `json:"created_at"`
}

// Credentials is the id/token pair handed to a caller exactly once, at issuance.
type Credentials struct {
	UserID string `json:"user_id"`
	Token  string `json:"user_token"`
}

func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{UserID: %s, Token: REDACTED}", c.UserID)
}

func (c Credentials) GoString() string { return c.String() }
