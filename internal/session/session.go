// Package session issues bearer tokens and keeps a Redis deny-list of tokens
// revoked by logout.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/harry-2401/reddit/internal/shared/apperr"
	"github.com/harry-2401/reddit/internal/shared/jwt"

	"github.com/redis/go-redis/v9"
)

const revokedPrefix = "jwt:revoked:"

type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type Manager struct {
	signer *jwt.Signer
	rdb    *redis.Client
}

func NewManager(signer *jwt.Signer, rdb *redis.Client) *Manager {
	return &Manager{signer: signer, rdb: rdb}
}

func (m *Manager) Issue(userID uint64) (Token, error) {
	if userID == 0 {
		return Token{}, apperr.ErrUnauthorized
	}
	tok, c, err := m.signer.Make(userID)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{AccessToken: tok, ExpiresAt: c.ExpiresAt}, nil
}

// Verify implements httpx.Verifier. A token whose id is on the deny-list is
// rejected, and so is every token while Redis cannot be asked.
func (m *Manager) Verify(ctx context.Context, tok string) (uint64, error) {
	c, err := m.signer.Parse(tok)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", apperr.ErrUnauthorized, err)
	}
	n, err := m.rdb.Exists(ctx, revokedPrefix+c.ID).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: check revocation: %w", apperr.ErrInfrastructure, err)
	}
	if n > 0 {
		return 0, fmt.Errorf("%w: token revoked", apperr.ErrUnauthorized)
	}
	return c.UserID, nil
}

// Revoke puts the token on the deny-list until it would have expired anyway.
func (m *Manager) Revoke(ctx context.Context, tok string) error {
	c, err := m.signer.Parse(tok)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrUnauthorized, err)
	}
	ttl := time.Until(c.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := m.rdb.Set(ctx, revokedPrefix+c.ID, c.UserID, ttl).Err(); err != nil {
		return fmt.Errorf("%w: revoke token: %w", apperr.ErrInfrastructure, err)
	}
	return nil
}
