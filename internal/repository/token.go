package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"condoledger/internal/domain"
)

type TokenRepository struct {
	db DBTX
}

func NewTokenRepository(db DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

// FindByPlainToken resolves a bearer token. Only the sha256 hash is stored;
// expired tokens never match.
func (r *TokenRepository) FindByPlainToken(ctx context.Context, plain string) (*domain.APIToken, error) {
	plain = strings.TrimSpace(plain)
	if plain == "" {
		return nil, fmt.Errorf("%w: empty token", domain.ErrNotFound)
	}

	sum := sha256.Sum256([]byte(plain))
	hash := fmt.Sprintf("%x", sum)

	var t domain.APIToken
	err := r.db.QueryRowContext(ctx, `
		SELECT id, token_hash, user_id, name, expires_at
		FROM api_tokens
		WHERE token_hash = $1
		  AND (expires_at IS NULL OR expires_at > $2)`,
		hash, time.Now(),
	).Scan(&t.ID, &t.TokenHash, &t.UserID, &t.Name, &t.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: token", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
