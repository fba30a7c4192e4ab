package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// APIKeyStore issues and verifies workspace-scoped API keys.
type APIKeyStore struct {
	pool *pgxpool.Pool
}

// NewAPIKeyStore constructs the store.
func NewAPIKeyStore(pool *pgxpool.Pool) *APIKeyStore {
	return &APIKeyStore{pool: pool}
}

// Issue creates a new key for the workspace and returns the plaintext token.
// The secret half is stored only as a bcrypt hash.
func (s *APIKeyStore) Issue(ctx context.Context, workspaceID, label string) (string, error) {
	if workspaceID == "" {
		return "", ErrWorkspaceRequired
	}
	secretBytes := make([]byte, 24)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("shared: generate api key: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("shared: hash api key: %w", err)
	}
	keyID := uuid.NewString()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO workspace_api_keys (id, workspace_id, label, secret_hash, created_at) VALUES ($1, $2, $3, $4, $5)`,
		keyID, workspaceID, label, string(hash), time.Now())
	if err != nil {
		return "", err
	}
	return keyID + "." + secret, nil
}

// Verify checks a presented token and returns the owning workspace id.
func (s *APIKeyStore) Verify(ctx context.Context, token string) (string, error) {
	keyID, secret, ok := strings.Cut(token, ".")
	if !ok || keyID == "" || secret == "" {
		return "", ErrInvalidAPIKey
	}
	var workspaceID, hash string
	err := s.pool.QueryRow(ctx,
		`SELECT workspace_id, secret_hash FROM workspace_api_keys WHERE id = $1`, keyID).
		Scan(&workspaceID, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrInvalidAPIKey
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		return "", ErrInvalidAPIKey
	}
	return workspaceID, nil
}
