package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/entrelaunch/platform/internal/models"
)

// DefaultRefreshTokenTTL defines the fallback validity period for refresh tokens.
const DefaultRefreshTokenTTL = 30 * 24 * time.Hour

// ErrInvalidRefreshToken signals an unknown, expired or revoked refresh token.
var ErrInvalidRefreshToken = errors.New("auth: invalid refresh token")

// RefreshService issues and rotates opaque refresh tokens. Only the SHA-256
// hash of a token is persisted.
type RefreshService struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewRefreshService constructs a RefreshService backed by the provided database.
func NewRefreshService(db *gorm.DB) (*RefreshService, error) {
	if db == nil {
		return nil, errors.New("auth: db is required")
	}
	return &RefreshService{db: db, ttl: DefaultRefreshTokenTTL, now: time.Now}, nil
}

// WithTTL overrides the refresh token lifetime.
func (s *RefreshService) WithTTL(ttl time.Duration) *RefreshService {
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

// WithClock overrides the time source, primarily for tests.
func (s *RefreshService) WithClock(now func() time.Time) *RefreshService {
	if now != nil {
		s.now = now
	}
	return s
}

// Issue creates a refresh token for the user and returns its plaintext form.
// The plaintext is never stored and cannot be recovered later.
func (s *RefreshService) Issue(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", errors.New("auth: user id is required")
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("auth: generate token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	record := models.RefreshToken{
		UserID:    userID,
		TokenHash: hashToken(token),
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", fmt.Errorf("auth: store refresh token: %w", err)
	}
	return token, nil
}

// Exchange validates the presented token and rotates it, returning the owning
// user ID along with a replacement token.
func (s *RefreshService) Exchange(ctx context.Context, token string) (string, string, error) {
	record, err := s.lookup(ctx, token)
	if err != nil {
		return "", "", err
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(record).Update("revoked_at", &now).Error; err != nil {
		return "", "", fmt.Errorf("auth: revoke refresh token: %w", err)
	}

	next, err := s.Issue(ctx, record.UserID)
	if err != nil {
		return "", "", err
	}
	return record.UserID, next, nil
}

// Revoke invalidates the presented token. Unknown tokens are not an error.
func (s *RefreshService) Revoke(ctx context.Context, token string) error {
	record, err := s.lookup(ctx, token)
	if errors.Is(err, ErrInvalidRefreshToken) {
		return nil
	}
	if err != nil {
		return err
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(record).Update("revoked_at", &now).Error; err != nil {
		return fmt.Errorf("auth: revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAll invalidates every live token belonging to the user.
func (s *RefreshService) RevokeAll(ctx context.Context, userID string) error {
	now := s.now()
	err := s.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", &now).Error
	if err != nil {
		return fmt.Errorf("auth: revoke user tokens: %w", err)
	}
	return nil
}

func (s *RefreshService) lookup(ctx context.Context, token string) (*models.RefreshToken, error) {
	if token == "" {
		return nil, ErrInvalidRefreshToken
	}

	var record models.RefreshToken
	err := s.db.WithContext(ctx).
		First(&record, "token_hash = ?", hashToken(token)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, fmt.Errorf("auth: load refresh token: %w", err)
	}
	if !record.Valid(s.now()) {
		return nil, ErrInvalidRefreshToken
	}
	return &record, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
