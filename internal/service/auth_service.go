package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/quizdrive/quizdrive-backend/internal/config"
	"github.com/quizdrive/quizdrive-backend/internal/model"
	"github.com/quizdrive/quizdrive-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// TokenType distinguishes organizer vs participant tokens.
type TokenType string

const (
	TokenTypeOrganizer   TokenType = "organizer"
	TokenTypeParticipant TokenType = "participant"
)

// Claims extends JWT standard claims with app-specific fields.
//
// Organizer tokens are the short-lived capability replacing any notion of a
// shared unlock code: every admin-only operation requires one, and each
// organizer holds their own credentials.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	UserID    int       `json:"user_id,omitempty"`    // Organizer only
	SessionID string    `json:"session_id,omitempty"` // Participant only
}

// AuthService handles authentication and JWT issuance.
type AuthService struct {
	cfg           *config.Config
	organizerRepo *repository.OrganizerRepository
	rdb           *redis.Client
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, organizerRepo *repository.OrganizerRepository, rdb *redis.Client) *AuthService {
	return &AuthService{cfg: cfg, organizerRepo: organizerRepo, rdb: rdb}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// OrganizerLogin verifies credentials and issues an organizer token.
func (s *AuthService) OrganizerLogin(ctx context.Context, email, password string) (string, *model.Organizer, error) {
	organizer, err := s.organizerRepo.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := s.CheckPassword(organizer.PasswordHash, password); err != nil {
		return "", nil, err
	}

	token, jti, err := s.GenerateOrganizerToken(organizer.ID)
	if err != nil {
		return "", nil, err
	}

	// Latest login wins: the stored JTI invalidates earlier tokens.
	sessionKey := config.CacheKey.OrganizerSessionKey(organizer.ID)
	if err := s.rdb.Set(ctx, sessionKey, jti, s.cfg.OrganizerTokenExpiry).Err(); err != nil {
		return "", nil, fmt.Errorf("store organizer session: %w", err)
	}

	return token, organizer, nil
}

// GenerateOrganizerToken creates a short-lived JWT for an organizer and
// returns the token together with its JTI.
func (s *AuthService) GenerateOrganizerToken(organizerID int) (string, string, error) {
	now := time.Now()
	jti := uuid.New().String()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.Itoa(organizerID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.OrganizerTokenExpiry)),
		},
		TokenType: TokenTypeOrganizer,
		UserID:    organizerID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

// CheckOrganizerSession verifies the token is still the organizer's active
// session. Tokens issued before the most recent login are rejected.
func (s *AuthService) CheckOrganizerSession(ctx context.Context, claims *Claims) error {
	stored, err := s.rdb.Get(ctx, config.CacheKey.OrganizerSessionKey(claims.UserID)).Result()
	if err != nil {
		return errors.New("no active session")
	}
	if stored != claims.ID {
		return errors.New("session superseded by a newer login")
	}
	return nil
}

// GenerateParticipantToken creates a JWT bound to one exam session. It
// guards the session endpoints so only the opener can drive that session.
func (s *AuthService) GenerateParticipantToken(sessionID uuid.UUID) (string, error) {
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   sessionID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType: TokenTypeParticipant,
		SessionID: sessionID.String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
