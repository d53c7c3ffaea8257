package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Dosada05/tournament-ops/utils"
)

const (
	RoleOrganizer   = "organizer"
	DefaultTokenTTL = 12 * time.Hour
)

// OrganizerClaims is the JWT payload issued to tournament organizers.
type OrganizerClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type AuthService interface {
	IssueOrganizerToken(password string) (token string, expiresAt time.Time, err error)
	ParseToken(token string) (*OrganizerClaims, error)
}

type authService struct {
	secret       []byte
	passwordHash string
	ttl          time.Duration
	now          func() time.Time
}

func NewAuthService(secret, organizerPasswordHash string, ttl time.Duration) AuthService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &authService{
		secret:       []byte(secret),
		passwordHash: organizerPasswordHash,
		ttl:          ttl,
		now:          time.Now,
	}
}

func (s *authService) IssueOrganizerToken(password string) (string, time.Time, error) {
	if s.passwordHash == "" || len(s.secret) == 0 {
		return "", time.Time{}, ErrOrganizerAuthMissing
	}
	if !utils.CheckPasswordHash(password, s.passwordHash) {
		return "", time.Time{}, ErrInvalidCredentials
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := OrganizerClaims{
		Role: RoleOrganizer,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   RoleOrganizer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

func (s *authService) ParseToken(token string) (*OrganizerClaims, error) {
	claims := &OrganizerClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	if !parsed.Valid {
		return nil, ErrAuthenticationFailed
	}
	return claims, nil
}
