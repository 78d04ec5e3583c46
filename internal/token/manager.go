package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers malformed tokens, bad signatures, and
	// issuer/audience mismatches. Treated as tampering or misuse.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned for a well-signed token whose expiry has
	// elapsed. Callers use it to trigger a re-login prompt.
	ErrExpiredToken = errors.New("token expired")
	// ErrSigningKey is returned when no signing secret is configured.
	ErrSigningKey = errors.New("signing key unavailable")
)

// Claims carried by every session token.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Config for the token manager. Issuer and audience are fixed identifiers
// checked on every verification.
type Config struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Manager issues and verifies HS256-signed session tokens.
type Manager struct {
	config Config
	now    func() time.Time
}

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrSigningKey
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid access TTL configuration")
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Manager{config: cfg, now: time.Now}, nil
}

// Issue creates a session token with the default access TTL.
func (m *Manager) Issue(userID, email, role string) (string, error) {
	return m.IssueWithTTL(userID, email, role, m.config.AccessTTL)
}

// IssueRefresh creates a longer-lived token for re-authentication.
func (m *Manager) IssueRefresh(userID, email, role string) (string, error) {
	return m.IssueWithTTL(userID, email, role, m.config.RefreshTTL)
}

// IssueWithTTL creates a signed token expiring after the given TTL.
func (m *Manager) IssueWithTTL(userID, email, role string, ttl time.Duration) (string, error) {
	if len(m.config.Secret) == 0 {
		return "", ErrSigningKey
	}

	issuedAt := m.now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Audience:  jwt.ClaimStrings{m.config.Audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.config.Secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigningKey, err)
	}
	return signed, nil
}

// Verify validates signature, issuer, audience, and expiry. Expiry failures
// are reported as ErrExpiredToken; every other failure as ErrInvalidToken.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)

	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpiredToken, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TimeRemaining reports how long a verified token stays valid.
func (m *Manager) TimeRemaining(claims *Claims) time.Duration {
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}
	remaining := claims.ExpiresAt.Time.Sub(m.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ExtractBearer pulls the token out of an Authorization header value.
func ExtractBearer(authHeader string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return "", false
	}
	token := strings.TrimSpace(authHeader[len(prefix):])
	return token, token != ""
}
