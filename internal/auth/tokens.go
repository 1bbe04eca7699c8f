package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Audiences keep the three token kinds from being used in place of each other.
const (
	AudienceAuth   = "snapfeed:auth"
	AudienceReset  = "snapfeed:reset"
	AudienceVerify = "snapfeed:verify"
)

const defaultLifetime = time.Hour

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims carries the subject plus the audience specific extras.
type Claims struct {
	PasswordFingerprint string `json:"password_fgpt,omitempty"`
	Email               string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed subject", ErrTokenInvalid)
	}
	return id, nil
}

type Config struct {
	Secret string
	// PreviousSecrets are still accepted for verification while a rotation
	// is in progress. New tokens are always signed with Secret.
	PreviousSecrets []string
	TokenLifetime   time.Duration
	ResetLifetime   time.Duration
	VerifyLifetime  time.Duration
	Now             func() time.Time
}

// Manager issues and verifies HS256 tokens with a single server held secret.
type Manager struct {
	signingKey []byte
	verifyKeys [][]byte
	lifetimes  map[string]time.Duration
	now        func() time.Time
}

func NewManager(cfg Config) (*Manager, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("token secret is required")
	}

	m := &Manager{
		signingKey: []byte(secret),
		verifyKeys: [][]byte{[]byte(secret)},
		lifetimes: map[string]time.Duration{
			AudienceAuth:   orDefault(cfg.TokenLifetime),
			AudienceReset:  orDefault(cfg.ResetLifetime),
			AudienceVerify: orDefault(cfg.VerifyLifetime),
		},
		now: cfg.Now,
	}
	for _, prev := range cfg.PreviousSecrets {
		if prev = strings.TrimSpace(prev); prev != "" && prev != secret {
			m.verifyKeys = append(m.verifyKeys, []byte(prev))
		}
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

func orDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultLifetime
	}
	return d
}

// TokenLifetime reports how long access tokens stay valid.
func (m *Manager) TokenLifetime() time.Duration {
	return m.lifetimes[AudienceAuth]
}

// IssueAccess returns a bearer token for the user and its expiry.
func (m *Manager) IssueAccess(userID uuid.UUID) (string, time.Time, error) {
	return m.issue(AudienceAuth, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()}})
}

// IssueReset returns a password reset token bound to the current password
// hash, so it stops working once the password changes.
func (m *Manager) IssueReset(userID uuid.UUID, passwordHash string) (string, error) {
	token, _, err := m.issue(AudienceReset, Claims{
		PasswordFingerprint: PasswordFingerprint(passwordHash),
		RegisteredClaims:    jwt.RegisteredClaims{Subject: userID.String()},
	})
	return token, err
}

// IssueVerify returns an email verification token for the given address.
func (m *Manager) IssueVerify(userID uuid.UUID, email string) (string, error) {
	token, _, err := m.issue(AudienceVerify, Claims{
		Email:            email,
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()},
	})
	return token, err
}

func (m *Manager) issue(audience string, claims Claims) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.lifetimes[audience])
	claims.Audience = jwt.ClaimStrings{audience}
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(exp)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies signature, expiry and audience. The current secret is tried
// first, then any previous ones.
func (m *Manager) Parse(token, audience string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)

	var lastErr error
	for _, key := range m.verifyKeys {
		var claims Claims
		_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		})
		switch {
		case err == nil:
			return &claims, nil
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			lastErr = err
			continue
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, lastErr)
}

// PasswordFingerprint derives a stable, non-reversible marker of a password hash.
func PasswordFingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:])
}
