package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestManager(t *testing.T, c *clock, previous ...string) *Manager {
	t.Helper()
	m, err := NewManager(Config{Secret: "current-secret", PreviousSecrets: previous, Now: c.now})
	require.NoError(t, err)
	return m
}

func TestAccessTokenLifetime(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	m := newTestManager(t, c)
	userID := uuid.New()

	token, exp, err := m.IssueAccess(userID)
	require.NoError(t, err)
	require.Equal(t, c.t.Add(3600*time.Second), exp)
	require.Equal(t, time.Hour, m.TokenLifetime())

	c.t = c.t.Add(3599 * time.Second)
	claims, err := m.Parse(token, AudienceAuth)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	require.Equal(t, userID, id)

	c.t = c.t.Add(2 * time.Second)
	_, err = m.Parse(token, AudienceAuth)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestAudiencesAreNotInterchangeable(t *testing.T) {
	c := &clock{t: time.Now()}
	m := newTestManager(t, c)
	userID := uuid.New()

	reset, err := m.IssueReset(userID, "hash")
	require.NoError(t, err)
	_, err = m.Parse(reset, AudienceAuth)
	require.ErrorIs(t, err, ErrTokenInvalid)

	claims, err := m.Parse(reset, AudienceReset)
	require.NoError(t, err)
	require.Equal(t, PasswordFingerprint("hash"), claims.PasswordFingerprint)

	verify, err := m.IssueVerify(userID, "a@x.com")
	require.NoError(t, err)
	_, err = m.Parse(verify, AudienceReset)
	require.ErrorIs(t, err, ErrTokenInvalid)
	claims, err = m.Parse(verify, AudienceVerify)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", claims.Email)
}

func TestRejectsForeignSignatureAndGarbage(t *testing.T) {
	c := &clock{t: time.Now()}
	m := newTestManager(t, c)
	other, err := NewManager(Config{Secret: "someone-else", Now: c.now})
	require.NoError(t, err)

	token, _, err := other.IssueAccess(uuid.New())
	require.NoError(t, err)
	_, err = m.Parse(token, AudienceAuth)
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, err = m.Parse("not.a.jwt", AudienceAuth)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestSecretRotation(t *testing.T) {
	c := &clock{t: time.Now()}
	old, err := NewManager(Config{Secret: "old-secret", Now: c.now})
	require.NoError(t, err)
	token, _, err := old.IssueAccess(uuid.New())
	require.NoError(t, err)

	rotated := newTestManager(t, c, "old-secret")
	_, err = rotated.Parse(token, AudienceAuth)
	require.NoError(t, err)

	withoutOverlap := newTestManager(t, c)
	_, err = withoutOverlap.Parse(token, AudienceAuth)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := NewManager(Config{Secret: "  "})
	require.Error(t, err)
}
