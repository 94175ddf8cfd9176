package security

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGuardGeneratesCodeOnFirstBoot(t *testing.T) {
	g := NewPairingGuard(true, nil)

	code := g.PairingCode()
	require.Regexp(t, regexp.MustCompile(`^\d{6}$`), code)
	assert.False(t, g.IsPaired())
}

func TestNewGuardWithPersistedTokensSkipsCode(t *testing.T) {
	g := NewPairingGuard(true, []string{"aaaa", ""})

	assert.Empty(t, g.PairingCode())
	assert.True(t, g.IsPaired())
	assert.True(t, g.IsAuthenticated("aaaa"))
	assert.False(t, g.IsAuthenticated(""))
}

func TestTryPairHappyPath(t *testing.T) {
	g := NewPairingGuard(true, nil)
	code := g.PairingCode()

	token, err := g.TryPair(code, "client-a")
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.True(t, g.IsAuthenticated(token))

	// Code is consumed; replaying it fails.
	_, err = g.TryPair(code, "client-a")
	assert.ErrorIs(t, err, ErrInvalidCode)

	assert.Contains(t, g.Tokens(), token)
}

func TestTryPairWrongCode(t *testing.T) {
	g := NewPairingGuard(true, nil)

	_, err := g.TryPair("000000", "client-a")
	if g.PairingCode() == "000000" {
		t.Skip("generated code collided with probe value")
	}
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestLockoutAfterRepeatedFailures(t *testing.T) {
	g := NewPairingGuard(true, nil)
	g.now = func() time.Time { return time.Unix(1000, 0) }
	require.NotEqual(t, "999999", g.PairingCode())

	for i := 0; i < lockoutThreshold; i++ {
		_, err := g.TryPair("999999", "attacker")
		assert.ErrorIs(t, err, ErrInvalidCode)
	}

	_, err := g.TryPair("999999", "attacker")
	var le *LockoutError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, lockoutWindow, le.RetryAfter)

	// Even the correct code is refused while locked out.
	_, err = g.TryPair(g.PairingCode(), "attacker")
	assert.True(t, errors.As(err, &le))

	// A different client is unaffected.
	token, err := g.TryPair(g.PairingCode(), "friendly")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestLockoutExpires(t *testing.T) {
	g := NewPairingGuard(true, nil)
	now := time.Unix(1000, 0)
	g.now = func() time.Time { return now }
	require.NotEqual(t, "999999", g.PairingCode())

	for i := 0; i < lockoutThreshold; i++ {
		_, _ = g.TryPair("999999", "attacker")
	}
	_, err := g.TryPair("999999", "attacker")
	var le *LockoutError
	require.True(t, errors.As(err, &le))

	now = now.Add(lockoutWindow)
	token, err := g.TryPair(g.PairingCode(), "attacker")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestRegenerateCode(t *testing.T) {
	g := NewPairingGuard(true, nil)
	first := g.PairingCode()

	second := g.RegenerateCode()
	require.Regexp(t, regexp.MustCompile(`^\d{6}$`), second)
	assert.Equal(t, second, g.PairingCode())

	if first != second {
		_, err := g.TryPair(first, "client-a")
		assert.ErrorIs(t, err, ErrInvalidCode)
	}
}

func TestPairingDisabled(t *testing.T) {
	g := NewPairingGuard(false, nil)

	assert.Empty(t, g.PairingCode())
	assert.Empty(t, g.RegenerateCode())
	assert.True(t, g.IsAuthenticated("anything"))
	assert.True(t, g.IsAuthenticated(""))

	_, err := g.TryPair("123456", "client-a")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestConstantTimeEq(t *testing.T) {
	assert.True(t, ConstantTimeEq("abc", "abc"))
	assert.False(t, ConstantTimeEq("abc", "abd"))
	assert.False(t, ConstantTimeEq("abc", "abcd"))
	assert.True(t, ConstantTimeEq("", ""))
}
