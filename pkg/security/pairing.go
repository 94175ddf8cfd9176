// Package security implements the gateway's credential primitives: the
// pairing guard, webhook signature verification, secret hashing, and the
// startup bind-safety check. All comparisons against stored secrets are
// constant-time.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

const (
	// pairingCodeDigits is the length of the one-time numeric code.
	pairingCodeDigits = 6
	// tokenBytes is the entropy of a minted bearer token (hex-encoded to 64 chars).
	tokenBytes = 32

	// lockoutThreshold failed attempts within lockoutWindow arm a lockout.
	lockoutThreshold = 5
	lockoutWindow    = 5 * time.Minute
)

// ErrInvalidCode is returned by TryPair when the submitted code does not match.
var ErrInvalidCode = errors.New("invalid pairing code")

// LockoutError reports an active per-client lockout.
type LockoutError struct {
	// RetryAfter is the remaining lockout duration, rounded up to whole seconds.
	RetryAfter time.Duration
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("too many failed pairing attempts, retry in %ds", int(e.RetryAfter.Seconds()))
}

type failureState struct {
	count   int
	firstAt time.Time
}

// PairingGuard holds the short-lived one-time pairing code and the set of
// minted bearer tokens. When pairing is not required every check
// short-circuits to allow.
//
// The guard only keeps tokens in memory; the admission layer persists them to
// the config file after each successful pair.
type PairingGuard struct {
	requirePairing bool

	mu       sync.Mutex
	code     string
	tokens   map[string]struct{}
	failures map[string]*failureState
	now      func() time.Time
}

// NewPairingGuard creates a guard seeded with previously persisted tokens.
// When pairing is required and no tokens exist yet, a fresh one-time code is
// generated immediately so first boot can print it.
func NewPairingGuard(requirePairing bool, tokens []string) *PairingGuard {
	g := &PairingGuard{
		requirePairing: requirePairing,
		tokens:         make(map[string]struct{}, len(tokens)),
		failures:       make(map[string]*failureState),
		now:            time.Now,
	}
	for _, t := range tokens {
		if t != "" {
			g.tokens[t] = struct{}{}
		}
	}
	if requirePairing && len(g.tokens) == 0 {
		g.code = generatePairingCode()
	}
	return g
}

// RequirePairing reports whether bearer auth is enforced.
func (g *PairingGuard) RequirePairing() bool { return g.requirePairing }

// IsPaired reports whether at least one bearer token has been minted.
func (g *PairingGuard) IsPaired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tokens) > 0
}

// PairingCode returns the current one-time code, if any.
func (g *PairingGuard) PairingCode() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.code
}

// RegenerateCode mints a fresh one-time code, replacing any existing one.
// Returns the new code, or "" when pairing is disabled.
func (g *PairingGuard) RegenerateCode() string {
	if !g.requirePairing {
		return ""
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.code = generatePairingCode()
	return g.code
}

// TryPair exchanges a one-time code for a new bearer token. clientKey scopes
// the failure counter (one lockout per client, not global). On success the
// code is consumed; further pairs need RegenerateCode.
func (g *PairingGuard) TryPair(code, clientKey string) (string, error) {
	if !g.requirePairing {
		return "", ErrInvalidCode
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if fs, ok := g.failures[clientKey]; ok {
		if now.Sub(fs.firstAt) >= lockoutWindow {
			delete(g.failures, clientKey)
		} else if fs.count >= lockoutThreshold {
			remaining := lockoutWindow - now.Sub(fs.firstAt)
			return "", &LockoutError{RetryAfter: remaining.Round(time.Second)}
		}
	}

	if g.code == "" || !ConstantTimeEq(code, g.code) {
		fs, ok := g.failures[clientKey]
		if !ok {
			fs = &failureState{firstAt: now}
			g.failures[clientKey] = fs
		}
		fs.count++
		return "", ErrInvalidCode
	}

	g.code = ""
	delete(g.failures, clientKey)

	token := generateToken()
	g.tokens[token] = struct{}{}
	return token, nil
}

// IsAuthenticated reports whether token is a minted bearer token. The
// membership test visits every stored token so timing does not reveal which
// prefix matched.
func (g *PairingGuard) IsAuthenticated(token string) bool {
	if !g.requirePairing {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	match := 0
	for t := range g.tokens {
		if len(t) == len(token) && subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			match = 1
		}
	}
	return match == 1
}

// Tokens returns a snapshot of all minted tokens for persistence.
func (g *PairingGuard) Tokens() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.tokens))
	for t := range g.tokens {
		out = append(out, t)
	}
	return out
}

// ConstantTimeEq compares two strings without early exit. Unequal lengths
// return false immediately; length is not secret here.
func ConstantTimeEq(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func generatePairingCode() string {
	max := big.NewInt(1)
	for i := 0; i < pairingCodeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		// crypto/rand failure means the platform RNG is broken; refusing to
		// mint a guessable code is the only safe option.
		panic(fmt.Sprintf("pairing code generation failed: %v", err))
	}
	return fmt.Sprintf("%0*d", pairingCodeDigits, n)
}

func generateToken() string {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("token generation failed: %v", err))
	}
	return hex.EncodeToString(buf)
}
