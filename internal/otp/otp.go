// Package otp issues and verifies the one-time numeric codes used as the
// second login factor.
//
// A challenge is keyed by username; issuing a new one replaces any pending
// challenge for the same user. A challenge is removed once it verifies or is
// found expired. Mismatches leave it in place unless an attempt cap is set.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"math/big"
	"time"
)

// DefaultTTL is how long an issued code stays valid.
const DefaultTTL = 5 * time.Minute

// expiredGrace keeps a challenge around past its expiry so a late
// verification reports Expired rather than NotFound.
const expiredGrace = time.Minute

const (
	codeMin  = 100000
	codeSpan = 900000
)

// ErrBackend wraps failures of the storage behind a registry.
var ErrBackend = errors.New("otp registry backend unavailable")

// Outcome is the result kind of a verification.
type Outcome int

const (
	NotFound Outcome = iota
	Expired
	Mismatch
	Verified
)

func (o Outcome) String() string {
	switch o {
	case NotFound:
		return "not_found"
	case Expired:
		return "expired"
	case Mismatch:
		return "mismatch"
	case Verified:
		return "verified"
	default:
		return "unknown"
	}
}

// Pending describes who a challenge is issued for. Role and UserID are
// captured so verification needs no second user lookup.
type Pending struct {
	Username string `json:"username"`
	Address  string `json:"address"`
	Role     string `json:"role"`
	UserID   int64  `json:"user_id"`
}

// Challenge is a stored one-time code.
type Challenge struct {
	Pending
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

// Result is returned by Verify. Challenge is only set when Outcome is Verified.
type Result struct {
	Outcome   Outcome
	Challenge Challenge
}

// Registry is the one-time code store shared by concurrent logins.
type Registry interface {
	// Issue stores a fresh challenge for p.Username and returns its code.
	Issue(ctx context.Context, p Pending) (string, error)

	// Verify checks code against the pending challenge for username.
	Verify(ctx context.Context, username, code string) (Result, error)
}

// Options tunes a registry. Zero values select the defaults.
type Options struct {
	TTL time.Duration
	// MaxAttempts removes a challenge after that many mismatches. Zero means
	// mismatches never invalidate a challenge before it expires.
	MaxAttempts int
	Now         func() time.Time
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.MaxAttempts < 0 {
		o.MaxAttempts = 0
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// GenerateCode returns a uniformly random six digit code in [100000, 999999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", err
	}
	return big.NewInt(0).Add(n, big.NewInt(codeMin)).String(), nil
}

func codesEqual(stored, submitted string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) == 1
}

func newChallenge(p Pending, code string, now time.Time, ttl time.Duration) Challenge {
	return Challenge{
		Pending:   p,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// evaluate applies the verification rules to a found challenge. It reports
// the outcome and whether the challenge must be removed; when it must be kept
// after a mismatch, the returned challenge carries the updated attempt count.
func evaluate(c Challenge, code string, now time.Time, maxAttempts int) (Outcome, Challenge, bool) {
	if now.After(c.ExpiresAt) {
		return Expired, c, true
	}
	if !codesEqual(c.Code, code) {
		c.Attempts++
		remove := maxAttempts > 0 && c.Attempts >= maxAttempts
		return Mismatch, c, remove
	}
	return Verified, c, true
}
