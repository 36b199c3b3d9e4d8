// Package code implements the one-time numeric join-code registry.
package code

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const codeSpace = 1_000_000 // six digits

type entry struct {
	sessionID string
	secret    string
	createdAt time.Time
	expiresAt time.Time
	used      bool
}

// Payload is what a successful redemption hands back to the caller.
type Payload struct {
	SessionID string
	Secret    string
}

// Registry maps short numeric codes to sessions. A session holds at most one
// live code, and a code redeems at most once. One mutex covers both the code
// table and the session reverse index so a redeem racing a revoke can never
// observe half-cleaned state.
type Registry struct {
	mu        sync.Mutex
	codes     map[string]*entry
	bySession map[string]string
	log       zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		codes:     make(map[string]*entry),
		bySession: make(map[string]string),
		log:       log.With().Str("component", "codes").Logger(),
	}
}

// Issue registers a code for the session, revoking any prior code first. The
// base code is derived from the session identifier so re-issuing is stable,
// then probed linearly past codes owned by other sessions.
func (r *Registry) Issue(sessionID string, expiresAt time.Time, secret string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.bySession[sessionID]; ok {
		delete(r.codes, old)
		delete(r.bySession, sessionID)
	}

	code := r.probe(baseCode(sessionID), sessionID)
	r.codes[code] = &entry{
		sessionID: sessionID,
		secret:    secret,
		createdAt: time.Now().UTC(),
		expiresAt: expiresAt,
	}
	r.bySession[sessionID] = code

	r.log.Info().Str("session_id", sessionID).Str("code", code).Msg("code issued")
	return code
}

// Redeem consumes a code. Unknown, already-used, and expired codes all fail
// identically; an expired entry is purged on the way out. A successful
// redemption also purges the entry, so the code is gone either way.
func (r *Registry) Redeem(code string) (Payload, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.codes[code]
	if !ok {
		r.log.Debug().Str("code", code).Msg("code not found")
		return Payload{}, false
	}
	if e.used {
		r.log.Debug().Str("code", code).Msg("code already used")
		return Payload{}, false
	}
	if time.Now().UTC().After(e.expiresAt) {
		r.log.Debug().Str("code", code).Msg("code expired")
		r.purge(code, e.sessionID)
		return Payload{}, false
	}

	e.used = true
	p := Payload{SessionID: e.sessionID, Secret: e.secret}
	r.purge(code, e.sessionID)

	r.log.Info().Str("session_id", p.SessionID).Str("code", code).Msg("code redeemed")
	return p, true
}

// Revoke drops the session's code, if any.
func (r *Registry) Revoke(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if code, ok := r.bySession[sessionID]; ok {
		r.purge(code, sessionID)
		r.log.Info().Str("session_id", sessionID).Str("code", code).Msg("code revoked")
	}
}

// SweepExpired purges every entry past its expiry and returns how many went.
func (r *Registry) SweepExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	var expired []string
	for code, e := range r.codes {
		if e.expiresAt.Before(now) {
			expired = append(expired, code)
		}
	}
	for _, code := range expired {
		r.purge(code, r.codes[code].sessionID)
	}
	if len(expired) > 0 {
		r.log.Info().Int("count", len(expired)).Msg("expired codes purged")
	}
	return len(expired)
}

// Lookup returns the live code for a session without consuming it.
func (r *Registry) Lookup(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.bySession[sessionID]
	return code, ok
}

// purge removes both directions of the mapping; callers hold the lock.
func (r *Registry) purge(code, sessionID string) {
	delete(r.codes, code)
	delete(r.bySession, sessionID)
}

// probe walks forward from the base code, wrapping inside the code space,
// until it finds a slot that is free or already owned by this session.
func (r *Registry) probe(base int, sessionID string) string {
	for offset := 0; ; offset++ {
		code := fmt.Sprintf("%06d", (base+offset)%codeSpace)
		e, taken := r.codes[code]
		if !taken || e.sessionID == sessionID {
			return code
		}
	}
}

func baseCode(sessionID string) int {
	sum := sha256.Sum256([]byte(sessionID))
	n := new(big.Int).SetBytes(sum[:])
	return int(new(big.Int).Mod(n, big.NewInt(codeSpace)).Int64())
}
