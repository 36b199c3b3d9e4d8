package session

import "time"

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusActive     Status = "active"
	StatusExpired    Status = "expired"
	StatusTerminated Status = "terminated"
)

// Terminal reports whether the status is absorbing: no transition leaves it.
func (s Status) Terminal() bool {
	return s == StatusExpired || s == StatusTerminated
}

type Session struct {
	ID               string     `json:"id"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	DurationMinutes  int        `json:"duration_minutes"`
	ParticipantCount int        `json:"participant_count"`
	Status           Status     `json:"status"`
	LinkActive       bool       `json:"link_active"`
	TerminatedAt     *time.Time `json:"terminated_at,omitempty"`
}

// ExpiredBy reports whether the session's deadline has passed at the given instant.
func (s *Session) ExpiredBy(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// TimeLeft returns whole seconds until expiry, clamped at zero.
func (s *Session) TimeLeft(now time.Time) int {
	left := int(s.ExpiresAt.Sub(now).Seconds())
	if left < 0 {
		left = 0
	}
	return left
}

// MaxExpiry is the hard ceiling an extension may never push past.
func (s *Session) MaxExpiry(maxDuration time.Duration) time.Time {
	return s.CreatedAt.Add(maxDuration)
}
