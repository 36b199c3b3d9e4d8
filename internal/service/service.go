// Package service is the session lifecycle coordinator. It owns every
// caller-visible state transition and threads the store, the code registry,
// and the connection registry together.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hush/relay/internal/code"
	"hush/relay/internal/relay"
	"hush/relay/internal/session"
)

type Config struct {
	BaseURL     string
	MaxDuration time.Duration
	IDLength    int
}

type Service struct {
	store session.Store
	codes *code.Registry
	conns *relay.Registry
	queue *relay.Queue
	cfg   Config
	log   zerolog.Logger

	// Serializes read-modify-write sequences against the store. Registry-wide
	// rather than per-session: contention is at most two parties per session.
	mu sync.Mutex

	now func() time.Time
}

func New(store session.Store, codes *code.Registry, conns *relay.Registry, queue *relay.Queue, cfg Config, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		codes: codes,
		conns: conns,
		queue: queue,
		cfg:   cfg,
		log:   log.With().Str("component", "lifecycle").Logger(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Created bundles what a fresh session hands back to its creator.
type Created struct {
	Session *session.Session
	Link    string
	Code    string
}

// Create persists a waiting session and issues its join code.
func (s *Service) Create(ctx context.Context, durationMinutes int) (*Created, error) {
	maxMinutes := int(s.cfg.MaxDuration.Minutes())
	if durationMinutes < 1 || durationMinutes > maxMinutes {
		return nil, fmt.Errorf("%w: duration must be between 1 and %d minutes", ErrInvalidArgument, maxMinutes)
	}

	now := s.now()
	sess := &session.Session{
		ID:               session.NewID(s.cfg.IDLength),
		CreatedAt:        now,
		ExpiresAt:        now.Add(time.Duration(durationMinutes) * time.Minute),
		DurationMinutes:  durationMinutes,
		ParticipantCount: 1,
		Status:           session.StatusWaiting,
		LinkActive:       true,
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("%w: persist session: %v", ErrInternal, err)
	}

	joinCode := s.codes.Issue(sess.ID, sess.ExpiresAt, session.NewSecret())
	metricSessionsCreated.Inc()

	s.log.Info().
		Str("session_id", sess.ID).
		Int("duration_min", durationMinutes).
		Str("code", joinCode).
		Msg("session created")

	return &Created{
		Session: sess,
		Link:    s.cfg.BaseURL + "c/" + sess.ID,
		Code:    joinCode,
	}, nil
}

// Joined is the payload a second participant receives on entry.
type Joined struct {
	Session *session.Session
	Secret  string
}

// RedeemCode consumes a join code and admits the second participant. The code
// is burned even if the session turns out to be dead; single use is strict.
func (s *Service) RedeemCode(ctx context.Context, joinCode string) (*Joined, error) {
	payload, ok := s.codes.Redeem(joinCode)
	if !ok {
		return nil, fmt.Errorf("%w: invalid or expired code", ErrNotFound)
	}
	sess, err := s.join(ctx, payload.SessionID)
	if err != nil {
		return nil, err
	}
	metricSessionsJoined.WithLabelValues("code").Inc()
	s.log.Info().Str("session_id", sess.ID).Str("code", joinCode).Msg("participant joined via code")
	return &Joined{Session: sess, Secret: payload.Secret}, nil
}

// JoinByID admits the second participant through the direct-link flow.
func (s *Service) JoinByID(ctx context.Context, id string) (*session.Session, error) {
	sess, err := s.join(ctx, id)
	if err != nil {
		return nil, err
	}
	metricSessionsJoined.WithLabelValues("link").Inc()
	s.log.Info().Str("session_id", sess.ID).Msg("participant joined via link")
	return sess, nil
}

// join performs the waiting→active transition under the RMW lock.
func (s *Service) join(ctx context.Context, id string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return nil, ErrGone
	}
	if sess.ExpiredBy(s.now()) {
		s.lazyExpire(ctx, sess)
		return nil, ErrGone
	}
	if sess.ParticipantCount >= 2 {
		return nil, ErrConflict
	}

	sess.ParticipantCount = 2
	sess.Status = session.StatusActive
	sess.LinkActive = false
	if err := s.store.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("%w: persist join: %v", ErrInternal, err)
	}
	return sess, nil
}

// GetStatus returns the session view, reconciling wall-clock expiry lazily.
func (s *Service) GetStatus(ctx context.Context, id string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.Status.Terminal() && sess.ExpiredBy(s.now()) {
		s.lazyExpire(ctx, sess)
	}
	return sess, nil
}

// Extend pushes expiry out by the given minutes, clamped to the session's
// hard ceiling. Clamping is silent: extension never fails for asking too much.
func (s *Service) Extend(ctx context.Context, id string, minutes int) (*session.Session, error) {
	if minutes < 1 {
		return nil, fmt.Errorf("%w: minutes must be positive", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != session.StatusActive {
		return nil, ErrInvalidState
	}

	newExpiry := sess.ExpiresAt.Add(time.Duration(minutes) * time.Minute)
	if ceiling := sess.MaxExpiry(s.cfg.MaxDuration); newExpiry.After(ceiling) {
		newExpiry = ceiling
	}
	sess.ExpiresAt = newExpiry
	if err := s.store.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("%w: persist extension: %v", ErrInternal, err)
	}
	metricSessionsExtended.Inc()

	s.log.Info().Str("session_id", id).Int("minutes", minutes).Time("expires_at", newExpiry).Msg("session extended")
	return sess, nil
}

// Terminate tears the session down. Channel close, code revocation, and queue
// drop are independent best-effort steps; only a failed record delete is
// surfaced, and by then the in-memory cleanup has already happened and stays.
func (s *Service) Terminate(ctx context.Context, id string) error {
	if _, err := s.get(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("session_id", id).Msg("termination requested")

	s.queue.Drop(id)
	s.conns.Terminate(ctx, id)
	s.codes.Revoke(id)

	if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, session.ErrNotFound) {
		s.log.Error().Err(err).Str("session_id", id).Msg("failed to delete session record")
		return fmt.Errorf("%w: delete session: %v", ErrInternal, err)
	}
	metricSessionsTerminated.Inc()

	s.log.Info().Str("session_id", id).Msg("session terminated")
	return nil
}

// Cleanup is the operational escape hatch: every wall-clock-expired session is
// torn down immediately, connections and codes included. Returns how many.
func (s *Service) Cleanup(ctx context.Context) (int, error) {
	expired, err := s.store.ExpiredBefore(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("%w: expiry scan: %v", ErrInternal, err)
	}

	count := 0
	for _, sess := range expired {
		s.conns.Terminate(ctx, sess.ID)
		s.codes.Revoke(sess.ID)
		s.queue.Drop(sess.ID)
		if err := s.store.Delete(ctx, sess.ID); err != nil {
			s.log.Error().Err(err).Str("session_id", sess.ID).Msg("cleanup delete failed")
			continue
		}
		count++
	}
	s.codes.SweepExpired()

	s.log.Info().Int("cleaned", count).Msg("admin cleanup done")
	return count, nil
}

// get maps store errors into the caller-visible taxonomy.
func (s *Service) get(ctx context.Context, id string) (*session.Session, error) {
	sess, err := s.store.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load session: %v", ErrInternal, err)
	}
	return sess, nil
}

// lazyExpire flips a wall-clock-dead session to expired. Persistence failure
// here is benign; the sweeper will catch the record on its next tick.
func (s *Service) lazyExpire(ctx context.Context, sess *session.Session) {
	sess.Status = session.StatusExpired
	sess.LinkActive = false
	if err := s.store.Update(ctx, sess); err != nil {
		s.log.Error().Err(err).Str("session_id", sess.ID).Msg("lazy expiry persist failed")
		return
	}
	metricSessionsLazyExpired.Inc()
}
