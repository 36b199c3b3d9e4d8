// Package sweep reconciles wall-clock time against persisted session state:
// a background ticker marks overdue sessions expired and tears down whatever
// they still hold in memory.
package sweep

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"hush/relay/internal/code"
	"hush/relay/internal/relay"
	"hush/relay/internal/session"
)

var metricSessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
	Name: "sweep_sessions_expired_total",
	Help: "Sessions transitioned to expired by the sweeper",
})

type Sweeper struct {
	store    session.Store
	codes    *code.Registry
	conns    *relay.Registry
	interval time.Duration
	// grace shields freshly created sessions from clock-skew false positives
	grace time.Duration
	log   zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	now    func() time.Time
}

func New(store session.Store, codes *code.Registry, conns *relay.Registry, interval, grace time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		codes:    codes,
		conns:    conns,
		interval: interval,
		grace:    grace,
		log:      log.With().Str("component", "sweeper").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the sweep loop. Call Stop to shut it down.
func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.log.Info().Dur("interval", s.interval).Msg("sweeper started")
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SweepOnce(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for it to drain, bounded by ctx.
func (s *Sweeper) Stop(ctx context.Context) {
	if s.cancel == nil {
		return
	}
	s.cancel()
	select {
	case <-s.done:
		s.log.Info().Msg("sweeper stopped")
	case <-ctx.Done():
		s.log.Warn().Msg("sweeper drain timed out")
	}
}

// SweepOnce runs a single reconciliation pass and returns how many sessions
// it expired. One session's failure never aborts the rest of the batch; a
// failed persist is simply retried on the next tick.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	now := s.now()
	candidates, err := s.store.ExpiredBefore(ctx, now)
	if err != nil {
		s.log.Error().Err(err).Msg("expiry scan failed")
		return 0
	}

	swept := 0
	for _, sess := range candidates {
		if sess.Status.Terminal() {
			continue
		}
		if now.Sub(sess.CreatedAt) < s.grace {
			continue
		}

		sess.Status = session.StatusExpired
		sess.LinkActive = false
		if err := s.store.Update(ctx, sess); err != nil {
			s.log.Error().Err(err).Str("session_id", sess.ID).Msg("sweep persist failed")
			continue
		}

		s.conns.Terminate(ctx, sess.ID)
		s.codes.Revoke(sess.ID)
		metricSessionsSwept.Inc()
		swept++

		s.log.Info().Str("session_id", sess.ID).Msg("session swept as expired")
	}

	s.codes.SweepExpired()
	return swept
}
