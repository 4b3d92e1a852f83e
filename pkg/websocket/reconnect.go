package websocket

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// redialJitter is the fraction of each wait randomized away so that
// several venue sessions dropped by the same outage do not re-dial in
// lockstep.
const redialJitter = 0.2

// ReconnectConfig shapes the redial schedule: waits grow by Factor per
// failed attempt, from InitialDelay up to MaxDelay.
type ReconnectConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64
}

// redialer spaces out reconnection attempts for one stream session.
// A successful dial restarts the schedule from InitialDelay.
type redialer struct {
	cfg    ReconnectConfig
	logger *zap.Logger

	mu      sync.Mutex
	rng     *rand.Rand
	attempt int
}

func newRedialer(cfg ReconnectConfig, logger *zap.Logger) *redialer {
	return &redialer{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// run keeps dialing until one attempt lands or the context ends.
func (r *redialer) run(ctx context.Context, dial func(context.Context) error) error {
	for {
		wait := r.delay()
		r.logger.Info("redialing-stream", zap.Duration("wait", wait))
		ReconnectAttemptsTotal.Inc()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		err := dial(ctx)
		if err == nil {
			r.reset()
			r.logger.Info("stream-redial-succeeded")
			return nil
		}

		r.logger.Warn("stream-redial-failed", zap.Error(err))
		ReconnectFailuresTotal.Inc()
	}
}

// delay returns the next wait and advances the schedule:
// InitialDelay·Factor^attempt capped at MaxDelay, shortened by up to
// redialJitter.
func (r *redialer) delay() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	wait := float64(r.cfg.InitialDelay) * math.Pow(r.cfg.Factor, float64(r.attempt))
	if ceiling := float64(r.cfg.MaxDelay); wait >= ceiling {
		wait = ceiling
	} else {
		r.attempt++
	}

	wait -= wait * redialJitter * r.rng.Float64()
	return time.Duration(wait)
}

// reset restarts the schedule after a successful dial.
func (r *redialer) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempt = 0
}
