package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yuronglin/bililive-feed/internal/event"
)

// Supervisor drives session clients across their lifetime: connect,
// authenticate, stay active, back off on failure, reconnect. Reconnection is
// invisible to the consumer — the event channel stays open and ordered
// within each session.
//
// Exactly one client is live at a time. Multiple supervisors may run in one
// process; they share nothing.
type Supervisor struct {
	cfg      Config
	provider ParamsProvider
	logger   *slog.Logger

	events chan event.ServerEvent
	status chan Status

	cancel context.CancelFunc
	done   chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewSupervisor creates a supervisor. Zero-valued config fields take
// defaults.
func NewSupervisor(cfg Config, provider ParamsProvider, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	return &Supervisor{
		cfg:      cfg,
		provider: provider,
		logger:   logger,
		events:   make(chan event.ServerEvent, cfg.EventBuffer),
		status:   make(chan Status, 16),
		done:     make(chan struct{}),
	}
}

// Events is the output channel of decoded room events. It is ordered within
// one session, stays open across reconnects, and is closed exactly once when
// the supervisor reaches Closed.
func (s *Supervisor) Events() <-chan event.ServerEvent {
	return s.events
}

// Status surfaces lifecycle transitions and online counts. Lossy by design:
// unread observations are dropped so the feed can never stall on them.
func (s *Supervisor) Status() <-chan Status {
	return s.status
}

// Start launches the connection loop. It returns immediately; events flow on
// Events(). Calling Start twice is a no-op.
func (s *Supervisor) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		go s.run(ctx)
	})
}

// Stop tears the live session down, cancels pending backoff, and closes the
// event channel. It blocks until the loop has exited. Stopping a supervisor
// that was never started closes the channels immediately.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		// Claim startOnce: if Start never ran there is no loop to wait
		// for, and any later Start becomes a no-op.
		s.startOnce.Do(func() {
			close(s.events)
			close(s.status)
			close(s.done)
		})
		if s.cancel != nil {
			s.cancel()
		}
	})
	<-s.done
}

func (s *Supervisor) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.status)
	defer close(s.events)

	retry := retryPolicy{
		base:        s.cfg.ReconnectBaseDelay,
		max:         s.cfg.ReconnectMaxDelay,
		stableAfter: s.cfg.StableReset,
	}

	for {
		epoch := uuid.NewString()
		logger := s.logger.With("epoch", epoch)

		err := s.runSession(ctx, epoch, &retry)

		if ctx.Err() != nil {
			logger.Info("supervisor stopped")
			s.publish(Status{State: StateClosed, Epoch: epoch})
			return
		}

		var authErr *AuthError
		if errors.As(err, &authErr) && authErr.Fatal() {
			logger.Error("authentication unrecoverable, giving up", "code", authErr.Code)
			s.publish(Status{State: StateClosed, Epoch: epoch, Err: err})
			return
		}

		delay := retry.next()
		logger.Warn("session ended, backing off", "error", err, "delay", delay)
		s.publish(Status{State: StateBackoff, Epoch: epoch, Err: err})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			s.publish(Status{State: StateClosed, Epoch: epoch})
			return
		}
	}
}

// runSession performs one full connect→authenticate→active cycle and returns
// the reason it ended.
func (s *Supervisor) runSession(ctx context.Context, epoch string, retry *retryPolicy) error {
	s.publish(Status{State: StateConnecting, Epoch: epoch})

	params, err := s.provider.Resolve(ctx)
	if err != nil {
		return err
	}

	onOnline := func(n uint32) {
		s.publish(Status{State: StateActive, Epoch: epoch, Online: n})
	}
	c := newClient(epoch, params, s.cfg, s.events, onOnline, s.logger)
	defer c.close()

	if err := c.dial(ctx); err != nil {
		return err
	}

	s.publish(Status{State: StateAuthenticating, Epoch: epoch})
	if err := c.login(ctx); err != nil {
		return err
	}

	s.publish(Status{State: StateActive, Epoch: epoch})
	s.logger.Info("session active", "epoch", epoch, "room_id", params.RoomID)

	activeSince := time.Now()
	err = c.run(ctx)
	retry.observeActive(time.Since(activeSince))
	return err
}

func (s *Supervisor) publish(st Status) {
	select {
	case s.status <- st:
	default:
	}
}
