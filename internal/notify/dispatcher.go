package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DispatcherConfig sizes the background delivery pool.
type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

// DefaultDispatcherConfig returns settings suitable for a single server.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:     2,
		QueueSize:   64,
		SendTimeout: 30 * time.Second,
	}
}

type envelope struct {
	ctx context.Context
	msg Message
}

// Dispatcher delivers messages through a Notifier on a fixed set of
// background workers. Delivery is fire-and-forget: failures are logged and
// never retried.
type Dispatcher struct {
	notifier Notifier
	config   DispatcherConfig
	logger   *slog.Logger

	queue chan envelope
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	startOnce sync.Once
	stopOnce  sync.Once
}

func NewDispatcher(n Notifier, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	return &Dispatcher{
		notifier: n,
		config:   cfg,
		logger:   logger,
		queue:    make(chan envelope, cfg.QueueSize),
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.logger.Info("starting notification dispatcher",
			slog.Int("workers", d.config.Workers),
			slog.Int("queueSize", d.config.QueueSize),
		)
		for range d.config.Workers {
			d.wg.Add(1)
			go d.worker()
		}
	})
}

// Dispatch queues msg and returns immediately. The message keeps ctx's
// values for logging but not its cancellation, so it outlives the request.
// It reports false when the message was dropped because the queue is full
// or the dispatcher is stopped.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.WarnContext(ctx, "notification dropped: dispatcher stopped",
			slog.String("recipient", msg.Recipient))
		return false
	}

	select {
	case d.queue <- envelope{ctx: context.WithoutCancel(ctx), msg: msg}:
		return true
	default:
		d.logger.ErrorContext(ctx, "notification dropped: queue full",
			slog.String("recipient", msg.Recipient))
		return false
	}
}

// Stop refuses new messages, delivers everything already queued, and
// waits for the workers to exit.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.logger.Info("stopping notification dispatcher")
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()

		// Workers may never have started; drain here so nothing queued is lost.
		d.Start()
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for env := range d.queue {
		d.deliver(env)
	}
}

func (d *Dispatcher) deliver(env envelope) {
	ctx, cancel := context.WithTimeout(env.ctx, d.config.SendTimeout)
	defer cancel()

	start := time.Now()
	if err := d.notifier.Send(ctx, env.msg); err != nil {
		d.logger.ErrorContext(ctx, "notification delivery failed",
			slog.String("recipient", env.msg.Recipient),
			slog.String("subject", env.msg.Subject),
			slog.String("error", err.Error()),
		)
		return
	}
	d.logger.InfoContext(ctx, "notification delivered",
		slog.String("recipient", env.msg.Recipient),
		slog.Duration("duration", time.Since(start)),
	)
}
