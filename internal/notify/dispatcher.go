// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/holomush/authtokens/internal/auth"
	"github.com/holomush/authtokens/pkg/errutil"
)

// Dispatcher defaults.
const (
	DefaultBufferSize     = 256
	DefaultMaxRetries     = 3
	DefaultBaseBackoff    = 200 * time.Millisecond
	DefaultAttemptTimeout = 10 * time.Second
)

var (
	// ErrQueueFull is returned by Send when the message was dropped.
	ErrQueueFull = errors.New("notification queue full")
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("dispatcher closed")
)

var (
	deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authtokens_notify_deliveries_total",
		Help: "Total number of notification delivery outcomes",
	}, []string{"result"})

	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "authtokens_notify_queue_depth",
		Help: "Number of notifications waiting for delivery",
	})
)

// Collectors returns the package metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{deliveries, queueDepth}
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	BufferSize     int
	MaxRetries     uint64
	BaseBackoff    time.Duration
	AttemptTimeout time.Duration
}

type envelope struct {
	ctx                    context.Context
	address, subject, body string
}

// Dispatcher is an auth.Notifier that queues messages for a single worker
// goroutine. Send never blocks on delivery.
type Dispatcher struct {
	next   auth.Notifier
	cfg    DispatcherConfig
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan envelope
	done   chan struct{}
	cancel context.CancelFunc
}

var _ auth.Notifier = (*Dispatcher)(nil)

// NewDispatcher starts a Dispatcher delivering through next. Callers must
// Close it.
func NewDispatcher(next auth.Notifier, cfg DispatcherConfig, logger *slog.Logger) (*Dispatcher, error) {
	if next == nil {
		return nil, oops.Errorf("notifier is required")
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultBaseBackoff
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		next:   next,
		cfg:    cfg,
		logger: logger,
		queue:  make(chan envelope, cfg.BufferSize),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go d.run(ctx)
	return d, nil
}

// Send queues a message. It fails with ErrQueueFull when the buffer is
// full and ErrClosed after Close; the message is dropped in both cases.
func (d *Dispatcher) Send(ctx context.Context, address, subject, body string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		deliveries.WithLabelValues("dropped").Inc()
		return oops.Code("NOTIFY_CLOSED").Wrap(ErrClosed)
	}

	select {
	case d.queue <- envelope{ctx: context.WithoutCancel(ctx), address: address, subject: subject, body: body}:
		queueDepth.Inc()
		return nil
	default:
		deliveries.WithLabelValues("dropped").Inc()
		return oops.Code("NOTIFY_QUEUE_FULL").With("buffer_size", d.cfg.BufferSize).Wrap(ErrQueueFull)
	}
}

// Close stops accepting messages and waits for queued ones to be
// delivered. If ctx ends first, pending deliveries are abandoned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.cancel()
		<-d.done
		return oops.Code("NOTIFY_CLOSE_TIMEOUT").Wrap(ctx.Err())
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	defer d.cancel()
	for env := range d.queue {
		queueDepth.Dec()
		if ctx.Err() != nil {
			deliveries.WithLabelValues("abandoned").Inc()
			continue
		}
		d.deliver(ctx, env)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, env envelope) {
	backoff := retry.WithMaxRetries(d.cfg.MaxRetries, retry.NewExponential(d.cfg.BaseBackoff))

	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(mergeValues(ctx, env.ctx), d.cfg.AttemptTimeout)
		defer cancel()
		if err := d.next.Send(attemptCtx, env.address, env.subject, env.body); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		deliveries.WithLabelValues("failed").Inc()
		errutil.LogErrorContext(env.ctx, d.logger, "notification delivery failed",
			oops.Code("NOTIFY_DELIVERY_FAILED").With("attempts", attempts).Wrap(err))
		return
	}
	deliveries.WithLabelValues("delivered").Inc()
}

// valuesCtx carries the values of one context and the lifetime of another.
type valuesCtx struct {
	context.Context
	values context.Context
}

func (c valuesCtx) Value(key any) any {
	if v := c.values.Value(key); v != nil {
		return v
	}
	return c.Context.Value(key)
}

func mergeValues(lifetime, values context.Context) context.Context {
	return valuesCtx{Context: lifetime, values: values}
}
