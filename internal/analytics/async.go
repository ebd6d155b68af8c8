package analytics

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/catalystwells/grantd/internal/metrics"
	"github.com/catalystwells/grantd/internal/observability/logger"
)

const (
	defaultBufferSize     = 1024
	defaultDeliverTimeout = 5 * time.Second
)

// AsyncSink encola eventos en un canal acotado que drena un único worker.
// Con el buffer lleno el evento se descarta y se cuenta en Dropped.
type AsyncSink struct {
	backend Backend
	timeout time.Duration
	log     *zap.Logger

	ch      chan Event
	done    chan struct{}
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// AsyncOptions ajusta el sink. Zero values => defaults.
type AsyncOptions struct {
	BufferSize     int
	DeliverTimeout time.Duration
	Logger         *zap.Logger
}

// NewAsyncSink arranca el worker.
func NewAsyncSink(backend Backend, opts AsyncOptions) *AsyncSink {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.DeliverTimeout <= 0 {
		opts.DeliverTimeout = defaultDeliverTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.L()
	}

	s := &AsyncSink{
		backend: backend,
		timeout: opts.DeliverTimeout,
		log:     opts.Logger.With(logger.Component("analytics")),
		ch:      make(chan Event, opts.BufferSize),
		done:    make(chan struct{}),
	}
	go s.worker()
	return s
}

// Record encola sin bloquear.
func (s *AsyncSink) Record(e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.drop()
		return
	}
	select {
	case s.ch <- e:
	default:
		s.drop()
	}
}

func (s *AsyncSink) drop() {
	s.dropped.Add(1)
	metrics.AnalyticsDroppedTotal.Inc()
}

// Dropped devuelve cuántos eventos se descartaron.
func (s *AsyncSink) Dropped() int64 { return s.dropped.Load() }

func (s *AsyncSink) worker() {
	defer close(s.done)
	for e := range s.ch {
		s.deliver(e)
	}
}

func (s *AsyncSink) deliver(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("analytics backend panic", logger.AppID(e.AppID), logger.Any("panic", r))
		}
	}()

	if err := s.backend.Handle(ctx, e); err != nil {
		s.log.Warn("analytics backend failed",
			logger.AppID(e.AppID),
			logger.String("kind", string(e.Kind)),
			logger.Err(err),
		)
	}
}

// Close deja de aceptar eventos y espera a que el worker drene el buffer.
// Si ctx vence antes, devuelve error y el worker sigue drenando en background.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("analytics: drain timeout: %w", ctx.Err())
	}
}
