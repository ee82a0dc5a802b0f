// Package worker runs the slow detector off the frame loop.
//
// Workers pull requests from the queue, call the detector under a deadline
// and hand results back over a channel that the router drains between
// frames. A Pool satisfies the router's SlowPath contract.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/vigil/internal/adapters/mq/queue"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/logger"
	"github.com/okian/vigil/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount   = 1
	defaultDetectTimeout = 2 * time.Second
	defaultResultBuffer  = 8
	poolShutdownTimeout  = 5 * time.Second
)

// ErrStopped is returned by Shutdown when the worker did not stop in time.
var ErrStopped = errors.New("worker stopped")

// Detector is the slow, open-vocabulary detector.
type Detector interface {
	Detect(ctx context.Context, frame model.Frame) ([]model.Detection, error)
}

// Queue defines how workers receive requests.
type Queue interface {
	Enqueue(ctx context.Context, r queue.Request) bool
	Dequeue(ctx context.Context) <-chan queue.Request
	Len() int
	Close() error
}

// InMemoryWorker processes slow requests one at a time.
type InMemoryWorker struct {
	queue    Queue
	detector Detector
	results  chan<- model.SlowResult
	timeout  time.Duration
	name     string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker that publishes to results.
func NewInMemoryWorker(q Queue, detector Detector, results chan<- model.SlowResult, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		detector: detector,
		results:  results,
		timeout:  defaultDetectTimeout,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop until ctx is cancelled, Shutdown is called or
// the queue is closed.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	reqs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case req, ok := <-reqs:
			if !ok {
				return
			}
			res := w.process(ctx, req)
			select {
			case w.results <- res:
			case <-ctx.Done():
				return
			case <-w.shutdown:
				return
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("%w: %w", ErrStopped, ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, req queue.Request) (res model.SlowResult) { //nolint:gocritic // hugeParam: Request is passed by value for channel semantics
	res.Request = req
	callCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("slow detector panicked: %v", p)
		}
		res.Latency = time.Since(start)
		if res.Err != nil {
			metrics.RecordErrorByComponent("worker", "detect")
			w.logger.Warn(ctx, "slow detection failed",
				logger.String("request", req.ID),
				logger.Uint64("seq", req.Frame.Seq),
				logger.Error(res.Err),
			)
		}
	}()

	dets, err := w.detector.Detect(callCtx, req.Frame)
	if err == nil && callCtx.Err() != nil {
		err = callCtx.Err()
	}
	if err != nil {
		res.Err = fmt.Errorf("detect frame %d: %w", req.Frame.Seq, err)
		return res
	}
	res.Detections = dets
	return res
}

// Pool runs a set of workers over one queue and implements the router's
// slow path.
type Pool struct {
	queue        Queue
	detector     Detector
	workers      []*InMemoryWorker
	results      chan model.SlowResult
	workerCount  int
	timeout      time.Duration
	resultBuffer int

	cancel    context.CancelFunc
	started   bool
	closeOnce sync.Once
	closeErr  error

	logger logger.Logger
}

// NewPool creates a pool; call Start before submitting.
func NewPool(detector Detector, q Queue, opts ...PoolOption) *Pool {
	p := &Pool{
		queue:        q,
		detector:     detector,
		workerCount:  defaultWorkerCount,
		timeout:      defaultDetectTimeout,
		resultBuffer: defaultResultBuffer,
		logger:       logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.results = make(chan model.SlowResult, p.resultBuffer)
	p.workers = make([]*InMemoryWorker, p.workerCount)
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(q, detector, p.results,
			WithName("worker-"+strconv.Itoa(i)),
			WithTimeout(p.timeout),
		)
	}
	return p
}

// Start launches the workers. They stop when ctx is cancelled or Close is
// called.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.started = true
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Submit queues a request without blocking.
func (p *Pool) Submit(ctx context.Context, req model.SlowRequest) bool {
	return p.queue.Enqueue(ctx, req)
}

// Results returns the channel finished requests are published on.
func (p *Pool) Results() <-chan model.SlowResult {
	return p.results
}

// Pending returns the number of queued, not yet started, requests.
func (p *Pool) Pending() int {
	return p.queue.Len()
}

// Close stops accepting requests, aborts in-flight detector calls and
// waits for the workers. It is safe to call more than once.
func (p *Pool) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		if err := p.queue.Close(); err != nil && !errors.Is(err, queue.ErrClosed) {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
		if !p.started {
			return
		}
		p.cancel()

		shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
		defer cancel()
		for i, w := range p.workers {
			if err := w.Shutdown(shutdownCtx); err != nil {
				p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
				p.closeErr = err
			}
		}
	})
	return p.closeErr
}
