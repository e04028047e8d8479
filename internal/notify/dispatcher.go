package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/almagest-io/almagestAuth/internal/logging"
)

var ErrDispatcherClosed = errors.New("notify: dispatcher closed")

// DispatcherConfig controls queueing, delay and send pacing.
type DispatcherConfig struct {
	Delay       time.Duration
	BufferSize  int
	Workers     int
	RatePerSec  float64 // <= 0 disables pacing
	Burst       int
	SendTimeout time.Duration
}

// Hooks observe task outcomes. Any hook may be nil.
type Hooks struct {
	OnSent    func()
	OnFailed  func()
	OnDropped func()
}

// Task is one deferred send.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

type queued struct {
	task  Task
	after time.Time
}

// Dispatcher runs submitted tasks after a fixed delay on a small worker pool.
type Dispatcher struct {
	cfg     DispatcherConfig
	log     logging.Logger
	hooks   Hooks
	limiter *rate.Limiter
	queue   chan queued
	stop    chan struct{}
	wg      sync.WaitGroup

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	sent      atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func NewDispatcher(cfg DispatcherConfig, log logging.Logger, hooks Hooks) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if log == nil {
		log = logging.Nop{}
	}

	d := &Dispatcher{
		cfg:   cfg,
		log:   log,
		hooks: hooks,
		queue: make(chan queued, cfg.BufferSize),
		stop:  make(chan struct{}),
		now:   time.Now,
		sleep: sleepCtx,
	}
	if cfg.RatePerSec > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst)
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}
	return d
}

// Submit schedules t and returns immediately. A full queue or a closed
// dispatcher drops the task.
func (d *Dispatcher) Submit(t Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	q := queued{task: t, after: d.now().Add(d.cfg.Delay)}
	select {
	case d.queue <- q:
		return nil
	default:
		d.dropped.Add(1)
		if d.hooks.OnDropped != nil {
			d.hooks.OnDropped()
		}
		d.log.Warn(context.Background(), "notify: queue full, task dropped", "task", t.Name)
		return nil
	}
}

// SubmitPush schedules p on sender.
func (d *Dispatcher) SubmitPush(sender PushSender, p Push) error {
	return d.Submit(Task{
		Name: "push",
		Run:  func(ctx context.Context) error { return sender.SendPush(ctx, p) },
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	// Workers run until the queue is drained after Close; stop only cuts the
	// pre-send delay short.
	for q := range d.queue {
		d.run(q)
	}
}

func (d *Dispatcher) run(q queued) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()

	if wait := q.after.Sub(d.now()); wait > 0 {
		waitCtx, stopWait := context.WithCancel(ctx)
		go func() {
			select {
			case <-d.stop:
				stopWait()
			case <-waitCtx.Done():
			}
		}()
		d.sleep(waitCtx, wait)
		stopWait()
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			d.fail(ctx, q.task, err)
			return
		}
	}

	if err := q.task.Run(ctx); err != nil {
		d.fail(ctx, q.task, err)
		return
	}
	d.sent.Add(1)
	if d.hooks.OnSent != nil {
		d.hooks.OnSent()
	}
}

func (d *Dispatcher) fail(ctx context.Context, t Task, err error) {
	d.failed.Add(1)
	if d.hooks.OnFailed != nil {
		d.hooks.OnFailed()
	}
	d.log.Error(ctx, "notify: delivery failed", "task", t.Name, "error", err)
}

// Close stops accepting tasks and runs everything already queued.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.stop)
		close(d.queue)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) Sent() uint64    { return d.sent.Load() }
func (d *Dispatcher) Failed() uint64  { return d.failed.Load() }
func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
