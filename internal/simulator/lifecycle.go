package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vesaa/fleetsim/internal/metrics"
	"github.com/vesaa/fleetsim/internal/store"
)

// State of the background simulator.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Defaults used when Options leaves a field zero.
const (
	DefaultTickInterval  = 10 * time.Second
	DefaultIdleThreshold = 15 * time.Minute
)

// Options configures a Lifecycle.
type Options struct {
	TickInterval  time.Duration
	IdleThreshold time.Duration
	Logger        *slog.Logger
	// Now is the clock used for activity tracking. Defaults to time.Now.
	Now func() time.Time
}

// Snapshot is a point-in-time view of the lifecycle.
type Snapshot struct {
	State        string    `json:"state"`
	RunID        string    `json:"run_id,omitempty"`
	LastActivity time.Time `json:"last_activity"`
	LastTick     time.Time `json:"last_tick"`
	Ticks        uint64    `json:"ticks"`
	LastError    string    `json:"last_error,omitempty"`
}

// run is one STOPPED → RUNNING → STOPPED cycle.
type run struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

// Lifecycle owns the background tick loop. It starts on demand via Touch
// and stops itself once no activity has been recorded for IdleThreshold.
// Construct one per process and share it by pointer.
type Lifecycle struct {
	store    store.Store
	mutator  Mutator
	interval time.Duration
	idle     time.Duration
	now      func() time.Time
	log      *slog.Logger

	mu           sync.Mutex
	state        State
	current      *run
	lastActivity time.Time
	lastTick     time.Time
	ticks        uint64
	lastErr      string
}

// NewLifecycle returns a stopped Lifecycle.
func NewLifecycle(st store.Store, m Mutator, opts Options) *Lifecycle {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.IdleThreshold <= 0 {
		opts.IdleThreshold = DefaultIdleThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Lifecycle{
		store:        st,
		mutator:      m,
		interval:     opts.TickInterval,
		idle:         opts.IdleThreshold,
		now:          opts.Now,
		log:          opts.Logger.With("component", "simulator"),
		lastActivity: opts.Now(),
	}
}

// Touch records activity and starts the simulator if it is stopped.
func (l *Lifecycle) Touch() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastActivity = l.now()
	if l.state == Running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{id: uuid.NewString(), cancel: cancel, done: make(chan struct{})}
	l.current = r
	l.state = Running
	metrics.RecordTransition(Running.String(), true)
	l.log.Info("simulator started", "run", r.id, "interval", l.interval, "idle_threshold", l.idle)

	go l.loop(ctx, r)
}

// Stop cancels the current run and waits for it to exit. When Stop returns
// no tick is in progress and none will start until the next Touch.
func (l *Lifecycle) Stop() {
	l.mu.Lock()
	r := l.current
	if r == nil {
		l.mu.Unlock()
		return
	}
	l.current = nil
	l.state = Stopped
	metrics.RecordTransition(Stopped.String(), false)
	l.mu.Unlock()

	r.cancel()
	<-r.done
	l.log.Info("simulator stopped", "run", r.id)
}

// State reports whether the simulator is running.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// LastActivity is the time of the most recent Touch.
func (l *Lifecycle) LastActivity() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastActivity
}

// Snapshot returns the current state for diagnostics.
func (l *Lifecycle) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := Snapshot{
		State:        l.state.String(),
		LastActivity: l.lastActivity,
		LastTick:     l.lastTick,
		Ticks:        l.ticks,
		LastError:    l.lastErr,
	}
	if l.current != nil {
		s.RunID = l.current.id
	}
	return s
}

func (l *Lifecycle) loop(ctx context.Context, r *run) {
	defer close(r.done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			if !l.tick(ctx, r) {
				return
			}
		}
	}
}

// tick runs one cycle and then applies the idle check.
// It returns false when the run must exit.
func (l *Lifecycle) tick(ctx context.Context, r *run) bool {
	err := l.cycle(ctx)
	metrics.IncTick(err == nil)
	if err != nil {
		l.log.Warn("tick failed", "run", r.id, "error", err)
	} else {
		l.log.Debug("fleet refreshed", "run", r.id)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current != r {
		return false
	}
	l.ticks++
	l.lastTick = l.now()
	l.lastErr = ""
	if err != nil {
		l.lastErr = err.Error()
	}

	if idle := l.now().Sub(l.lastActivity); idle > l.idle {
		l.current = nil
		l.state = Stopped
		r.cancel()
		metrics.RecordTransition(Stopped.String(), false)
		l.log.Info("simulator paused (idle)", "run", r.id, "idle", idle.Round(time.Second))
		return false
	}
	return true
}

// cycle heals, reads, randomizes and writes the fleet. Panics are converted
// to errors so a bad tick never takes the process down.
func (l *Lifecycle) cycle(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			l.log.Error("tick panic", "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("tick panic: %v", p)
		}
	}()

	if _, err := l.store.EnsureHealthy(ctx); err != nil {
		return fmt.Errorf("ensure healthy: %w", err)
	}
	services, err := l.store.Read(ctx)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if err := l.store.WriteAtomic(ctx, l.mutator.Randomize(services)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
