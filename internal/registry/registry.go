// Package registry owns the set of live tasks: serialised creation with a
// single-live-order invariant per market/side, per-task cancellation
// contexts, and bounded teardown.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/pkg/types"
)

// Runner is the executor surface the registry drives.
type Runner interface {
	Run(ctx context.Context) error
	Snapshot() types.TaskSnapshot
}

// Factory builds a runner for a validated config. onTransition must be
// wired into the runner so every status change reaches the registry's
// subscribers.
type Factory func(cfg *types.TaskConfig, onTransition func(types.TaskSnapshot)) (Runner, error)

type entry struct {
	runner Runner
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry tracks every task in the process.
type Registry struct {
	factory      Factory
	teardownWait time.Duration
	logger       *zap.Logger

	mu     sync.Mutex
	tasks  map[string]*entry
	subs   map[int]chan types.TaskSnapshot
	nextID int
	closed bool

	wg sync.WaitGroup
}

// Config holds registry configuration.
type Config struct {
	Factory Factory
	// TeardownWait bounds how long Cancel blocks for the executor's
	// teardown (venue cancel + final hedge kick-off) to finish.
	TeardownWait time.Duration
	Logger       *zap.Logger
}

// New creates an empty registry.
func New(cfg *Config) *Registry {
	wait := cfg.TeardownWait
	if wait <= 0 {
		wait = 10 * time.Second
	}
	return &Registry{
		factory:      cfg.Factory,
		teardownWait: wait,
		logger:       cfg.Logger,
		tasks:        make(map[string]*entry),
		subs:         make(map[int]chan types.TaskSnapshot),
	}
}

// Create validates the config, enforces the one-live-order-per-market-side
// invariant and starts the task. It returns the assigned task id.
func (r *Registry) Create(ctx context.Context, cfg *types.TaskConfig) (string, error) {
	if cfg.TaskID == "" {
		cfg.TaskID = uuid.New().String()
	}
	if err := cfg.Validate(); err != nil {
		CreateRejectedTotal.Inc()
		return "", fmt.Errorf("invalid task config: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		CreateRejectedTotal.Inc()
		return "", fmt.Errorf("registry closed")
	}
	if _, dup := r.tasks[cfg.TaskID]; dup {
		CreateRejectedTotal.Inc()
		return "", fmt.Errorf("task %s already exists", cfg.TaskID)
	}
	for id, e := range r.tasks {
		snap := e.runner.Snapshot()
		if snap.Status.Terminal() {
			continue
		}
		if snap.Config.PredictMarketID == cfg.PredictMarketID && snap.Config.Side == cfg.Side {
			CreateRejectedTotal.Inc()
			return "", fmt.Errorf("task %s already live on market %s side %s",
				id, cfg.PredictMarketID, cfg.Side)
		}
	}

	runner, err := r.factory(cfg, r.broadcast)
	if err != nil {
		CreateRejectedTotal.Inc()
		return "", fmt.Errorf("build task %s: %w", cfg.TaskID, err)
	}

	taskCtx, cancel := context.WithCancel(context.Background())
	e := &entry{runner: runner, cancel: cancel, done: make(chan struct{})}
	r.tasks[cfg.TaskID] = e

	TasksCreatedTotal.Inc()
	TasksActive.Inc()
	r.logger.Info("task-created",
		zap.String("task", cfg.TaskID),
		zap.String("market", cfg.PredictMarketID),
		zap.String("side", string(cfg.Side)))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(e.done)
		defer TasksActive.Dec()
		if err := runner.Run(taskCtx); err != nil {
			r.logger.Error("task-run-failed",
				zap.String("task", cfg.TaskID),
				zap.Error(err))
		}
	}()

	return cfg.TaskID, nil
}

// Cancel aborts a task's context and waits, bounded, for its teardown.
func (r *Registry) Cancel(taskID string) error {
	r.mu.Lock()
	e, ok := r.tasks[taskID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("task %s not found", taskID)
	}

	e.cancel()
	CancelsTotal.Inc()

	select {
	case <-e.done:
		return nil
	case <-time.After(r.teardownWait):
		return fmt.Errorf("task %s teardown still running after %s", taskID, r.teardownWait)
	}
}

// Get returns the task's current snapshot.
func (r *Registry) Get(taskID string) (types.TaskSnapshot, bool) {
	r.mu.Lock()
	e, ok := r.tasks[taskID]
	r.mu.Unlock()
	if !ok {
		return types.TaskSnapshot{}, false
	}
	return e.runner.Snapshot(), true
}

// List returns snapshots of every known task, newest first.
func (r *Registry) List() []types.TaskSnapshot {
	r.mu.Lock()
	snaps := make([]types.TaskSnapshot, 0, len(r.tasks))
	for _, e := range r.tasks {
		snaps = append(snaps, e.runner.Snapshot())
	}
	r.mu.Unlock()

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Timestamps.CreatedAt.After(snaps[j].Timestamps.CreatedAt)
	})
	return snaps
}

// Subscribe returns a stream of task snapshots, one per status change
// across all tasks, and a cancel function. A slow subscriber drops
// updates rather than blocking executors.
func (r *Registry) Subscribe() (<-chan types.TaskSnapshot, func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	ch := make(chan types.TaskSnapshot, 16)
	r.subs[id] = ch
	r.mu.Unlock()

	return ch, func() {
		r.mu.Lock()
		if ch, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(ch)
		}
		r.mu.Unlock()
	}
}

func (r *Registry) broadcast(snap types.TaskSnapshot) {
	r.mu.Lock()
	for _, ch := range r.subs {
		select {
		case ch <- snap:
		default:
			SubscriberDropsTotal.Inc()
		}
	}
	r.mu.Unlock()
}

// Close cancels every task and waits for all of them, bounded by ctx.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	for _, e := range r.tasks {
		e.cancel()
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("registry close: %w", ctx.Err())
	}
}
