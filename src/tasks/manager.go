// Package tasks runs agent tasks in the background and tracks their lifecycle
// in a hash store with a bounded retention window.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/semaphore"

	agentcore "github.com/stake-plus/taskagent/src/agents/core"
	"github.com/stake-plus/taskagent/src/logging"
)

const (
	DefaultRetention     = time.Hour
	DefaultMaxConcurrent = 16
	DefaultKeyPrefix     = "task:"
)

var (
	// ErrNotFound is returned for ids that never existed or whose retention elapsed.
	ErrNotFound = errors.New("tasks: not found")
	// ErrEmptyTask rejects blank descriptions.
	ErrEmptyTask = errors.New("tasks: task description is empty")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("tasks: manager closed")
	// ErrInvalidTransition rejects moves the lifecycle does not allow.
	ErrInvalidTransition = errors.New("tasks: invalid state transition")

	// errExpired marks writes skipped because the record is gone or past expires_at.
	errExpired = errors.New("tasks: record expired")
)

// Store is the field-level hash store holding task records.
//
// Update must run fn against the current fields of key and apply the fields
// and TTL it returns atomically; no fields means no write.
type Store interface {
	GetFields(ctx context.Context, key string) (map[string]string, error)
	Update(ctx context.Context, key string, fn func(cur map[string]string) (map[string]string, time.Duration, error)) error
	ScanKeys(ctx context.Context, prefix string) ([]string, error)
}

// Executor runs one task to completion and returns its trajectory.
// *agentcore.Engine satisfies it.
type Executor interface {
	Execute(ctx context.Context, task string) ([]agentcore.StepOutcome, error)
}

// Config tunes the manager.
type Config struct {
	Retention     time.Duration
	MaxConcurrent int
	KeyPrefix     string
	// Clock is time.Now when nil.
	Clock func() time.Time
}

// Manager owns task records and their background executions.
type Manager struct {
	store   Store
	exec    Executor
	logger  hclog.Logger
	metrics *Metrics
	sem     *semaphore.Weighted
	retain  time.Duration
	prefix  string
	clock   func() time.Time
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
}

// NewManager builds a Manager. metrics may be nil.
func NewManager(cfg Config, store Store, exec Executor, logger hclog.Logger, metrics *Metrics) *Manager {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:   store,
		exec:    exec,
		logger:  logging.OrNull(logger),
		metrics: metrics,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		retain:  cfg.Retention,
		prefix:  cfg.KeyPrefix,
		clock:   cfg.Clock,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

func (m *Manager) key(id string) string {
	return m.prefix + id
}

// Submit records a pending task and schedules exactly one background execution.
// It returns as soon as the record is written.
func (m *Manager) Submit(ctx context.Context, description string) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", ErrEmptyTask
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", ErrClosed
	}

	id := uuid.NewString()
	key := m.key(id)
	now := m.clock()
	fields := map[string]string{
		fieldTask:      description,
		fieldStatus:    string(StatePending),
		fieldCreatedAt: formatTime(now),
		fieldExpiresAt: formatTime(now.Add(m.retain)),
	}
	err := m.store.Update(ctx, key, func(cur map[string]string) (map[string]string, time.Duration, error) {
		if len(cur) != 0 {
			return nil, 0, fmt.Errorf("id already in use")
		}
		return fields, m.retain, nil
	})
	if err != nil {
		return "", fmt.Errorf("tasks: create %s: %w", id, err)
	}

	m.metrics.observeSubmitted()
	m.wg.Add(1)
	go m.run(id, description, now.Add(m.retain))

	m.logger.Info("task submitted", "task_id", id)
	return id, nil
}

// run is the background execution of one task.
func (m *Manager) run(id, description string, expiresAt time.Time) {
	defer m.wg.Done()

	// Record writes must land even while shutting down.
	writeCtx := context.WithoutCancel(m.baseCtx)
	log := m.logger.With("task_id", id)

	if err := m.sem.Acquire(m.baseCtx, 1); err != nil {
		if m.start(writeCtx, log, id, expiresAt) {
			m.fail(writeCtx, log, id, fmt.Errorf("%w: shut down before execution", agentcore.ErrExecutionFault), expiresAt)
		}
		return
	}
	defer m.sem.Release(1)

	if !m.start(writeCtx, log, id, expiresAt) {
		return
	}
	log.Debug("task running")

	outcomes, err := m.execute(description)
	if err != nil {
		m.fail(writeCtx, log, id, err, expiresAt)
		return
	}

	if outcomes == nil {
		outcomes = []agentcore.StepOutcome{}
	}
	trajectory, err := json.Marshal(outcomes)
	if err != nil {
		m.fail(writeCtx, log, id, fmt.Errorf("%w: encode trajectory: %v", agentcore.ErrExecutionFault, err), expiresAt)
		return
	}
	err = m.transition(writeCtx, id, StateCompleted, map[string]string{fieldTrajectory: string(trajectory)}, expiresAt)
	if errors.Is(err, errExpired) {
		log.Info("record expired while running, result dropped")
		m.metrics.observeDropped()
		return
	}
	if err != nil {
		m.fail(writeCtx, log, id, fmt.Errorf("%w: store trajectory: %v", agentcore.ErrExecutionFault, err), expiresAt)
		return
	}
	m.metrics.observeFinished(StateCompleted, len(outcomes))
	log.Info("task completed", "steps", len(outcomes))
}

// execute calls the executor, converting a panic into an execution fault.
func (m *Manager) execute(description string) (outcomes []agentcore.StepOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcomes = nil
			err = fmt.Errorf("%w: panic: %v", agentcore.ErrExecutionFault, r)
		}
	}()
	if m.exec == nil {
		return nil, fmt.Errorf("%w: no executor configured", agentcore.ErrExecutionFault)
	}
	return m.exec.Execute(m.baseCtx, description)
}

// start moves the record to running and reports whether execution may proceed.
func (m *Manager) start(ctx context.Context, log hclog.Logger, id string, expiresAt time.Time) bool {
	err := m.transition(ctx, id, StateRunning, nil, expiresAt)
	switch {
	case errors.Is(err, errExpired):
		log.Info("record expired before execution, skipping")
		return false
	case err != nil:
		log.Error("mark running failed", "error", err)
		return false
	}
	m.metrics.observeStarted()
	return true
}

func (m *Manager) fail(ctx context.Context, log hclog.Logger, id string, cause error, expiresAt time.Time) {
	log.Error("task failed", "error", cause)
	err := m.transition(ctx, id, StateFailed, map[string]string{fieldError: cause.Error()}, expiresAt)
	switch {
	case errors.Is(err, errExpired):
		log.Info("record expired while running, failure dropped")
		m.metrics.observeDropped()
	case err != nil:
		log.Error("mark failed failed", "error", err)
		m.metrics.observeDropped()
	default:
		m.metrics.observeFinished(StateFailed, 0)
	}
}

// transition moves a live record to next and writes extra alongside it. The
// record is read first: a missing or elapsed record is left alone (errExpired)
// so a late write never resurrects it, and moves the lifecycle does not allow
// fail with ErrInvalidTransition. The TTL is reset to what remains until
// expires_at, never beyond it.
func (m *Manager) transition(ctx context.Context, id string, next State, extra map[string]string, expiresAt time.Time) error {
	err := m.store.Update(ctx, m.key(id), func(cur map[string]string) (map[string]string, time.Duration, error) {
		if len(cur) == 0 {
			return nil, 0, errExpired
		}
		deadline := expiresAt
		if raw := cur[fieldExpiresAt]; raw != "" {
			if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				deadline = t
			}
		}
		remaining := deadline.Sub(m.clock())
		if remaining <= 0 {
			return nil, 0, errExpired
		}
		if from := State(cur[fieldStatus]); !from.CanTransition(next) {
			return nil, 0, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, next)
		}

		fields := map[string]string{fieldStatus: string(next)}
		for k, v := range extra {
			fields[k] = v
		}
		return fields, remaining, nil
	})
	if err != nil {
		return fmt.Errorf("tasks: set %s %s: %w", id, next, err)
	}
	return nil
}

// Status returns a snapshot of the task, or ErrNotFound.
func (m *Manager) Status(ctx context.Context, id string) (*Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	fields, err := m.store.GetFields(ctx, m.key(id))
	if err != nil {
		return nil, fmt.Errorf("tasks: get %s: %w", id, err)
	}
	rec, err := decodeRecord(id, fields, m.clock())
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

// ListActive returns a summary of every live task. Order is unspecified.
func (m *Manager) ListActive(ctx context.Context) ([]Summary, error) {
	keys, err := m.store.ScanKeys(ctx, m.prefix)
	if err != nil {
		return nil, fmt.Errorf("tasks: scan: %w", err)
	}
	now := m.clock()
	out := make([]Summary, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimPrefix(key, m.prefix)
		fields, err := m.store.GetFields(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("tasks: get %s: %w", id, err)
		}
		rec, err := decodeRecord(id, fields, now)
		if err != nil {
			m.logger.Warn("skipping unreadable task record", "task_id", id, "error", err)
			continue
		}
		if rec == nil {
			continue
		}
		out = append(out, rec.Summary())
	}
	return out, nil
}

// Close stops accepting submissions and waits for in-flight executions.
// When ctx ends first, executions still waiting or running are cancelled and
// recorded as failed before Close returns ctx's error.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		<-done
		return ctx.Err()
	}
}
