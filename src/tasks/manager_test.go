package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agentcore "github.com/stake-plus/taskagent/src/agents/core"
	"github.com/stake-plus/taskagent/src/data"
)

type execFunc func(ctx context.Context, task string) ([]agentcore.StepOutcome, error)

func (f execFunc) Execute(ctx context.Context, task string) ([]agentcore.StepOutcome, error) {
	return f(ctx, task)
}

func succeed(payload map[string]any) execFunc {
	return func(ctx context.Context, task string) ([]agentcore.StepOutcome, error) {
		return []agentcore.StepOutcome{{
			Step:     1,
			Signal:   agentcore.SignalStep,
			Proposal: &agentcore.Proposal{CapabilityName: "web_search", Input: task},
			Result:   agentcore.Success(payload),
		}}, nil
	}
}

type fixture struct {
	mr      *miniredis.Miniredis
	store   *data.RedisStore
	manager *Manager
}

func newFixture(t *testing.T, cfg Config, exec Executor) *fixture {
	t.Helper()
	return newFixtureWith(t, cfg, exec, nil, nil)
}

// newFixtureWith lets a test wrap the redis store and collect metrics.
func newFixtureWith(t *testing.T, cfg Config, exec Executor, wrap func(Store) Store, metrics *Metrics) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := data.NewRedisStore(rdb)
	var backing Store = store
	if wrap != nil {
		backing = wrap(store)
	}
	m := NewManager(cfg, backing, exec, nil, metrics)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Close(ctx)
	})
	return &fixture{mr: mr, store: store, manager: m}
}

// faultyStore fails the first Update whose write carries field.
type faultyStore struct {
	Store
	field string
	mu    sync.Mutex
	hit   bool
}

func (s *faultyStore) Update(ctx context.Context, key string, fn func(map[string]string) (map[string]string, time.Duration, error)) error {
	return s.Store.Update(ctx, key, func(cur map[string]string) (map[string]string, time.Duration, error) {
		fields, ttl, err := fn(cur)
		if err != nil {
			return nil, 0, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := fields[s.field]; ok && !s.hit {
			s.hit = true
			return nil, 0, errors.New("write rejected")
		}
		return fields, ttl, nil
	})
}

func waitForState(t *testing.T, m *Manager, id string, want State) *Record {
	t.Helper()
	var rec *Record
	require.Eventually(t, func() bool {
		r, err := m.Status(context.Background(), id)
		if err != nil {
			return false
		}
		rec = r
		return r.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return rec
}

func TestSubmitReturnsBeforeExecution(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, Config{}, execFunc(func(ctx context.Context, task string) ([]agentcore.StepOutcome, error) {
		<-release
		return nil, nil
	}))
	defer close(release)

	id, err := f.manager.Submit(context.Background(), "find news about X")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := f.manager.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Contains(t, []State{StatePending, StateRunning}, rec.Status)
	assert.Equal(t, "find news about X", rec.Task)
	assert.Nil(t, rec.Trajectory)
	assert.Nil(t, rec.Error)
	assert.InDelta(t, time.Hour.Seconds(), f.mr.TTL(DefaultKeyPrefix+id).Seconds(), 2)
}

func TestSubmitRejectsEmptyTask(t *testing.T) {
	f := newFixture(t, Config{}, succeed(nil))
	_, err := f.manager.Submit(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyTask)
}

func TestCompletedTaskHasTrajectory(t *testing.T) {
	f := newFixture(t, Config{}, succeed(map[string]any{"answer": 42}))

	id, err := f.manager.Submit(context.Background(), "find news about X")
	require.NoError(t, err)

	rec := waitForState(t, f.manager, id, StateCompleted)
	assert.Nil(t, rec.Error)

	var steps []agentcore.StepOutcome
	require.NoError(t, json.Unmarshal(rec.Trajectory, &steps))
	require.Len(t, steps, 1)
	assert.True(t, steps[0].Result.OK())
	assert.Equal(t, "web_search", steps[0].Proposal.CapabilityName)
	assert.EqualValues(t, 42, steps[0].Result.Payload["answer"])
}

func TestExecutionFaultMarksFailed(t *testing.T) {
	f := newFixture(t, Config{}, execFunc(func(ctx context.Context, task string) ([]agentcore.StepOutcome, error) {
		return nil, errors.New("orchestration broke")
	}))

	id, err := f.manager.Submit(context.Background(), "task")
	require.NoError(t, err)

	rec := waitForState(t, f.manager, id, StateFailed)
	require.NotNil(t, rec.Error)
	assert.Equal(t, "orchestration broke", *rec.Error)
	assert.Nil(t, rec.Trajectory)
}

func TestExecutorPanicMarksFailed(t *testing.T) {
	f := newFixture(t, Config{}, execFunc(func(ctx context.Context, task string) ([]agentcore.StepOutcome, error) {
		panic("boom")
	}))

	id, err := f.manager.Submit(context.Background(), "task")
	require.NoError(t, err)

	rec := waitForState(t, f.manager, id, StateFailed)
	require.NotNil(t, rec.Error)
	assert.Contains(t, *rec.Error, "panic: boom")
}

func TestStatusIsIdempotentUntilExpiry(t *testing.T) {
	f := newFixture(t, Config{}, succeed(map[string]any{"summary": "ok"}))

	id, err := f.manager.Submit(context.Background(), "task")
	require.NoError(t, err)
	first := waitForState(t, f.manager, id, StateCompleted)

	for i := 0; i < 3; i++ {
		again, err := f.manager.Status(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, []byte(first.Trajectory), []byte(again.Trajectory))
	}

	f.mr.FastForward(time.Hour + time.Second)
	_, err = f.manager.Status(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatusFiltersOnExpiresAt(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	f := newFixture(t, Config{Clock: clock}, succeed(nil))

	id, err := f.manager.Submit(context.Background(), "task")
	require.NoError(t, err)
	waitForState(t, f.manager, id, StateCompleted)

	mu.Lock()
	now = now.Add(time.Hour)
	mu.Unlock()

	// The key is still in redis; the read-time filter hides it.
	assert.True(t, f.mr.Exists(DefaultKeyPrefix+id))
	_, err = f.manager.Status(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := f.manager.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStatusUnknownID(t *testing.T) {
	f := newFixture(t, Config{}, succeed(nil))
	_, err := f.manager.Status(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.manager.Status(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListActive(t *testing.T) {
	f := newFixture(t, Config{}, succeed(nil))
	ctx := context.Background()

	ids := map[string]string{}
	for _, task := range []string{"a", "b", "c"} {
		id, err := f.manager.Submit(ctx, task)
		require.NoError(t, err)
		ids[id] = task
	}
	require.NoError(t, f.store.SetFields(ctx, DefaultKeyPrefix+"junk", map[string]string{"status": "bogus"}))
	require.NoError(t, f.store.SetFields(ctx, "other:key", map[string]string{"status": "pending"}))

	list, err := f.manager.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for _, s := range list {
		assert.Equal(t, ids[s.ID], s.Task)
		assert.True(t, s.Status.Valid())
	}
}

func TestConcurrencyBoundKeepsTasksPending(t *testing.T) {
	started := make(chan string, 2)
	release := make(chan struct{})
	f := newFixture(t, Config{MaxConcurrent: 1}, execFunc(func(ctx context.Context, task string) ([]agentcore.StepOutcome, error) {
		started <- task
		<-release
		return nil, nil
	}))
	ctx := context.Background()

	first, err := f.manager.Submit(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, "first", <-started)

	second, err := f.manager.Submit(ctx, "second")
	require.NoError(t, err)

	rec, err := f.manager.Status(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, StatePending, rec.Status)

	rec, err = f.manager.Status(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, rec.Status)

	close(release)
	assert.Equal(t, "second", <-started)
	waitForState(t, f.manager, first, StateCompleted)
	waitForState(t, f.manager, second, StateCompleted)
}

func TestCloseWaitsAndRejects(t *testing.T) {
	f := newFixture(t, Config{}, succeed(nil))
	ctx := context.Background()

	id, err := f.manager.Submit(ctx, "task")
	require.NoError(t, err)
	require.NoError(t, f.manager.Close(ctx))

	rec, err := f.manager.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, rec.Status)

	_, err = f.manager.Submit(ctx, "late")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseDeadlineFailsRunningTasks(t *testing.T) {
	f := newFixture(t, Config{}, execFunc(func(ctx context.Context, task string) ([]agentcore.StepOutcome, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	id, err := f.manager.Submit(context.Background(), "task")
	require.NoError(t, err)
	waitForState(t, f.manager, id, StateRunning)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.manager.Close(ctx), context.DeadlineExceeded)

	rec, err := f.manager.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, rec.Status)
}

func TestEngineIntegration(t *testing.T) {
	registry := agentcore.NewRegistry()
	require.NoError(t, registry.Register("web_search", "search", func(ctx context.Context, input string) agentcore.Result {
		return agentcore.Failure("search backend down")
	}))
	registry.Seal()

	t.Run("all errors complete with max steps", func(t *testing.T) {
		oracle := agentcore.OracleFunc(func(ctx context.Context, task string, names []string) (agentcore.Proposal, error) {
			return agentcore.Proposal{CapabilityName: "web_search", Input: task}, nil
		})
		engine := agentcore.NewEngine(agentcore.Config{}, registry, oracle, nil)
		f := newFixture(t, Config{}, engine)

		id, err := f.manager.Submit(context.Background(), "find news about X")
		require.NoError(t, err)
		rec := waitForState(t, f.manager, id, StateCompleted)

		var steps []agentcore.StepOutcome
		require.NoError(t, json.Unmarshal(rec.Trajectory, &steps))
		assert.Len(t, steps, agentcore.DefaultMaxSteps)
		for _, s := range steps {
			assert.False(t, s.Result.OK())
		}
	})

	t.Run("unknown capability completes with one entry", func(t *testing.T) {
		oracle := agentcore.OracleFunc(func(ctx context.Context, task string, names []string) (agentcore.Proposal, error) {
			return agentcore.Proposal{CapabilityName: "nonexistent", Input: task}, nil
		})
		engine := agentcore.NewEngine(agentcore.Config{}, registry, oracle, nil)
		f := newFixture(t, Config{}, engine)

		id, err := f.manager.Submit(context.Background(), "task")
		require.NoError(t, err)
		rec := waitForState(t, f.manager, id, StateCompleted)

		var steps []agentcore.StepOutcome
		require.NoError(t, json.Unmarshal(rec.Trajectory, &steps))
		require.Len(t, steps, 1)
		assert.Equal(t, agentcore.SignalCapabilityNotFound, steps[0].Signal)
	})
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := MustNewMetrics(reg)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	m := NewManager(Config{}, data.NewRedisStore(rdb), succeed(nil), nil, metrics)

	id, err := m.Submit(context.Background(), "task")
	require.NoError(t, err)
	require.NoError(t, m.Close(context.Background()))
	waitForState(t, m, id, StateCompleted)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.submitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.finished.WithLabelValues(string(StateCompleted))))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.running))
}

func TestStateTransitions(t *testing.T) {
	cases := []struct {
		from, to State
		ok       bool
	}{
		{StatePending, StateRunning, true},
		{StatePending, StateCompleted, false},
		{StatePending, StateFailed, false},
		{StateRunning, StateCompleted, true},
		{StateRunning, StateFailed, true},
		{StateRunning, StatePending, false},
		{StateCompleted, StateRunning, false},
		{StateFailed, StatePending, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
	assert.True(t, StateCompleted.Terminal())
	assert.False(t, StateRunning.Terminal())
	assert.False(t, State("bogus").Valid())
}

func TestExpiredRecordsStayGone(t *testing.T) {
	started := make(chan string, 2)
	release := make(chan struct{})
	reg := prometheus.NewRegistry()
	metrics := MustNewMetrics(reg)
	f := newFixtureWith(t, Config{Retention: 2 * time.Second, MaxConcurrent: 1}, execFunc(func(ctx context.Context, task string) ([]agentcore.StepOutcome, error) {
		started <- task
		<-release
		return succeed(nil)(ctx, task)
	}), nil, metrics)
	ctx := context.Background()

	running, err := f.manager.Submit(ctx, "running")
	require.NoError(t, err)
	assert.Equal(t, "running", <-started)
	queued, err := f.manager.Submit(ctx, "queued")
	require.NoError(t, err)

	f.mr.FastForward(3 * time.Second)
	close(release)
	require.NoError(t, f.manager.Close(ctx))

	for _, id := range []string{running, queued} {
		assert.False(t, f.mr.Exists(DefaultKeyPrefix+id), "record %s was recreated", id)
		_, err := f.manager.Status(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
	}
	list, err := f.manager.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.dropped))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.running))
}

func TestElapsedExpiresAtBlocksLateWrites(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	f := newFixture(t, Config{Clock: clock}, execFunc(func(ctx context.Context, task string) ([]agentcore.StepOutcome, error) {
		started <- struct{}{}
		<-release
		return succeed(nil)(ctx, task)
	}))

	id, err := f.manager.Submit(context.Background(), "task")
	require.NoError(t, err)
	<-started

	mu.Lock()
	now = now.Add(time.Hour)
	mu.Unlock()
	close(release)
	require.NoError(t, f.manager.Close(context.Background()))

	assert.Equal(t, string(StateRunning), f.mr.HGet(DefaultKeyPrefix+id, fieldStatus))
	assert.Empty(t, f.mr.HGet(DefaultKeyPrefix+id, fieldTrajectory))
	_, err = f.manager.Status(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFailedTrajectoryWriteMarksFailed(t *testing.T) {
	wrap := func(s Store) Store { return &faultyStore{Store: s, field: fieldTrajectory} }
	f := newFixtureWith(t, Config{}, succeed(map[string]any{"summary": "ok"}), wrap, nil)

	id, err := f.manager.Submit(context.Background(), "task")
	require.NoError(t, err)
	require.NoError(t, f.manager.Close(context.Background()))

	rec, err := f.manager.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, rec.Status)
	require.NotNil(t, rec.Error)
	assert.Contains(t, *rec.Error, "store trajectory")
	assert.Nil(t, rec.Trajectory)
}

func TestTransitionEnforcesLifecycle(t *testing.T) {
	f := newFixture(t, Config{}, succeed(nil))
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	id, err := f.manager.Submit(ctx, "task")
	require.NoError(t, err)
	waitForState(t, f.manager, id, StateCompleted)

	for _, next := range []State{StateRunning, StatePending, StateFailed} {
		err := f.manager.transition(ctx, id, next, nil, expires)
		assert.ErrorIs(t, err, ErrInvalidTransition, "completed -> %s", next)
	}
	rec, err := f.manager.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, rec.Status)

	require.NoError(t, f.store.SetFields(ctx, DefaultKeyPrefix+"manual", map[string]string{
		fieldStatus:    string(StatePending),
		fieldExpiresAt: formatTime(expires),
	}))
	err = f.manager.transition(ctx, "manual", StateCompleted, map[string]string{fieldTrajectory: "[]"}, expires)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, string(StatePending), f.mr.HGet(DefaultKeyPrefix+"manual", fieldStatus))
}

func TestSubmitWritesNothingOnStoreError(t *testing.T) {
	wrap := func(s Store) Store { return &faultyStore{Store: s, field: fieldTask} }
	f := newFixtureWith(t, Config{}, succeed(nil), wrap, nil)
	ctx := context.Background()

	_, err := f.manager.Submit(ctx, "task")
	require.Error(t, err)

	keys, err := f.store.ScanKeys(ctx, DefaultKeyPrefix)
	require.NoError(t, err)
	assert.Empty(t, keys)
	require.NoError(t, f.manager.Close(ctx))
}
