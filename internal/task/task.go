// Package task implements the Task Manager (C7): a fixed worker pool
// that runs evaluator jobs with cooperative cancellation, grounded on
// internal/concurrency/concurrency.go's WorkerPool (channels + a
// context.Context cancel + sync.WaitGroup, one goroutine per worker)
// and on original_source/lib/libimhex/source/api/task_manager.cpp for
// the exact Task/TaskHandle semantics (atomic should-interrupt flag,
// tick() throwing on interrupt, always-signal-completion guarantee,
// do_later/do_later_once deduplication).
package task

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"patternlang/internal/diag"
)

// ErrInterrupted is returned by Tick/Update/Increment once a task's
// handle has called Interrupt; a job's closure is expected to let it
// propagate and not catch it, mirroring TaskInterruptor in the
// original.
var ErrInterrupted = diag.New(diag.KindInterrupted, "task interrupted", diag.Location{})

// Func is the body of a submitted job. It receives the Task so it can
// report progress via Update/Increment.
type Func func(t *Task) error

// Task is one unit of work running (or queued to run) on the worker
// pool. Progress and interrupt state are plain atomics so Update/
// Increment never block a hot loop on a mutex, the same tradeoff the
// original makes with std::atomic.
type Task struct {
	id         uuid.UUID
	name       string
	fn         Func
	background bool
	blocking   bool

	maxValue  atomic.Uint64
	currValue atomic.Uint64

	shouldInterrupt atomic.Bool
	finished        atomic.Bool
	hadException    atomic.Bool
	interrupted     atomic.Bool

	done chan struct{}

	mu              sync.Mutex
	exceptionMsg    string
	interruptCallback func()
}

func newTask(name string, maxValue uint64, background, blocking bool, fn Func) *Task {
	t := &Task{
		id:         uuid.New(),
		name:       name,
		fn:         fn,
		background: background,
		blocking:   blocking,
		done:       make(chan struct{}),
	}
	t.maxValue.Store(maxValue)
	return t
}

// Update sets the task's current progress value and returns
// ErrInterrupted if the handle has requested cancellation. Evaluator
// loops call this (or Increment) at every back-edge and pattern
// creation, per §5's suspension-point rule.
func (t *Task) Update(value uint64) error {
	t.currValue.Store(value)
	if t.shouldInterrupt.Load() {
		return ErrInterrupted
	}
	return nil
}

// Increment advances progress by one and checks for interruption, the
// shape most loop bodies use.
func (t *Task) Increment() error {
	t.currValue.Add(1)
	if t.shouldInterrupt.Load() {
		return ErrInterrupted
	}
	return nil
}

// Tick is a bare interrupt check with no progress side effect, wired
// directly into eval.Options.Tick.
func (t *Task) Tick() error {
	if t.shouldInterrupt.Load() {
		return ErrInterrupted
	}
	return nil
}

func (t *Task) SetMaxValue(v uint64) { t.maxValue.Store(v) }
func (t *Task) Name() string         { return t.name }
func (t *Task) ID() uuid.UUID        { return t.id }

// SetInterruptCallback installs a callback invoked synchronously from
// Interrupt(), used by a job to tear down anything blocking outside a
// tick() (e.g. an in-flight Data Source read).
func (t *Task) SetInterruptCallback(cb func()) {
	t.mu.Lock()
	t.interruptCallback = cb
	t.mu.Unlock()
}

func (t *Task) interrupt() {
	t.shouldInterrupt.Store(true)
	t.mu.Lock()
	cb := t.interruptCallback
	t.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (t *Task) finish() {
	t.finished.Store(true)
	close(t.done)
}

func (t *Task) fail(err error) {
	t.mu.Lock()
	t.exceptionMsg = err.Error()
	t.mu.Unlock()
	t.hadException.Store(true)
}

func (t *Task) interruption() { t.interrupted.Store(true) }

// Handle is the caller-facing view of a submitted Task: running?,
// interrupt(), wait(), progress%, exception-message, matching §4.6's
// TaskHandle. Unlike the original's weak_ptr<Task>, a Handle just
// holds the Task directly — Go's GC makes the weak-reference dance
// against use-after-free unnecessary.
type Handle struct {
	task *Task
}

func (h Handle) Running() bool { return !h.task.finished.Load() }

func (h Handle) Interrupt() { h.task.interrupt() }

func (h Handle) Wait() {
	<-h.task.done
}

// Progress returns completion percentage 0-100; a task with MaxValue
// 0 reports 0 (it has no measurable progress, per the original).
func (h Handle) Progress() uint32 {
	maxV := h.task.maxValue.Load()
	if maxV == 0 {
		return 0
	}
	return uint32((h.task.currValue.Load() * 100) / maxV)
}

func (h Handle) HadException() bool { return h.task.hadException.Load() }
func (h Handle) WasInterrupted() bool { return h.task.interrupted.Load() }

func (h Handle) ExceptionMessage() string {
	h.task.mu.Lock()
	defer h.task.mu.Unlock()
	return h.task.exceptionMsg
}

// Manager is the Task Manager: a fixed worker pool plus deferred-call
// bookkeeping. One Manager is normally owned by one runtime.Runtime.
type Manager struct {
	mu       sync.Mutex
	tasks    map[uuid.UUID]*Task
	queue    chan *Task
	ctx      context.Context
	cancel   context.CancelFunc
	workerWG sync.WaitGroup

	// bgSem bounds how many background tasks may run concurrently,
	// independent of the worker pool's own size, so a burst of
	// background jobs cannot take every worker at once
	// (SPEC_FULL's DOMAIN STACK rationale for x/sync/semaphore).
	bgSem *semaphore.Weighted

	deferredMu     sync.Mutex
	deferredCalls  []func()
	onceDeferred   map[string]func()
	onceOrder      []string
	finishedCalls  []func()
}

// New creates a Manager with workerCount workers (0 means the host's
// available parallelism) and starts them immediately.
func New(workerCount int) *Manager {
	if workerCount <= 0 {
		workerCount = runtime.GOMAXPROCS(0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		tasks:        map[uuid.UUID]*Task{},
		queue:        make(chan *Task, 256),
		ctx:          ctx,
		cancel:       cancel,
		bgSem:        semaphore.NewWeighted(int64(workerCount)),
		onceDeferred: map[string]func(){},
	}
	for i := 0; i < workerCount; i++ {
		m.workerWG.Add(1)
		go m.runWorker()
	}
	return m
}

func (m *Manager) runWorker() {
	defer m.workerWG.Done()
	for {
		select {
		case <-m.ctx.Done():
			for {
				select {
				case t := <-m.queue:
					t.interruption()
					t.finish()
				default:
					return
				}
			}
		case t, ok := <-m.queue:
			if !ok {
				return
			}
			if m.ctx.Err() != nil {
				t.interruption()
				t.finish()
				continue
			}
			m.runTask(t)
		}
	}
}

func (m *Manager) runTask(t *Task) {
	defer t.finish()
	if t.background {
		if err := m.bgSem.Acquire(m.ctx, 1); err != nil {
			t.interruption()
			return
		}
		defer m.bgSem.Release(1)
	}

	err := m.invoke(t)
	switch {
	case err == nil:
		// success: nothing further to signal besides finish().
	case err == ErrInterrupted:
		t.interruption()
	default:
		t.fail(err)
	}
}

// invoke runs the task's closure, converting a panic into a failure
// the same way the original's catch(...) turns an uncaught C++
// exception into Task::exception("Unknown Exception").
func (m *Manager) invoke(t *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %q panicked: %v", t.name, r)
		}
	}()
	return t.fn(t)
}

func (m *Manager) submit(name string, maxValue uint64, background, blocking bool, fn Func) Handle {
	t := newTask(name, maxValue, background, blocking, fn)
	m.mu.Lock()
	m.tasks[t.id] = t
	m.mu.Unlock()
	m.queue <- t
	return Handle{task: t}
}

// CreateTask enqueues a foreground, non-blocking job.
func (m *Manager) CreateTask(name string, maxValue uint64, fn Func) Handle {
	return m.submit(name, maxValue, false, false, fn)
}

// CreateBackgroundTask enqueues a job bounded by the background
// semaphore, for low-priority work that should not starve the
// blocking queue.
func (m *Manager) CreateBackgroundTask(name string, fn Func) Handle {
	return m.submit(name, 0, true, false, fn)
}

// CreateBlockingTask enqueues a job the caller intends to Wait() on
// immediately, e.g. synchronous execute().
func (m *Manager) CreateBlockingTask(name string, maxValue uint64, fn Func) Handle {
	return m.submit(name, maxValue, true, true, fn)
}

// RunningTaskCount returns the number of tracked non-background tasks
// that have not yet finished.
func (m *Manager) RunningTaskCount() int {
	return m.countRunning(func(t *Task) bool { return !t.background })
}

// RunningBackgroundTaskCount mirrors RunningTaskCount for background
// tasks.
func (m *Manager) RunningBackgroundTaskCount() int {
	return m.countRunning(func(t *Task) bool { return t.background })
}

// RunningBlockingTaskCount mirrors RunningTaskCount for blocking
// tasks.
func (m *Manager) RunningBlockingTaskCount() int {
	return m.countRunning(func(t *Task) bool { return t.blocking })
}

func (m *Manager) countRunning(pred func(*Task) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if !t.finished.Load() && pred(t) {
			n++
		}
	}
	return n
}

// CollectGarbage drops tracked tasks that finished without an
// exception, matching the original's periodic sweep so a long-running
// host doesn't keep every completed task alive forever.
func (m *Manager) CollectGarbage() {
	m.mu.Lock()
	for id, t := range m.tasks {
		if t.finished.Load() && !t.hadException.Load() {
			delete(m.tasks, id)
		}
	}
	empty := len(m.tasks) == 0
	m.mu.Unlock()

	if empty {
		m.deferredMu.Lock()
		calls := m.finishedCalls
		m.finishedCalls = nil
		m.deferredMu.Unlock()
		for _, c := range calls {
			c()
		}
	}
}

// DoLater queues fn to run on RunDeferredCalls's next invocation
// (the host's main loop, for UI-touching callbacks that must not run
// on a worker goroutine).
func (m *Manager) DoLater(fn func()) {
	m.deferredMu.Lock()
	m.deferredCalls = append(m.deferredCalls, fn)
	m.deferredMu.Unlock()
}

// DoLaterOnce queues fn keyed by callSite so repeated requests from
// the same call site collapse into the most recent one, preserving
// the original call site's position in submission order.
func (m *Manager) DoLaterOnce(callSite string, fn func()) {
	m.deferredMu.Lock()
	if _, exists := m.onceDeferred[callSite]; !exists {
		m.onceOrder = append(m.onceOrder, callSite)
	}
	m.onceDeferred[callSite] = fn
	m.deferredMu.Unlock()
}

// RunDeferredCalls drains and runs every DoLater/DoLaterOnce callback
// queued so far, in submission order (DoLater calls first, then the
// deduplicated DoLaterOnce calls by first-submission order).
func (m *Manager) RunDeferredCalls() {
	m.deferredMu.Lock()
	calls := m.deferredCalls
	m.deferredCalls = nil
	onceOrder := m.onceOrder
	m.onceOrder = nil
	once := m.onceDeferred
	m.onceDeferred = map[string]func(){}
	m.deferredMu.Unlock()

	for _, c := range calls {
		c()
	}
	for _, site := range onceOrder {
		if fn, ok := once[site]; ok {
			fn()
		}
	}
}

// RunWhenTasksFinished interrupts every tracked task and arranges for
// fn to run once none remain (checked by the next CollectGarbage).
func (m *Manager) RunWhenTasksFinished(fn func()) {
	m.mu.Lock()
	for _, t := range m.tasks {
		t.interrupt()
	}
	m.mu.Unlock()

	m.deferredMu.Lock()
	m.finishedCalls = append(m.finishedCalls, fn)
	m.deferredMu.Unlock()
}

// Shutdown interrupts every in-flight task, stops accepting new work,
// and waits for workers to drain, matching TaskManager::exit's
// guarantee that queued-but-unstarted jobs are dropped without
// running their closures.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	for _, t := range m.tasks {
		t.interrupt()
	}
	m.mu.Unlock()

	m.cancel()
	m.workerWG.Wait()

	m.mu.Lock()
	m.tasks = map[uuid.UUID]*Task{}
	m.mu.Unlock()

	m.deferredMu.Lock()
	m.deferredCalls = nil
	m.onceDeferred = map[string]func(){}
	m.onceOrder = nil
	m.finishedCalls = nil
	m.deferredMu.Unlock()
}
