package task

import (
	"errors"
	"testing"
	"time"

	"github.com/kr/pretty"
)

func TestCreateTaskRunsAndFinishes(t *testing.T) {
	m := New(2)
	defer m.Shutdown()

	h := m.CreateTask("sum", 10, func(tk *Task) error {
		for i := uint64(0); i < 10; i++ {
			if err := tk.Update(i); err != nil {
				return err
			}
		}
		return nil
	})
	h.Wait()

	if h.Running() {
		t.Fatalf("expected task to be finished after Wait")
	}
	if h.HadException() {
		t.Fatalf("unexpected exception: %s", h.ExceptionMessage())
	}
	if h.Progress() != 90 {
		t.Fatalf("expected progress 90%%, got %d", h.Progress())
	}
}

func TestInterruptStopsTask(t *testing.T) {
	m := New(1)
	defer m.Shutdown()

	started := make(chan struct{})
	h := m.CreateTask("loop", 0, func(tk *Task) error {
		close(started)
		for {
			if err := tk.Tick(); err != nil {
				return err
			}
		}
	})
	<-started
	h.Interrupt()
	h.Wait()

	if !h.WasInterrupted() {
		t.Fatalf("expected task to report interrupted")
	}
}

func TestTaskFailureIsReported(t *testing.T) {
	m := New(1)
	defer m.Shutdown()

	boom := errors.New("boom")
	h := m.CreateTask("failing", 0, func(tk *Task) error {
		return boom
	})
	h.Wait()

	if !h.HadException() {
		t.Fatalf("expected HadException to be true")
	}
	if diff := pretty.Diff(boom.Error(), h.ExceptionMessage()); len(diff) > 0 {
		t.Fatalf("exception message mismatch: %v", diff)
	}
}

func TestTaskPanicIsCaught(t *testing.T) {
	m := New(1)
	defer m.Shutdown()

	h := m.CreateTask("panicking", 0, func(tk *Task) error {
		panic("kaboom")
	})
	h.Wait()

	if !h.HadException() {
		t.Fatalf("expected a panicking task to be reported as an exception, not crash the worker")
	}
}

func TestDoLaterOnceCollapsesBySite(t *testing.T) {
	m := New(1)
	defer m.Shutdown()

	calls := 0
	m.DoLaterOnce("site-a", func() { calls++ })
	m.DoLaterOnce("site-a", func() { calls += 10 })
	m.RunDeferredCalls()

	if calls != 10 {
		t.Fatalf("expected only the most recent DoLaterOnce callback to run, got calls=%d", calls)
	}
}

func TestBackgroundTaskRuns(t *testing.T) {
	m := New(1)
	defer m.Shutdown()

	done := make(chan struct{})
	h := m.CreateBackgroundTask("bg", func(tk *Task) error {
		close(done)
		return nil
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("background task never ran")
	}
	h.Wait()
	if h.Running() {
		t.Fatalf("expected background task to have finished")
	}
}

func TestRunningTaskCountTracksInFlightWork(t *testing.T) {
	m := New(1)
	defer m.Shutdown()

	release := make(chan struct{})
	started := make(chan struct{})
	h := m.CreateTask("blocker", 0, func(tk *Task) error {
		close(started)
		<-release
		return nil
	})
	<-started
	if n := m.RunningTaskCount(); n != 1 {
		t.Fatalf("expected 1 running task, got %d", n)
	}
	close(release)
	h.Wait()
	if n := m.RunningTaskCount(); n != 0 {
		t.Fatalf("expected 0 running tasks after completion, got %d", n)
	}
}
