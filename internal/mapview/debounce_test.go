package mapview_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jacobh/howitt-sub000/internal/mapview"
)

func TestDebouncer_RunsLatestOnly(t *testing.T) {
	d := mapview.NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	var last atomic.Int64
	var runs atomic.Int32
	done := make(chan struct{}, 1)
	for i := 1; i <= 5; i++ {
		d.Trigger(func() {
			last.Store(int64(i))
			runs.Add(1)
			done <- struct{}{}
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debounced call never ran")
	}
	time.Sleep(40 * time.Millisecond)

	if runs.Load() != 1 {
		t.Errorf("expected 1 run, got %d", runs.Load())
	}
	if last.Load() != 5 {
		t.Errorf("expected the last call to run, got %d", last.Load())
	}
	if d.Pending() {
		t.Error("expected nothing pending after the call ran")
	}
}

func TestDebouncer_Flush(t *testing.T) {
	d := mapview.NewDebouncer(time.Hour)
	defer d.Stop()

	if d.Flush() {
		t.Fatal("expected Flush with nothing pending to return false")
	}

	ran := false
	d.Trigger(func() { ran = true })
	if !d.Pending() {
		t.Fatal("expected a pending call")
	}
	if !d.Flush() {
		t.Fatal("expected Flush to run the pending call")
	}
	if !ran {
		t.Error("expected the call to run on the caller's goroutine")
	}
	if d.Pending() {
		t.Error("expected nothing pending after Flush")
	}
}

func TestDebouncer_Stop(t *testing.T) {
	d := mapview.NewDebouncer(10 * time.Millisecond)

	var runs atomic.Int32
	d.Trigger(func() { runs.Add(1) })
	d.Stop()
	d.Trigger(func() { runs.Add(1) })

	time.Sleep(40 * time.Millisecond)
	if runs.Load() != 0 {
		t.Errorf("expected no runs after Stop, got %d", runs.Load())
	}
	if d.Pending() {
		t.Error("expected nothing pending after Stop")
	}
}

func TestDebouncer_StopWaitsForRunningCall(t *testing.T) {
	d := mapview.NewDebouncer(time.Millisecond)

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	d.Trigger(func() {
		close(started)
		<-release
		finished.Store(true)
	})

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("debounced call never ran")
	}

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while the call was still running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the call finished")
	}
	if !finished.Load() {
		t.Error("expected the running call to finish before Stop returned")
	}
}
