package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/almagest-io/almagestAuth/internal/logging"
)

type recordingLogger struct {
	logging.Nop
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(_ context.Context, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprint(append([]any{msg}, args...)...))
}

func (l *recordingLogger) Warn(_ context.Context, msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func TestDispatcherDelaysDelivery(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Delay: 50 * time.Millisecond, Workers: 1}, nil, Hooks{})
	defer d.Close()

	start := time.Now()
	ran := make(chan time.Time, 1)
	if err := d.Submit(Task{Name: "t", Run: func(context.Context) error {
		ran <- time.Now()
		return nil
	}}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case at := <-ran:
		if at.Sub(start) < 50*time.Millisecond {
			t.Fatalf("task ran after %v, expected at least 50ms", at.Sub(start))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
}

func TestDispatcherFailureIsLoggedNotReturned(t *testing.T) {
	log := &recordingLogger{}
	var failed atomic.Int32
	d := NewDispatcher(DispatcherConfig{Workers: 1}, log, Hooks{OnFailed: func() { failed.Add(1) }})

	err := d.Submit(Task{Name: "push", Run: func(context.Context) error {
		return errors.New("device gone")
	}})
	if err != nil {
		t.Fatalf("submit must not surface delivery errors: %v", err)
	}
	d.Close()

	if d.Failed() != 1 || failed.Load() != 1 {
		t.Fatalf("expected one failure, got %d/%d", d.Failed(), failed.Load())
	}
	if len(log.errors) != 1 {
		t.Fatalf("expected one error log, got %v", log.errors)
	}
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	log := &recordingLogger{}
	d := NewDispatcher(DispatcherConfig{Workers: 1, BufferSize: 1}, log, Hooks{})

	release := make(chan struct{})
	started := make(chan struct{})
	_ = d.Submit(Task{Name: "block", Run: func(context.Context) error {
		close(started)
		<-release
		return nil
	}})
	<-started

	for i := 0; i < 4; i++ {
		_ = d.Submit(Task{Name: "extra", Run: func(context.Context) error { return nil }})
	}
	if d.Dropped() != 3 {
		t.Fatalf("expected 3 dropped, got %d", d.Dropped())
	}

	close(release)
	d.Close()
	if d.Sent() != 2 {
		t.Fatalf("expected 2 sent, got %d", d.Sent())
	}
}

func TestDispatcherCloseFlushesPending(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Delay: time.Hour, Workers: 1}, nil, Hooks{})

	var ran atomic.Bool
	_ = d.Submit(Task{Name: "late", Run: func(context.Context) error {
		ran.Store(true)
		return nil
	}})
	d.Close()

	if !ran.Load() {
		t.Fatal("expected queued task to run on close")
	}
	if err := d.Submit(Task{Name: "after", Run: func(context.Context) error { return nil }}); !errors.Is(err, ErrDispatcherClosed) {
		t.Fatalf("expected ErrDispatcherClosed, got %v", err)
	}
}

type pushRecorder struct {
	mu    sync.Mutex
	calls []Push
}

func (r *pushRecorder) SendPush(_ context.Context, p Push) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, p)
	return nil
}

func TestSubmitPush(t *testing.T) {
	rec := &pushRecorder{}
	d := NewDispatcher(DispatcherConfig{Workers: 1, RatePerSec: 100, Burst: 1}, nil, Hooks{})

	if err := d.SubmitPush(rec, OTPPush("device-1", "4821")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	d.Close()

	if len(rec.calls) != 1 {
		t.Fatalf("expected one push, got %d", len(rec.calls))
	}
	p := rec.calls[0]
	if p.Token != "device-1" || p.Title != "OTP Code" || p.Data["type"] != "otp" || p.Data["code"] != "4821" {
		t.Fatalf("unexpected push: %+v", p)
	}
}
