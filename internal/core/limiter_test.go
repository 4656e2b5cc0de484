package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestImportLimiter_AcquireRelease(t *testing.T) {
	l := NewImportLimiter(2, time.Second)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}
	if got := l.Active(); got != 2 {
		t.Errorf("Active = %d, want 2", got)
	}

	l.Release()
	l.Release()
	if got := l.Active(); got != 0 {
		t.Errorf("Active after release = %d, want 0", got)
	}
}

func TestImportLimiter_RejectsWhenFull(t *testing.T) {
	l := NewImportLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer l.Release()

	err := l.Acquire(ctx)
	if !errors.Is(err, ErrTooManyImports) {
		t.Fatalf("Acquire on full limiter = %v, want ErrTooManyImports", err)
	}
}

func TestImportLimiter_WaitsForSlot(t *testing.T) {
	l := NewImportLimiter(1, 2*time.Second)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	acquired := make(chan error, 1)
	go func() {
		acquired <- l.Acquire(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	l.Release()

	select {
	case err := <-acquired:
		if err != nil {
			t.Fatalf("waiting Acquire failed: %v", err)
		}
		l.Release()
	case <-time.After(time.Second):
		t.Fatal("waiting Acquire did not proceed after Release")
	}
}

func TestImportLimiter_ContextCancellation(t *testing.T) {
	l := NewImportLimiter(1, 10*time.Second)

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer l.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Acquire(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Acquire with cancelled ctx = %v, want context.Canceled", err)
	}
}

func TestImportLimiter_WaitForDrain(t *testing.T) {
	l := NewImportLimiter(2, time.Second)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		l.Release()
	}()

	drainCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := l.WaitForDrain(drainCtx); err != nil {
		t.Fatalf("WaitForDrain failed: %v", err)
	}
	if got := l.Active(); got != 0 {
		t.Errorf("Active after drain = %d, want 0", got)
	}
}

func TestImportLimiter_DrainTimeout(t *testing.T) {
	l := NewImportLimiter(1, time.Second)

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer l.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := l.WaitForDrain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("WaitForDrain = %v, want context.DeadlineExceeded", err)
	}
}
