//go:build !integration

package worker

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func TestPool(t *testing.T) {
	t.Run("should execute submitted tasks", func(t *testing.T) {
		p := NewPool(2, newTestLogger())
		p.Start(context.Background())

		var done int32
		for i := 0; i < 4; i++ {
			if err := p.Submit(func(ctx context.Context) error {
				atomic.AddInt32(&done, 1)
				return nil
			}); err != nil {
				t.Fatalf("submit failed: %v", err)
			}
		}
		time.Sleep(50 * time.Millisecond)
		if !p.StopWait(time.Second) {
			t.Fatal("pool did not drain in time")
		}
		if atomic.LoadInt32(&done) != 4 {
			t.Errorf("expected 4 tasks run, got %d", done)
		}
	})

	t.Run("should survive a panicking task", func(t *testing.T) {
		p := NewPool(1, newTestLogger())
		p.Start(context.Background())

		var done int32
		p.Submit(func(ctx context.Context) error { panic("boom") })
		p.Submit(func(ctx context.Context) error {
			atomic.AddInt32(&done, 1)
			return nil
		})
		time.Sleep(50 * time.Millisecond)
		p.StopWait(time.Second)

		if atomic.LoadInt32(&done) != 1 {
			t.Error("worker died after panic; follow-up task never ran")
		}
	})

	t.Run("should reject work when saturated instead of blocking", func(t *testing.T) {
		p := NewPool(1, newTestLogger())
		// Not started: nothing drains the queue.
		rejected := false
		for i := 0; i < 100; i++ {
			if err := p.Submit(func(ctx context.Context) error { return nil }); err != nil {
				rejected = true
				break
			}
		}
		if !rejected {
			t.Error("expected saturation to reject, not block")
		}
	})

	t.Run("should reject nil tasks", func(t *testing.T) {
		p := NewPool(1, newTestLogger())
		if err := p.Submit(nil); err == nil {
			t.Error("expected an error for a nil task")
		}
	})
}
