package executor

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestPool(t *testing.T, workers int, callTimeout time.Duration) *Pool {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	pool := NewPool(Options{
		Workers:     workers,
		CallTimeout: callTimeout,
		Logger:      logger,
	})
	t.Cleanup(pool.Close)
	return pool
}

func TestSubmitReturnsResult(t *testing.T) {
	pool := newTestPool(t, 2, time.Second)

	value, err := pool.Submit(context.Background(), "echo", time.Second, func(ctx context.Context) (any, error) {
		return "done", nil
	})
	if err != nil {
		t.Fatalf("submit error: %v", err)
	}
	if value.(string) != "done" {
		t.Fatalf("结果不一致: %v", value)
	}
}

func TestSubmitPropagatesTaskError(t *testing.T) {
	pool := newTestPool(t, 1, time.Second)

	boom := errors.New("provider exploded")
	_, err := pool.Submit(context.Background(), "fail", time.Second, func(ctx context.Context) (any, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("应透传任务错误，得到 %v", err)
	}
}

func TestSubmitTimeoutLeavesTaskRunning(t *testing.T) {
	pool := newTestPool(t, 1, 5*time.Second)

	completed := make(chan struct{})
	release := make(chan struct{})

	_, err := pool.Submit(context.Background(), "slow", 50*time.Millisecond, func(ctx context.Context) (any, error) {
		<-release
		close(completed)
		return "late", nil
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("期望 ErrTimeout，得到 %v", err)
	}

	// 调用方已解除阻塞，任务仍应跑到终点并产生副作用。
	close(release)
	select {
	case <-completed:
	case <-time.After(2 * time.Second):
		t.Fatalf("任务应在超时后继续执行完毕")
	}
}

func TestWorkerCountBoundsConcurrency(t *testing.T) {
	const workers = 3
	pool := newTestPool(t, workers, 5*time.Second)

	var inFlight, peak int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = pool.Submit(context.Background(), "load", 5*time.Second, func(ctx context.Context) (any, error) {
				current := atomic.AddInt64(&inFlight, 1)
				mu.Lock()
				if current > peak {
					peak = current
				}
				mu.Unlock()
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt64(&inFlight, -1)
				return nil, nil
			})
		}()
	}
	wg.Wait()

	if peak > workers {
		t.Fatalf("并发峰值 %d 超过 worker 上限 %d", peak, workers)
	}
}

func TestCallTimeoutAppliedToTaskContext(t *testing.T) {
	pool := newTestPool(t, 1, 30*time.Millisecond)

	_, err := pool.Submit(context.Background(), "ctx", time.Second, func(ctx context.Context) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return "never", nil
		}
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("任务上下文应带执行超时，得到 %v", err)
	}
}

func TestSubmitRespectsCallerCancellation(t *testing.T) {
	pool := newTestPool(t, 1, 5*time.Second)

	// 占住唯一的 worker。
	blocker := make(chan struct{})
	go pool.SubmitWait(context.Background(), "blocker", func(ctx context.Context) (any, error) {
		<-blocker
		return nil, nil
	})
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pool.Submit(ctx, "cancelled", time.Second, func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("准入阶段应响应取消，得到 %v", err)
	}
	close(blocker)
}

func TestSubmitAfterCloseReturnsErrClosed(t *testing.T) {
	pool := newTestPool(t, 2, time.Second)
	pool.Close()

	_, err := pool.Submit(context.Background(), "late", time.Second, func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("关闭后 Submit 应返回 ErrClosed，得到 %v", err)
	}

	_, err = pool.SubmitWait(context.Background(), "late_stream", func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("关闭后 SubmitWait 应返回 ErrClosed，得到 %v", err)
	}

	// 重复 Close 不应 panic。
	pool.Close()
}
