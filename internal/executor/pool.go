package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ErrTimeout 表示调用方等待结果超时；底层任务可能仍在执行。
var ErrTimeout = errors.New("task result timed out")

// ErrClosed 表示工作池已关闭，拒绝新任务。
var ErrClosed = errors.New("executor closed")

// Task 是提交给工作池的阻塞调用。ctx 携带每次外呼的执行超时，
// 与调用方的等待超时相互独立。
type Task func(ctx context.Context) (any, error)

// Options 控制工作池行为。
type Options struct {
	// Workers 是固定的并发上限。
	Workers int
	// CallTimeout 约束单次 Provider 调用的执行时长。
	CallTimeout time.Duration
	// RatePerSecond/RateBurst 配置外呼限速，0 表示不限速。
	RatePerSecond float64
	RateBurst     int
	Logger        *logrus.Logger
}

// Pool 维护固定数量的 worker。任务排队不设上限：准入等待没有时间界限，
// 但调用方对结果的等待总是有界的，资源增长由 worker 数量约束。
type Pool struct {
	tasks       chan submission
	callTimeout time.Duration
	limiter     *rate.Limiter
	logger      *logrus.Logger
	cancel      context.CancelFunc
	done        chan struct{}
	closeOnce   sync.Once
}

type submission struct {
	op   string
	task Task
	done chan outcome
}

type outcome struct {
	value any
	err   error
}

// NewPool 启动 worker 并返回就绪的工作池。
func NewPool(opts Options) *Pool {
	workers := opts.Workers
	if workers <= 0 {
		workers = 8
	}
	callTimeout := opts.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		tasks:       make(chan submission),
		callTimeout: callTimeout,
		limiter:     limiter,
		logger:      opts.Logger,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go p.worker(ctx)
	}
	return p
}

// Submit 提交任务并等待结果，等待上限为 wait。超时返回包装了 ErrTimeout
// 的错误并立刻解除调用方阻塞，worker 继续把任务跑完（结果被丢弃，
// 但任务内部的缓存写入等副作用照常发生）。
func (p *Pool) Submit(ctx context.Context, op string, wait time.Duration, task Task) (any, error) {
	// 先行检查：Close 之后 worker 可能尚未全部退出，
	// 仅靠下面的 select 无法保证拒绝入队。
	select {
	case <-p.done:
		return nil, ErrClosed
	default:
	}

	done := make(chan outcome, 1)

	select {
	case p.tasks <- submission{op: op, task: task, done: done}:
	case <-p.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case result := <-done:
		return result.value, result.err
	case <-timer.C:
		if p.logger != nil {
			p.logger.WithFields(logrus.Fields{
				"action": "task_timeout",
				"op":     op,
				"wait":   wait.String(),
			}).Warn("executor_wait_expired")
		}
		return nil, fmt.Errorf("%s: %w", op, ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SubmitWait 提交任务并无限期等待完成，供流式路径占用 worker 配额使用；
// 流式交付自身没有结果超时（单次外呼的执行超时仍然生效）。
func (p *Pool) SubmitWait(ctx context.Context, op string, task Task) (any, error) {
	// 先行检查：Close 之后 worker 可能尚未全部退出，
	// 仅靠下面的 select 无法保证拒绝入队。
	select {
	case <-p.done:
		return nil, ErrClosed
	default:
	}

	done := make(chan outcome, 1)

	select {
	case p.tasks <- submission{op: op, task: task, done: done}:
	case <-p.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	result := <-done
	return result.value, result.err
}

// Close 停止所有 worker，之后的 Submit/SubmitWait 返回 ErrClosed。
// 可重复调用。
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		close(p.done)
	})
}

// worker 循环消费任务。执行上下文与调用方解耦：客户端断开不会
// 中断已经开始的 Provider 调用。
func (p *Pool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sub := <-p.tasks:
			p.execute(sub)
		}
	}
}

func (p *Pool) execute(sub submission) {
	if p.limiter != nil {
		if err := p.limiter.Wait(context.Background()); err != nil {
			sub.done <- outcome{err: err}
			return
		}
	}

	callCtx, cancel := context.WithTimeout(context.Background(), p.callTimeout)
	defer cancel()

	value, err := sub.task(callCtx)
	sub.done <- outcome{value: value, err: err}
}
