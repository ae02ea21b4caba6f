package services

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/yashrajoria/catalog-seeder/logger"
	"github.com/yashrajoria/catalog-seeder/repository"
)

// RetryPolicy bounds how a batch is retried.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	JitterMin    time.Duration
	JitterMax    time.Duration
}

// DefaultRetryPolicy: 5 attempts, 250ms doubling, up to 250ms of extra jitter.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:  5,
	InitialDelay: 250 * time.Millisecond,
	JitterMin:    0,
	JitterMax:    250 * time.Millisecond,
}

// RetryOption overrides one field of the policy for a single call.
type RetryOption func(*RetryPolicy)

func WithMaxAttempts(n int) RetryOption {
	return func(p *RetryPolicy) { p.MaxAttempts = n }
}

func WithInitialDelay(d time.Duration) RetryOption {
	return func(p *RetryPolicy) { p.InitialDelay = d }
}

func WithJitter(lo, hi time.Duration) RetryOption {
	return func(p *RetryPolicy) {
		p.JitterMin = lo
		p.JitterMax = hi
	}
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// JitterFunc returns a duration in [lo, hi].
type JitterFunc func(lo, hi time.Duration) time.Duration

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func uniformJitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)+1))
}

// BatchExecutor commits batches to a DocumentStore, retrying transient
// failures with exponential backoff plus jitter.
type BatchExecutor struct {
	store       repository.DocumentStore
	policy      RetryPolicy
	sleep       Sleeper
	jitter      JitterFunc
	isRetryable func(error) bool
	logger      *zap.Logger
}

type ExecutorOption func(*BatchExecutor)

func WithSleeper(s Sleeper) ExecutorOption {
	return func(e *BatchExecutor) { e.sleep = s }
}

func WithJitterFunc(j JitterFunc) ExecutorOption {
	return func(e *BatchExecutor) { e.jitter = j }
}

func WithRetryClassifier(f func(error) bool) ExecutorOption {
	return func(e *BatchExecutor) { e.isRetryable = f }
}

func WithRetryPolicy(p RetryPolicy) ExecutorOption {
	return func(e *BatchExecutor) { e.policy = p }
}

func WithExecutorLogger(l *zap.Logger) ExecutorOption {
	return func(e *BatchExecutor) { e.logger = logger.OrNop(l) }
}

func NewBatchExecutor(store repository.DocumentStore, opts ...ExecutorOption) *BatchExecutor {
	e := &BatchExecutor{
		store:       store,
		policy:      DefaultRetryPolicy,
		sleep:       contextSleep,
		jitter:      uniformJitter,
		isRetryable: repository.IsRetryable,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CommitUpserts applies ops as one atomic batch per attempt. An empty batch is a no-op.
func (e *BatchExecutor) CommitUpserts(ctx context.Context, ops []repository.Upsert, opts ...RetryOption) error {
	if len(ops) == 0 {
		return nil
	}
	return e.run(ctx, "upsert", len(ops), func(ctx context.Context) error {
		return e.store.CommitUpserts(ctx, ops)
	}, opts)
}

// CommitDeletes removes refs as one atomic batch per attempt. An empty batch is a no-op.
func (e *BatchExecutor) CommitDeletes(ctx context.Context, refs []repository.DocRef, opts ...RetryOption) error {
	if len(refs) == 0 {
		return nil
	}
	return e.run(ctx, "delete", len(refs), func(ctx context.Context) error {
		return e.store.CommitDeletes(ctx, refs)
	}, opts)
}

func (e *BatchExecutor) run(ctx context.Context, kind string, size int, commit func(context.Context) error, opts []RetryOption) error {
	policy := e.policy
	for _, opt := range opts {
		opt(&policy)
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	delay := policy.InitialDelay
	for attempt := 1; ; attempt++ {
		err := commit(ctx)
		if err == nil {
			return nil
		}
		if attempt >= policy.MaxAttempts || !e.isRetryable(err) {
			return fmt.Errorf("%s batch of %d failed after %d attempt(s): %w", kind, size, attempt, err)
		}

		wait := delay + e.jitter(policy.JitterMin, policy.JitterMax)
		e.logger.Warn("batch commit failed, retrying",
			zap.String("kind", kind),
			zap.Int("size", size),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if serr := e.sleep(ctx, wait); serr != nil {
			return fmt.Errorf("%s batch of %d interrupted during backoff: %w", kind, size, serr)
		}
		delay *= 2
	}
}
