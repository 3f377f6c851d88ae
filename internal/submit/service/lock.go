package service

import (
	"context"
	"sync"
	"time"

	"codedrill/internal/common/cache"
	appErr "codedrill/pkg/errors"
	"codedrill/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	attemptLockKeyPrefix = "submit:attempt:lock:"
	attemptLockTTL       = 10 * time.Second
	attemptLockRetry     = 20 * time.Millisecond
	// attemptLockWait bounds how long persist queues for the task lock.
	attemptLockWait      = attemptLockTTL
)

// taskLocker serializes attempt counting and insertion per task.
// The in-process lock is always taken; the cache lease extends it across
// processes when a cache is configured, and is skipped if the cache fails.
type taskLocker struct {
	mu    sync.Mutex
	locks map[string]*taskLock
	cache cache.Cache
}

type taskLock struct {
	slot chan struct{}
	refs int
}

func newTaskLocker(cacheClient cache.Cache) *taskLocker {
	return &taskLocker{locks: make(map[string]*taskLock), cache: cacheClient}
}

// Lock blocks until the task is free and returns the matching unlock function.
func (l *taskLocker) Lock(ctx context.Context, taskID string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[taskID]
	if !ok {
		entry = &taskLock{slot: make(chan struct{}, 1)}
		l.locks[taskID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.slot <- struct{}{}:
	case <-ctx.Done():
		l.drop(taskID, entry)
		return nil, appErr.Wrapf(ctx.Err(), appErr.Timeout, "wait for attempt lock canceled")
	}
	token := l.lease(ctx, taskID)
	if ctx.Err() != nil {
		l.release(ctx, taskID, entry, token)
		return nil, appErr.Wrapf(ctx.Err(), appErr.Timeout, "wait for attempt lock canceled")
	}
	return func() { l.release(ctx, taskID, entry, token) }, nil
}

// lease returns the holder token of the cache lease, or "" when running on
// the process lock only.
func (l *taskLocker) lease(ctx context.Context, taskID string) string {
	if l.cache == nil {
		return ""
	}
	key := attemptLockKeyPrefix + taskID
	for {
		token, ok, err := l.cache.TryLock(ctx, key, attemptLockTTL)
		if err != nil {
			logger.Warn(ctx, "attempt lock lease failed, using process lock only", zap.String("task_id", taskID), zap.Error(err))
			return ""
		}
		if ok {
			return token
		}
		select {
		case <-ctx.Done():
			return ""
		case <-time.After(attemptLockRetry):
		}
	}
}

func (l *taskLocker) release(ctx context.Context, taskID string, entry *taskLock, token string) {
	if token != "" {
		if err := l.cache.Unlock(context.WithoutCancel(ctx), attemptLockKeyPrefix+taskID, token); err != nil {
			logger.Warn(ctx, "attempt lock unlock failed", zap.String("task_id", taskID), zap.Error(err))
		}
	}
	<-entry.slot
	l.drop(taskID, entry)
}

func (l *taskLocker) drop(taskID string, entry *taskLock) {
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, taskID)
	}
	l.mu.Unlock()
}
