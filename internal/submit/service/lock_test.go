package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"codedrill/internal/common/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("new redis cache: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Close()
	})
	return c, mr
}

func TestTaskLockerSerializesPerTask(t *testing.T) {
	for _, withCache := range []bool{false, true} {
		name := "process only"
		if withCache {
			name = "with cache lease"
		}
		t.Run(name, func(t *testing.T) {
			var locker *taskLocker
			if withCache {
				c, _ := newTestCache(t)
				locker = newTaskLocker(c)
			} else {
				locker = newTaskLocker(nil)
			}

			var inside, maxInside int32
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					unlock, err := locker.Lock(context.Background(), "w1")
					if err != nil {
						t.Errorf("lock failed: %v", err)
						return
					}
					n := atomic.AddInt32(&inside, 1)
					for {
						m := atomic.LoadInt32(&maxInside)
						if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
							break
						}
					}
					time.Sleep(2 * time.Millisecond)
					atomic.AddInt32(&inside, -1)
					unlock()
				}()
			}
			wg.Wait()
			if maxInside != 1 {
				t.Fatalf("expected exclusive access, saw %d holders", maxInside)
			}
			locker.mu.Lock()
			remaining := len(locker.locks)
			locker.mu.Unlock()
			if remaining != 0 {
				t.Fatalf("expected lock entries to be freed, got %d", remaining)
			}
		})
	}
}

func TestTaskLockerReleasesLease(t *testing.T) {
	c, mr := newTestCache(t)
	locker := newTaskLocker(c)
	unlock, err := locker.Lock(context.Background(), "w1")
	if err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	if !mr.Exists(attemptLockKeyPrefix + "w1") {
		t.Fatalf("expected lease key while locked")
	}
	unlock()
	if mr.Exists(attemptLockKeyPrefix + "w1") {
		t.Fatalf("expected lease key removed after unlock")
	}
}

func TestTaskLockerWaitsForForeignLease(t *testing.T) {
	c, mr := newTestCache(t)
	if err := mr.Set(attemptLockKeyPrefix+"w1", "other-process"); err != nil {
		t.Fatalf("seed lease: %v", err)
	}
	locker := newTaskLocker(c)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "w1"); err == nil {
		t.Fatalf("expected lock to time out while another process holds the lease")
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		mr.Del(attemptLockKeyPrefix + "w1")
	}()
	unlock, err := locker.Lock(context.Background(), "w1")
	if err != nil {
		t.Fatalf("lock failed after lease release: %v", err)
	}
	unlock()
}

func TestTaskLockerKeepsLeaseTakenOverAfterExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	locker := newTaskLocker(c)
	unlock, err := locker.Lock(context.Background(), "w1")
	if err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	key := attemptLockKeyPrefix + "w1"
	mr.FastForward(attemptLockTTL + time.Second)
	if mr.Exists(key) {
		t.Fatalf("expected lease to expire")
	}
	if err := mr.Set(key, "other-process"); err != nil {
		t.Fatalf("seed lease: %v", err)
	}
	unlock()
	if value, _ := mr.Get(key); value != "other-process" {
		t.Fatalf("expected other holder's lease to survive unlock, got %q", value)
	}
}

func TestTaskLockerWaitHonorsContext(t *testing.T) {
	locker := newTaskLocker(nil)
	unlock, err := locker.Lock(context.Background(), "w1")
	if err != nil {
		t.Fatalf("lock failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "w1"); err == nil {
		t.Fatalf("expected queued lock to give up with its context")
	}
	unlock()

	locker.mu.Lock()
	remaining := len(locker.locks)
	locker.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected lock entries to be freed, got %d", remaining)
	}
}

func TestTaskLockerFallsBackWhenCacheFails(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()
	locker := newTaskLocker(c)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	unlock, err := locker.Lock(ctx, "w1")
	if err != nil {
		t.Fatalf("cache failure must not block submissions: %v", err)
	}
	unlock()
}
