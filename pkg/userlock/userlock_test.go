package userlock

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestKeyedMutexSerializesSameUser(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	var inSection bool
	var overlaps int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := km.Acquire(ctx, "user-1")
			if err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			mu.Lock()
			if inSection {
				overlaps++
			}
			inSection = true
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inSection = false
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if overlaps != 0 {
		t.Errorf("critical section overlapped %d times", overlaps)
	}
}

func TestKeyedMutexIndependentUsers(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	releaseA, err := km.Acquire(ctx, "user-a")
	if err != nil {
		t.Fatalf("Acquire(user-a) error = %v", err)
	}
	defer releaseA()

	// user-b must not wait on user-a's lock.
	done := make(chan struct{})
	go func() {
		releaseB, err := km.Acquire(ctx, "user-b")
		if err != nil {
			t.Errorf("Acquire(user-b) error = %v", err)
			return
		}
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for a different user blocked")
	}
}

func TestKeyedMutexAcquireHonorsContext(t *testing.T) {
	km := NewKeyedMutex()

	release, err := km.Acquire(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := km.Acquire(ctx, "user-1"); err != context.DeadlineExceeded {
		t.Errorf("Acquire() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestKeyedMutexCleansUpEntries(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	release, err := km.Acquire(ctx, "user-1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	release()

	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.locks) != 0 {
		t.Errorf("lock map holds %d entries after release, want 0", len(km.locks))
	}
}
