package locks

import (
	"sync"
	"testing"
)

func TestGetReturnsSameLockForSameName(t *testing.T) {
	registry := NewRegistry()
	if registry.Get("track-a") != registry.Get("track-a") {
		t.Fatal("expected identical lock instance for one name")
	}
	if registry.Get("track-a") == registry.Get("track-b") {
		t.Fatal("distinct names must yield distinct locks")
	}
	if registry.Len() != 2 {
		t.Fatalf("expected 2 cached locks, got %d", registry.Len())
	}
}

func TestConcurrentGetCreatesSingleLock(t *testing.T) {
	registry := NewRegistry()
	const goroutines = 32

	results := make([]*sync.Mutex, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(idx int) {
			defer wg.Done()
			results[idx] = registry.Get("shared")
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent Get returned different lock instances")
		}
	}
	if registry.Len() != 1 {
		t.Fatalf("expected a single cached lock, got %d", registry.Len())
	}
}

func TestWithLockSerializesCriticalSection(t *testing.T) {
	registry := NewRegistry()
	const goroutines = 16

	var active, peak int
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			registry.WithLock("x", func() {
				mu.Lock()
				active++
				if active > peak {
					peak = active
				}
				mu.Unlock()

				mu.Lock()
				active--
				mu.Unlock()
			})
		}()
	}
	wg.Wait()

	if peak != 1 {
		t.Fatalf("critical section overlapped, peak concurrency %d", peak)
	}
}

func TestWithLockReleasesOnPanic(t *testing.T) {
	registry := NewRegistry()

	func() {
		defer func() { _ = recover() }()
		registry.WithLock("x", func() { panic("boom") })
	}()

	// Deadlocks here if the panic path leaked the lock.
	registry.WithLock("x", func() {})
}
