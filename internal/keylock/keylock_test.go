package keylock

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLock_SerializesSameKey(t *testing.T) {
	m := New()
	key := uuid.New()

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock(key)
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("expected counter 50, got %d", counter)
	}
	if m.Len() != 0 {
		t.Errorf("expected no entries left, got %d", m.Len())
	}
}

func TestLock_DifferentKeysDoNotBlock(t *testing.T) {
	m := New()
	unlockA := m.Lock(uuid.New())
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := m.Lock(uuid.New())
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestLock_UnlockTwiceIsSafe(t *testing.T) {
	m := New()
	key := uuid.New()
	unlock := m.Lock(key)
	unlock()
	unlock()

	if m.Len() != 0 {
		t.Errorf("expected no entries left, got %d", m.Len())
	}
	again := m.Lock(key)
	again()
}
