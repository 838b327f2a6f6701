package contract

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	var mu sync.Mutex
	counter := 0
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("m1:abc")
			defer unlock()
			mu.Lock()
			counter++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)

	km.mu.Lock()
	assert.Empty(t, km.locks, "released entries must be reclaimed")
	km.mu.Unlock()
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.Lock("m1:a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("m1:b")
		unlockB()
		close(done)
	}()

	<-done
}
