package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var start = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestStepClock_Steps(t *testing.T) {
	c := NewStepClock(start, 250*time.Millisecond)

	assert.Equal(t, start, c.Now())
	assert.Equal(t, start.Add(250*time.Millisecond), c.Now())
	assert.Equal(t, start.Add(500*time.Millisecond), c.Now())
	assert.Equal(t, int64(3), c.Reads())
}

func TestStepClock_ZeroStepIsFrozen(t *testing.T) {
	c := NewStepClock(start, 0)
	for range 5 {
		assert.Equal(t, start, c.Now())
	}
}

func TestStepClock_Reset(t *testing.T) {
	c := NewStepClock(start, time.Second)
	c.Now()
	c.Now()
	c.Reset()

	assert.Equal(t, int64(0), c.Reads())
	assert.Equal(t, start, c.Now())
}

func TestStepClock_Concurrent(t *testing.T) {
	c := NewStepClock(start, time.Millisecond)

	const goroutines, reads = 10, 100
	seen := make(chan time.Time, goroutines*reads)
	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range reads {
				seen <- c.Now()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[time.Time]bool)
	for ts := range seen {
		unique[ts] = true
	}
	assert.Len(t, unique, goroutines*reads, "every reading is distinct")
	assert.Equal(t, int64(goroutines*reads), c.Reads())
}
