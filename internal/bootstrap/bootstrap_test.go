package bootstrap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitWithTimeout(t *testing.T) {
	t.Run("returns true when done closes in time", func(t *testing.T) {
		done := make(chan struct{})
		go func() {
			time.Sleep(10 * time.Millisecond)
			close(done)
		}()

		assert.True(t, waitWithTimeout(done, time.Second))
	})

	t.Run("returns false when the timeout elapses first", func(t *testing.T) {
		done := make(chan struct{})

		start := time.Now()
		assert.False(t, waitWithTimeout(done, 20*time.Millisecond))
		assert.Less(t, time.Since(start), time.Second, "the drain wait must be bounded")
	})

	t.Run("returns true for an already closed channel", func(t *testing.T) {
		done := make(chan struct{})
		close(done)

		assert.True(t, waitWithTimeout(done, time.Millisecond))
	})
}
