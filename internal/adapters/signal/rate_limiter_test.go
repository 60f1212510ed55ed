package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoomRateLimiter(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRoomRateLimiter(3, time.Second)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("A"), "attempt %d", i)
	}
	assert.False(t, rl.Allow("A"))
	assert.True(t, rl.Allow("B"), "limits are per connection")

	now = now.Add(1001 * time.Millisecond)
	assert.True(t, rl.Allow("A"))

	rl.Forget("A")
	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("A"))
	}
}

func TestRoomRateLimiter_Disabled(t *testing.T) {
	rl := NewRoomRateLimiter(0, time.Second)
	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow("A"))
	}
}
