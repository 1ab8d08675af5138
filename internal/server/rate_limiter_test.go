package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	l := newRateLimiter(RateLimitConfig{Burst: 3, RefillInterval: time.Hour})
	for i := range 3 {
		assert.True(t, l.Allow(), "frame %d", i)
	}
	assert.False(t, l.Allow())

	fallback := newRateLimiter(RateLimitConfig{})
	assert.True(t, fallback.Allow())
	assert.False(t, fallback.Allow(), "zero config falls back to one frame per second")
}
