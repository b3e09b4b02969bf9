package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestViolationTrackerClosesAfterThreshold(t *testing.T) {
	v := newViolationTracker(10*time.Second, 3)
	now := time.Now()

	assert.False(t, v.record(now, time.Second))
	assert.False(t, v.record(now, time.Second))
	assert.True(t, v.record(now, time.Second), "third violation within the window must trip the threshold")
}

func TestViolationTrackerForgetsOldViolations(t *testing.T) {
	v := newViolationTracker(10*time.Millisecond, 2)
	now := time.Now()

	assert.False(t, v.record(now, time.Millisecond))

	later := now.Add(50 * time.Millisecond)
	assert.False(t, v.record(later, time.Millisecond), "the first violation fell outside the window and must not count")
}

func TestViolationTrackerInCooldown(t *testing.T) {
	v := newViolationTracker(10*time.Second, 5)
	now := time.Now()

	assert.False(t, v.inCooldown(now))
	v.record(now, 100*time.Millisecond)
	assert.True(t, v.inCooldown(now))
	assert.False(t, v.inCooldown(now.Add(200*time.Millisecond)))
}
