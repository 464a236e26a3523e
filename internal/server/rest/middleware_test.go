package rest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestIPLimiter_PerKeyBuckets(t *testing.T) {
	l := newIPLimiter(rate.Every(time.Hour), 1, time.Minute)
	now := time.Now()
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"), "buckets are independent")
}

func TestIPLimiter_SweepsIdle(t *testing.T) {
	l := newIPLimiter(rate.Every(time.Hour), 1, time.Minute)
	now := time.Now()
	l.now = func() time.Time { return now }

	l.allow("a")
	l.allow("b")
	assert.Len(t, l.visitors, 2)

	now = now.Add(2 * time.Minute)
	l.allow("c")
	assert.Len(t, l.visitors, 1)
	assert.Contains(t, l.visitors, "c")
}
