package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeduper_DropsRepeatsWithinTTL(t *testing.T) {
	d := New(time.Minute, 10)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	assert.True(t, d.ShouldProcess("a"))
	assert.False(t, d.ShouldProcess("a"))
	assert.True(t, d.ShouldProcess("b"))

	now = now.Add(2 * time.Minute)
	assert.True(t, d.ShouldProcess("a"))
}

func TestDeduper_EmptyIDAlwaysProcessed(t *testing.T) {
	d := New(0, 0)
	assert.True(t, d.ShouldProcess(""))
	assert.True(t, d.ShouldProcess(""))
	assert.Equal(t, 0, d.Len())
}

func TestDeduper_BoundedSize(t *testing.T) {
	d := New(time.Hour, 3)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	i := 0
	d.now = func() time.Time { i++; return base.Add(time.Duration(i) * time.Second) }

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		assert.True(t, d.ShouldProcess(id))
	}
	assert.Equal(t, 3, d.Len())
	// the oldest ids were evicted, the newest survive
	assert.False(t, d.ShouldProcess("e"))
	assert.True(t, d.ShouldProcess("a"))
}
