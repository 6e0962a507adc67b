package timing

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewTimer(t *testing.T) {
	timer := NewTimer()
	assert.NotNil(t, timer)
	assert.GreaterOrEqual(t, timer.Elapsed(), time.Duration(0))
}

func TestTimer_Mark(t *testing.T) {
	timer := NewTimer()

	d := timer.Mark("first")
	assert.GreaterOrEqual(t, d, time.Duration(0))

	got, ok := timer.Get("first")
	assert.True(t, ok)
	assert.Equal(t, d, got)

	_, ok = timer.Get("missing")
	assert.False(t, ok)
}

func TestTimer_Summary(t *testing.T) {
	timer := NewTimer()
	timer.Mark("open")
	timer.Mark("save")

	summary := timer.Summary()
	assert.True(t, strings.HasPrefix(summary, "Total:"))
	assert.Contains(t, summary, "open:")
	assert.Contains(t, summary, "save:")

	// Marks keep insertion order.
	assert.Less(t, strings.Index(summary, "open:"), strings.Index(summary, "save:"))
}

func TestTimer_Reset(t *testing.T) {
	timer := NewTimer()
	timer.Mark("before")
	timer.Reset()

	_, ok := timer.Get("before")
	assert.False(t, ok)
	assert.NotContains(t, timer.Summary(), "before")
}
