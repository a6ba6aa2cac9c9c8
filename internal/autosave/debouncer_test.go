package autosave

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncer_CoalescesBursts(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	var calls, last atomic.Int32

	for i := 1; i <= 5; i++ {
		n := int32(i)
		d.Schedule("draft", func() {
			calls.Add(1)
			last.Store(n)
		})
		time.Sleep(5 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(5), last.Load())
	assert.False(t, d.Pending("draft"))
}

func TestDebouncer_KeysAreIndependent(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var a, b atomic.Int32
	d.Schedule("a", func() { a.Add(1) })
	d.Schedule("b", func() { b.Add(1) })

	assert.Eventually(t, func() bool { return a.Load() == 1 && b.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestDebouncer_FlushRunsImmediately(t *testing.T) {
	d := NewDebouncer(time.Hour)
	var calls atomic.Int32
	d.Schedule("draft", func() { calls.Add(1) })

	assert.True(t, d.Flush("draft"))
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, d.Flush("draft"))
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls atomic.Int32
	d.Schedule("draft", func() { calls.Add(1) })

	assert.True(t, d.Cancel("draft"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestDebouncer_FlushAll(t *testing.T) {
	d := NewDebouncer(time.Hour)
	var calls atomic.Int32
	for _, k := range []string{"a", "b", "c"} {
		d.Schedule(k, func() { calls.Add(1) })
	}

	d.FlushAll()
	assert.Equal(t, int32(3), calls.Load())
}
