package profiler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStageProfiler_Record verifies aggregation and first-recorded
// ordering.
func TestStageProfiler_Record(t *testing.T) {
	p := NewStageProfiler()

	p.Record("decode", 2*time.Millisecond)
	p.Record("nms", 10*time.Millisecond)
	p.Record("decode", 4*time.Millisecond)

	stages := p.Stages()
	require.Len(t, stages, 2)

	decode := stages[0]
	assert.Equal(t, "decode", decode.Name())
	assert.Equal(t, int64(2), decode.Count())
	assert.Equal(t, 6*time.Millisecond, decode.Total())
	assert.Equal(t, 2*time.Millisecond, decode.Min())
	assert.Equal(t, 4*time.Millisecond, decode.Max())
	assert.Equal(t, 3*time.Millisecond, decode.Average())

	assert.Equal(t, "nms", stages[1].Name())
}

// TestStageProfiler_Reset discards recorded samples.
func TestStageProfiler_Reset(t *testing.T) {
	p := NewStageProfiler()
	p.Record("decode", time.Millisecond)

	p.Reset()

	assert.Empty(t, p.Stages())
}

// TestStageProfiler_Concurrent hammers Record from many goroutines.
func TestStageProfiler_Concurrent(t *testing.T) {
	p := NewStageProfiler()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				p.Record("nms", time.Microsecond)
			}
		}()
	}
	wg.Wait()

	stages := p.Stages()
	require.Len(t, stages, 1)
	assert.Equal(t, int64(800), stages[0].Count())
}

// TestStageProfiler_String renders one line per stage.
func TestStageProfiler_String(t *testing.T) {
	p := NewStageProfiler()
	p.Record("decode", time.Millisecond)

	out := p.String()
	assert.Contains(t, out, "decode")
	assert.Contains(t, out, "count=1")
}
