package idgen

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock returns queued readings, then repeats the last one forever.
type stepClock struct {
	mu       sync.Mutex
	readings []int64
}

func (c *stepClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.readings[0]
	if len(c.readings) > 1 {
		c.readings = c.readings[1:]
	}
	return now
}

// tickingClock advances one millisecond every call.
type tickingClock struct{ ms atomic.Int64 }

func (c *tickingClock) Now() int64 { return c.ms.Add(1) }

func parse(t *testing.T, id string) int64 {
	t.Helper()
	v, err := strconv.ParseInt(id, 10, 64)
	require.NoError(t, err)
	return v
}

func TestSnowflake_Layout(t *testing.T) {
	sf, err := New(3, &stepClock{readings: []int64{Epoch + 5}})
	require.NoError(t, err)

	first, err := sf.NextID()
	require.NoError(t, err)
	second, err := sf.NextID()
	require.NoError(t, err)

	base := int64(5)<<timestampShift | 3<<nodeShift
	assert.Equal(t, base, parse(t, first))
	assert.Equal(t, base|1, parse(t, second), "same millisecond bumps the sequence")
}

func TestSnowflake_NodeIDRange(t *testing.T) {
	_, err := New(maxNodeID+1, nil)
	assert.ErrorIs(t, err, ErrNodeIDTooLarge)
	_, err = New(-1, nil)
	assert.ErrorIs(t, err, ErrNodeIDTooLarge)

	_, err = New(maxNodeID, nil)
	assert.NoError(t, err)
}

func TestSnowflake_ClockSteps(t *testing.T) {
	tests := []struct {
		name     string
		readings []int64
		wantErr  error
	}{
		{
			name:     "SmallStepBackWaits",
			readings: []int64{Epoch + 100, Epoch + 95, Epoch + 97, Epoch + 101},
		},
		{
			name:     "LargeStepBackFails",
			readings: []int64{Epoch + 100, Epoch + 100 - MaxClockDrift - 1},
			wantErr:  ErrClockMovedBack,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sf, err := New(1, &stepClock{readings: tt.readings})
			require.NoError(t, err)

			first, err := sf.NextID()
			require.NoError(t, err)

			second, err := sf.NextID()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Greater(t, parse(t, second), parse(t, first))
		})
	}
}

func TestSnowflake_SequenceRollover(t *testing.T) {
	clock := &stepClock{readings: []int64{Epoch + 1}}
	sf, err := New(1, clock)
	require.NoError(t, err)

	for i := 0; i <= maxSequence; i++ {
		_, err := sf.NextID()
		require.NoError(t, err)
	}

	clock.mu.Lock()
	clock.readings = []int64{Epoch + 1, Epoch + 2}
	clock.mu.Unlock()

	id, err := sf.NextID()
	require.NoError(t, err)
	assert.Equal(t, int64(2)<<timestampShift|1<<nodeShift, parse(t, id), "exhausted sequence moves to the next millisecond")
}

func TestSnowflake_ConcurrentUnique(t *testing.T) {
	clock := &tickingClock{}
	clock.ms.Store(Epoch)
	sf, err := New(7, clock)
	require.NoError(t, err)

	const workers, perWorker = 16, 500
	var (
		mu   sync.Mutex
		seen = make(map[string]bool, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id, err := sf.NextID()
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*perWorker)
}
