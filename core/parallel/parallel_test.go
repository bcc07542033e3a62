package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelizeCoversEveryRowOnce(t *testing.T) {
	for _, items := range []int{0, 1, 7, 64, 1001} {
		hits := make([]int32, items)
		Parallelize(items, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		})
		for i, h := range hits {
			require.Equalf(t, int32(1), h, "items=%d row=%d", items, i)
		}
	}
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	var calls int32
	ParallelizeWithThreshold(10, MinRowsPerWorker, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, int32(1), calls)
}

func TestForEach(t *testing.T) {
	results := make([]int, 20)
	err := ForEach(context.Background(), len(results), 3, func(_ context.Context, i int) error {
		results[i] = i * i
		return nil
	})
	require.NoError(t, err)
	for i, v := range results {
		assert.Equal(t, i*i, v)
	}
}

func TestForEachReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	err := ForEach(context.Background(), 10, 2, func(_ context.Context, i int) error {
		if i == 4 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}
