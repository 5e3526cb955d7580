package bufpool

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_TierSelection(t *testing.T) {
	t.Run("SmallTier", func(t *testing.T) {
		buf := Get(100)
		defer Put(buf)

		assert.Equal(t, 100, len(buf))
		assert.Equal(t, DefaultSmallSize, cap(buf))
	})

	t.Run("MediumTier", func(t *testing.T) {
		buf := Get(10 * 1024)
		defer Put(buf)

		assert.Equal(t, 10*1024, len(buf))
		assert.Equal(t, DefaultMediumSize, cap(buf))
	})

	t.Run("LargeTier", func(t *testing.T) {
		buf := Get(100 * 1024)
		defer Put(buf)

		assert.Equal(t, 100*1024, len(buf))
		assert.Equal(t, DefaultLargeSize, cap(buf))
	})

	t.Run("OversizedAllocatesDirectly", func(t *testing.T) {
		buf := Get(2 * DefaultLargeSize)
		defer Put(buf)

		assert.Equal(t, 2*DefaultLargeSize, len(buf))
		assert.Equal(t, len(buf), cap(buf))
	})
}

func TestGet_TierBoundaries(t *testing.T) {
	for _, size := range []int{DefaultSmallSize, DefaultMediumSize, DefaultLargeSize} {
		buf := Get(size)
		assert.Equal(t, size, len(buf))
		assert.Equal(t, size, cap(buf))
		Put(buf)
	}
}

func TestPut_NilAndForeignBuffersIgnored(t *testing.T) {
	Put(nil)
	Put(make([]byte, 777)) // odd capacity, not a pool tier
}

func TestPool_RoundTripReusesBuffer(t *testing.T) {
	pool := NewPool(&Config{SmallSize: 16, MediumSize: 32, LargeSize: 64})

	buf := pool.Get(8)
	assert.Equal(t, 16, cap(buf))
	pool.Put(buf)

	again := pool.Get(8)
	assert.Equal(t, 16, cap(again))
	pool.Put(again)
}

func TestPool_ConcurrentGetPut(t *testing.T) {
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				buf := Get(1024)
				buf[0] = byte(i)
				Put(buf)
			}
		}()
	}
	wg.Wait()
}

func TestReadAll_ExactContent(t *testing.T) {
	payload := strings.Repeat("sbi-payload/", 1000)

	body, err := ReadAll(strings.NewReader(payload), int64(len(payload)))
	require.NoError(t, err)
	assert.Equal(t, payload, string(body))
	assert.Equal(t, len(payload), len(body))
}

func TestReadAll_UnknownLength(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 3*DefaultMediumSize)

	body, err := ReadAll(bytes.NewReader(payload), -1)
	require.NoError(t, err)
	assert.Equal(t, payload, body)
}

func TestReadAll_ResultIndependentOfPool(t *testing.T) {
	first, err := ReadAll(strings.NewReader("first-body"), 10)
	require.NoError(t, err)

	// A second read reuses the pooled scratch; the first result must
	// be untouched.
	_, err = ReadAll(strings.NewReader(strings.Repeat("x", 4096)), 4096)
	require.NoError(t, err)

	assert.Equal(t, "first-body", string(first))
}

func TestReadAll_EmptyReader(t *testing.T) {
	body, err := ReadAll(strings.NewReader(""), 0)
	require.NoError(t, err)
	assert.Empty(t, body)
}
