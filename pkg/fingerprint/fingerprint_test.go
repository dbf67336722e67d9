package fingerprint

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	c := filepath.Join(dir, "c.txt")
	require.NoError(t, os.WriteFile(a, []byte("same content"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("same content"), 0644))
	require.NoError(t, os.WriteFile(c, []byte("other content"), 0644))

	ha, err := File(context.Background(), a)
	require.NoError(t, err)
	hb, err := File(context.Background(), b)
	require.NoError(t, err)
	hc, err := File(context.Background(), c)
	require.NoError(t, err)

	assert.Len(t, ha, 64)
	assert.Equal(t, ha, hb, "hash depends only on bytes, not on the name")
	assert.NotEqual(t, ha, hc)
}

func TestFile_Missing(t *testing.T) {
	t.Parallel()
	_, err := File(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestReader_LargeInputMatchesSmallChunks(t *testing.T) {
	t.Parallel()
	content := strings.Repeat("0123456789", chunkSize/5)

	h1, err := Reader(context.Background(), strings.NewReader(content))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "big")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	h2, err := File(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

func TestReader_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Reader(ctx, strings.NewReader("abc"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestLocker_SerializesSameKey(t *testing.T) {
	t.Parallel()
	l := NewLocker()

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "hash")
			if !assert.NoError(t, err) {
				return
			}
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
	assert.Equal(t, 0, l.Len())
}

func TestLocker_DifferentKeysDoNotBlock(t *testing.T) {
	t.Parallel()
	l := NewLocker()

	unlockA, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestLocker_ContextCancelledWhileWaiting(t *testing.T) {
	t.Parallel()
	l := NewLocker()

	unlock, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "a")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.Equal(t, 0, l.Len())
}
