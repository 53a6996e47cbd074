package session

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_AcquireIsExclusivePerDocument(t *testing.T) {
	m := NewManager(nil)

	release, err := m.Acquire("tab-1", "run-a")
	require.NoError(t, err)
	require.Len(t, m.List(), 1)
	assert.Equal(t, "run-a", m.List()[0].RunID)

	_, err = m.Acquire("tab-1", "run-b")
	assert.ErrorIs(t, err, ErrRunInProgress)

	other, err := m.Acquire("tab-2", "run-c")
	require.NoError(t, err)
	assert.Len(t, m.List(), 2)

	release()
	release()
	require.Len(t, m.List(), 1)
	assert.Equal(t, "tab-2", m.List()[0].DocID)

	again, err := m.Acquire("tab-1", "run-d")
	require.NoError(t, err)
	again()
	other()
	assert.Empty(t, m.List())
}

func TestManager_StaleReleaseKeepsNewerRun(t *testing.T) {
	m := NewManager(nil)
	first, err := m.Acquire("tab", "old")
	require.NoError(t, err)
	first()

	_, err = m.Acquire("tab", "new")
	require.NoError(t, err)
	first()
	require.Len(t, m.List(), 1)
	assert.Equal(t, "new", m.List()[0].RunID)
}

func TestManager_ConcurrentAcquire(t *testing.T) {
	m := NewManager(nil)
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Acquire("tab", "r"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
