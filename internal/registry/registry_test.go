package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkvm-go/rkvm/internal/model"
	"github.com/rkvm-go/rkvm/internal/rkvmio"
)

func TestRegistry_InsertThenDropLeavesEmpty(t *testing.T) {
	r := New()
	node := rkvmio.DeviceNode{Dev: 1, Inode: 2}

	handle, err := r.Register(node)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	handle.Close()
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_DuplicateRegisterIsNotApplicable(t *testing.T) {
	r := New()
	node := rkvmio.DeviceNode{Dev: 1, Inode: 2}

	_, err := r.Register(node)
	require.NoError(t, err)

	_, err = r.Register(node)
	assert.ErrorIs(t, err, model.ErrNotApplicable)
}

func TestRegistry_ConcurrentInsertOnlyOneSucceeds(t *testing.T) {
	r := New()
	node := rkvmio.DeviceNode{Dev: 5, Inode: 9}

	const attempts = 50
	var wg sync.WaitGroup
	var successes int
	var mu sync.Mutex

	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Register(node); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestRegistry_DistinctNodesIndependent(t *testing.T) {
	r := New()
	h1, err := r.Register(rkvmio.DeviceNode{Dev: 1, Inode: 1})
	require.NoError(t, err)
	h2, err := r.Register(rkvmio.DeviceNode{Dev: 1, Inode: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, r.Len())
	h1.Close()
	assert.Equal(t, 1, r.Len())
	h2.Close()
	assert.Equal(t, 0, r.Len())
}
