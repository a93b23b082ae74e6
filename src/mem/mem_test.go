package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshArena(t *testing.T, npages int) {
	t.Helper()
	Phys_init(npages)
}

func TestAllocRunContiguous(t *testing.T) {
	freshArena(t, 16)
	base, ok := Physmem.Alloc_run(4)
	require.True(t, ok)
	for i := 0; i < 4; i++ {
		p := base + Pa_t(i*PGSIZE)
		assert.Equal(t, 1, Physmem.Refcnt(p))
	}
	free, _ := Physmem.Pgcount()
	assert.Equal(t, 12, free)
}

func TestAllocRunExhaustion(t *testing.T) {
	freshArena(t, 4)
	_, ok := Physmem.Alloc_run(5)
	assert.False(t, ok)
}

func TestAllocRunSkipsHeldPages(t *testing.T) {
	freshArena(t, 8)
	// Refpg_new always takes the free list's head, page index 0; holding
	// it leaves pages 1-7 as the only surviving contiguous run.
	_, _, ok := Physmem.Refpg_new()
	require.True(t, ok)

	_, ok = Physmem.Alloc_run(8)
	assert.False(t, ok, "held page should break the only possible full-arena run")

	base, ok := Physmem.Alloc_run(7)
	assert.True(t, ok)
	assert.Equal(t, Pa_t(PGSIZE), base, "surviving run should start right after the held page")
}

func TestFreeRunReturnsPagesToFreelist(t *testing.T) {
	freshArena(t, 8)
	base, ok := Physmem.Alloc_run(8)
	require.True(t, ok)
	free, _ := Physmem.Pgcount()
	require.Zero(t, free)

	Physmem.Free_run(base, 8)
	free, _ = Physmem.Pgcount()
	assert.Equal(t, 8, free)

	base2, ok := Physmem.Alloc_run(8)
	assert.True(t, ok)
	assert.Equal(t, base, base2)
}

func TestAllocFreePackageLevel(t *testing.T) {
	freshArena(t, 4)
	p := Alloc(3)
	require.NotZero(t, p)
	free, _ := Physmem.Pgcount()
	assert.Equal(t, 1, free)

	Free(p, 3)
	free, _ = Physmem.Pgcount()
	assert.Equal(t, 4, free)
}
