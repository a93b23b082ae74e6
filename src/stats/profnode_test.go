package stats

import (
	"bytes"
	"testing"

	"github.com/google/pprof/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defs"
	"stat"
)

func TestProfNodeIsReadOnlyLeaf(t *testing.T) {
	n := &ProfNode_t{}
	_, err := n.Lookup(nil)
	assert.Equal(t, -defs.ENOTDIR, err)
	_, err = n.Readdir()
	assert.Equal(t, -defs.ENOTDIR, err)
	_, err = n.Pwrite([]byte("x"), 0)
	assert.Equal(t, -defs.EINVAL, err)
}

func TestProfNodeStatIsReadOnlyRegularFile(t *testing.T) {
	n := &ProfNode_t{}
	var st stat.Stat_t
	assert.Zero(t, n.Stat(&st))
	assert.Equal(t, stat.IFREG|uint(0444), st.Mode())
}

func TestProfNodePreadEncodesCurrentCountersAsPprof(t *testing.T) {
	Syscalls.Add(3)
	n := &ProfNode_t{}
	buf := make([]byte, n.Size())
	got, err := n.Pread(buf, 0)
	require.Zero(t, err)
	require.Greater(t, got, 0)

	prof, perr := profile.Parse(bytes.NewReader(buf[:got]))
	require.NoError(t, perr)
	found := false
	for _, s := range prof.Sample {
		if s.Label["metric"] != nil && s.Label["metric"][0] == "kernel_syscalls_total" {
			found = true
		}
	}
	assert.True(t, found, "expected a sample labeled with the syscalls counter")
}

func TestProfNodePreadPastEndReturnsZero(t *testing.T) {
	n := &ProfNode_t{}
	buf := make([]byte, 8)
	got, err := n.Pread(buf, n.Size()+1000)
	assert.Zero(t, err)
	assert.Zero(t, got)
}
