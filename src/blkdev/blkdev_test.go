package blkdev

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defs"
)

func TestMemDiskReadWrite(t *testing.T) {
	d := NewMemDisk(4096)
	buf := []byte("hello, block device")
	require.EqualValues(t, 0, d.WriteAt(buf, 512))

	out := make([]byte, len(buf))
	require.EqualValues(t, 0, d.ReadAt(out, 512))
	assert.Equal(t, buf, out)
}

func TestMemDiskOutOfRangeIsEIO(t *testing.T) {
	d := NewMemDisk(512)
	buf := make([]byte, 16)
	assert.Equal(t, -defs.EIO, d.ReadAt(buf, 1000))
	assert.Equal(t, -defs.EIO, d.WriteAt(buf, 1000))
}

func TestMemDiskTruncateGrowShrink(t *testing.T) {
	d := NewMemDisk(512)
	require.EqualValues(t, 0, d.Truncate(1024))
	assert.EqualValues(t, 1024, d.Size())
	require.EqualValues(t, 0, d.Truncate(256))
	assert.EqualValues(t, 256, d.Size())
}

func TestHostDiskRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bin")
	hd, err := CreateHostDisk(path, 8192)
	require.EqualValues(t, 0, err)
	defer hd.Close()

	buf := []byte("persisted across open")
	require.EqualValues(t, 0, hd.WriteAt(buf, 100))
	require.EqualValues(t, 0, hd.Sync())

	reopened, err := OpenHostDisk(path)
	require.EqualValues(t, 0, err)
	defer reopened.Close()

	out := make([]byte, len(buf))
	require.EqualValues(t, 0, reopened.ReadAt(out, 100))
	assert.Equal(t, buf, out)
}

func TestOpenHostDiskMissingIsENODEV(t *testing.T) {
	_, err := OpenHostDisk(filepath.Join(t.TempDir(), "nope.bin"))
	assert.Equal(t, -defs.ENODEV, err)
}

func TestHostDiskBoundsConcurrentRequests(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bin")
	hd, err := CreateHostDisk(path, int64(maxInflight+4)*512)
	require.EqualValues(t, 0, err)
	defer hd.Close()

	var wg sync.WaitGroup
	for i := 0; i < maxInflight*2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buf := make([]byte, 512)
			assert.EqualValues(t, 0, hd.WriteAt(buf, int64(i%(maxInflight+4))*512))
		}(i)
	}
	wg.Wait()
}
