package stats

import (
	"bytes"
	"time"

	"github.com/google/pprof/profile"
	dto "github.com/prometheus/client_model/go"

	"defs"
	"stat"
	"ustr"
	"vfs"
)

// ProfNode_t is the D_PROF device node: a read-only fs_node that
// serializes Registry's current counters into a pprof profile on every
// read, the way /proc/self/heap-style profiling endpoints work (§
// supplemented features). It implements vfs.Inode_i as a leaf (every
// namespace operation fails the way a device file's does) and vfs.Data_i
// for the actual read surface.
type ProfNode_t struct{}

var _ vfs.Inode_i = &ProfNode_t{}
var _ vfs.Data_i = &ProfNode_t{}

func (n *ProfNode_t) Type() vfs.Ntype_t { return vfs.NFILE }

func (n *ProfNode_t) Lookup(name ustr.Ustr) (vfs.Inode_i, defs.Err_t) { return nil, -defs.ENOTDIR }
func (n *ProfNode_t) Create(name ustr.Ustr, perms uint) (vfs.Inode_i, defs.Err_t) {
	return nil, -defs.ENOTDIR
}
func (n *ProfNode_t) Mkdir(name ustr.Ustr, perms uint) (vfs.Inode_i, defs.Err_t) {
	return nil, -defs.ENOTDIR
}
func (n *ProfNode_t) Unlink(name ustr.Ustr) defs.Err_t { return -defs.ENOTDIR }
func (n *ProfNode_t) Rename(oldname ustr.Ustr, newdir vfs.Inode_i, newname ustr.Ustr) defs.Err_t {
	return -defs.EINVAL
}
func (n *ProfNode_t) Symlink(target, name ustr.Ustr) defs.Err_t { return -defs.EINVAL }
func (n *ProfNode_t) Readlink() (ustr.Ustr, defs.Err_t)         { return nil, -defs.EINVAL }
func (n *ProfNode_t) Chmod(perms uint) defs.Err_t               { return 0 }
func (n *ProfNode_t) Readdir() ([]vfs.Dirent_t, defs.Err_t)     { return nil, -defs.ENOTDIR }

func (n *ProfNode_t) Pread(buf []uint8, off int64) (int, defs.Err_t) {
	data, err := snapshot()
	if err != 0 {
		return 0, err
	}
	if off >= int64(len(data)) {
		return 0, 0
	}
	return copy(buf, data[off:]), 0
}

func (n *ProfNode_t) Pwrite(buf []uint8, off int64) (int, defs.Err_t) { return 0, -defs.EINVAL }

func (n *ProfNode_t) Size() int64 {
	data, err := snapshot()
	if err != 0 {
		return 0
	}
	return int64(len(data))
}

func (n *ProfNode_t) Truncate(sz int64) defs.Err_t { return -defs.EINVAL }

func (n *ProfNode_t) Stat(st *stat.Stat_t) defs.Err_t {
	st.Wmode(stat.IFREG | 0444)
	st.Wsize(uint(n.Size()))
	return 0
}

// snapshot gathers Registry's collectors and encodes them as a pprof
// profile, one sample per metric, labeled by metric name. Counters and
// gauges don't carry a call stack, so each sample gets a single synthetic
// location/function named after the metric rather than a real backtrace.
func snapshot() ([]byte, defs.Err_t) {
	mfs, err := Registry.Gather()
	if err != nil {
		return nil, -defs.EIO
	}
	prof := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "value", Unit: "count"}},
		PeriodType: &profile.ValueType{Type: "snapshot", Unit: "count"},
		Period:     1,
		TimeNanos:  time.Now().UnixNano(),
	}
	var id uint64
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			id++
			fn := &profile.Function{ID: id, Name: sampleName(mf.GetName(), m)}
			loc := &profile.Location{ID: id, Line: []profile.Line{{Function: fn}}}
			prof.Function = append(prof.Function, fn)
			prof.Location = append(prof.Location, loc)
			prof.Sample = append(prof.Sample, &profile.Sample{
				Location: []*profile.Location{loc},
				Value:    []int64{metricValue(m)},
				Label:    map[string][]string{"metric": {mf.GetName()}},
			})
		}
	}
	var buf bytes.Buffer
	if err := prof.Write(&buf); err != nil {
		return nil, -defs.EIO
	}
	return buf.Bytes(), 0
}

func sampleName(metric string, m *dto.Metric) string {
	for _, lp := range m.GetLabel() {
		return metric + "{" + lp.GetName() + "=" + lp.GetValue() + "}"
	}
	return metric
}

func metricValue(m *dto.Metric) int64 {
	if c := m.GetCounter(); c != nil {
		return int64(c.GetValue())
	}
	if g := m.GetGauge(); g != nil {
		return int64(g.GetValue())
	}
	return 0
}
