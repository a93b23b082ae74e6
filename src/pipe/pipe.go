// Package pipe implements the in-kernel pipe: two fs_node-shaped
// endpoints sharing one 512-byte ring buffer with blocking read/write.
// Grounded in circbuf.Circbuf_t for the ring itself and in fdops.Fdops_i/
// Userio_i for the read/write surface every fd-table entry expects;
// there is no teacher pipe.go in this pack (biscuit's pipe lived in the
// untruncated fs package), so the blocking/wakeup design below follows
// §4.9 directly, written in the teacher's sync.Cond-free style (plain
// channels for wakeup, matching oommsg's channel-based notification).
package pipe

import (
	"sync"

	"circbuf"
	"defs"
	"fdops"
	"stat"
)

const pipesz = 512

// Pipe_t is the shared pipe object. Only the read side has a mode:
// buffered reads return at the first buffered newline, unbuffered reads
// return whatever is buffered. The write side has no mode; Write always
// blocks until all of its source is written or the reader goes away.
type Pipe_t struct {
	mu           sync.Mutex
	buf          circbuf.Circbuf_t
	readRefs     int
	writeRefs    int
	readClosed   bool
	writeClosed  bool
	readBuffered bool
	wakeReaders  chan struct{}
	wakeWriters  chan struct{}
}

// MkPipe allocates a fresh pipe with one reader and one writer reference
// (the two fd slots the pipe syscall installs).
func MkPipe(readBuffered bool) *Pipe_t {
	p := &Pipe_t{readRefs: 1, writeRefs: 1, readBuffered: readBuffered}
	p.buf.Init(pipesz)
	p.wakeReaders = make(chan struct{}, 1)
	p.wakeWriters = make(chan struct{}, 1)
	return p
}

func wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// ReadEnd/WriteEnd are the two fdops.Fdops_i-ish handles installed into
// separate fd-table slots; each tracks its own open/close so refcounts
// drop independently.
type ReadEnd struct{ p *Pipe_t }
type WriteEnd struct{ p *Pipe_t }

func (p *Pipe_t) NewReadEnd() *ReadEnd   { return &ReadEnd{p} }
func (p *Pipe_t) NewWriteEnd() *WriteEnd { return &WriteEnd{p} }

// Read blocks while the ring is empty and the writer side is still open;
// once the writer closes, further reads return 0 (EOF). In buffered mode
// it stops at the first newline found in the currently buffered data.
func (r *ReadEnd) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	p := r.p
	for {
		p.mu.Lock()
		if !p.buf.Empty() {
			max := 0
			if p.readBuffered {
				if idx := p.buf.IndexByte('\n'); idx >= 0 {
					max = idx + 1
				}
			}
			n, _ := p.buf.Copyout(dst, max)
			wake(p.wakeWriters)
			p.mu.Unlock()
			return n, 0
		}
		if p.writeClosed {
			p.mu.Unlock()
			return 0, 0
		}
		p.mu.Unlock()
		<-p.wakeReaders
	}
}

// Write blocks while the ring is full and the reader side is still open.
// If the reader side has gone away, Write returns the bytes already
// written with no error, or -EPIPE when it wrote nothing. The syscall
// layer raises SIGPIPE only on -EPIPE, so a write cut short after some
// progress raises no signal.
func (w *WriteEnd) Write(src fdops.Userio_i) (int, defs.Err_t) {
	p := w.p
	total := 0
	for {
		p.mu.Lock()
		if p.readClosed {
			p.mu.Unlock()
			if total > 0 {
				return total, 0
			}
			return 0, -defs.EPIPE
		}
		if !p.buf.Full() {
			n, _ := p.buf.Copyin(src)
			total += n
			wake(p.wakeReaders)
			done := src.Remain() == 0
			p.mu.Unlock()
			if done {
				return total, 0
			}
			continue
		}
		p.mu.Unlock()
		<-p.wakeWriters
	}
}

// Close on the read end drops one reader reference; at zero it marks the pipe
// read-closed and wakes blocked writers so they observe EPIPE.
func (r *ReadEnd) Close() defs.Err_t {
	p := r.p
	p.mu.Lock()
	p.readRefs--
	if p.readRefs == 0 {
		p.readClosed = true
		wake(p.wakeWriters)
	}
	p.mu.Unlock()
	return 0
}

// Close on the write end drops one writer reference; at zero it marks the pipe
// write-closed and wakes blocked readers so they observe EOF.
func (w *WriteEnd) Close() defs.Err_t {
	p := w.p
	p.mu.Lock()
	p.writeRefs--
	if p.writeRefs == 0 {
		p.writeClosed = true
		wake(p.wakeReaders)
	}
	p.mu.Unlock()
	return 0
}

func (r *ReadEnd) Reopen() defs.Err_t {
	r.p.mu.Lock()
	r.p.readRefs++
	r.p.mu.Unlock()
	return 0
}

func (w *WriteEnd) Reopen() defs.Err_t {
	w.p.mu.Lock()
	w.p.writeRefs++
	w.p.mu.Unlock()
	return 0
}

func (r *ReadEnd) Lseek(off, whence int) (int, defs.Err_t)  { return 0, -defs.ESPIPE }
func (w *WriteEnd) Lseek(off, whence int) (int, defs.Err_t) { return 0, -defs.ESPIPE }

func (r *ReadEnd) Write(fdops.Userio_i) (int, defs.Err_t) { return 0, -defs.EINVAL }
func (w *WriteEnd) Read(fdops.Userio_i) (int, defs.Err_t) { return 0, -defs.EINVAL }

func (r *ReadEnd) Fstat(st *stat.Stat_t) defs.Err_t {
	st.Wmode(stat.IFIFO | 0600)
	return 0
}
func (w *WriteEnd) Fstat(st *stat.Stat_t) defs.Err_t {
	st.Wmode(stat.IFIFO | 0600)
	return 0
}

func (r *ReadEnd) Pollone(pm fdops.Pollmsg_t) (fdops.Ready_t, defs.Err_t) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()
	var rdy fdops.Ready_t
	if !r.p.buf.Empty() || r.p.writeClosed {
		rdy |= fdops.R_READ
	}
	return rdy & pm.Events, 0
}

func (w *WriteEnd) Pollone(pm fdops.Pollmsg_t) (fdops.Ready_t, defs.Err_t) {
	w.p.mu.Lock()
	defer w.p.mu.Unlock()
	var rdy fdops.Ready_t
	if !w.p.buf.Full() || w.p.readClosed {
		rdy |= fdops.R_WRITE
	}
	return rdy & pm.Events, 0
}
