// Package bufpool provides a tiered buffer pool for the proxy's body
// buffering path.
//
// Every proxied request buffers its inbound body once and every
// upstream attempt buffers the response body, so the hot path would
// otherwise allocate per request and per attempt. The pool keeps
// reusable byte slices in three size tiers:
//   - Small buffers (default 4KB): control-plane messages, probe bodies
//   - Medium buffers (default 64KB): typical SBI payloads
//   - Large buffers (default 1MB): bulk payloads and notification bursts
//
// Buffers above the large tier are allocated directly and never pooled,
// so an occasional oversized payload cannot pin memory.
//
// All operations are safe for concurrent use via sync.Pool.
//
// Usage:
//
//	buf := bufpool.Get(size)
//	defer bufpool.Put(buf)
package bufpool

import (
	"bytes"
	"io"
	"sync"
)

// Default buffer size classes. Override with NewPool for custom tiers.
const (
	// DefaultSmallSize covers control messages (4KB)
	DefaultSmallSize = 4 << 10

	// DefaultMediumSize covers typical request/response bodies (64KB)
	DefaultMediumSize = 64 << 10

	// DefaultLargeSize covers bulk payloads (1MB)
	DefaultLargeSize = 1 << 20
)

// Pool manages byte slice pools organized by size class. Requests are
// served from the smallest tier that fits; oversized requests fall
// back to direct allocation.
type Pool struct {
	small      sync.Pool
	medium     sync.Pool
	large      sync.Pool
	smallSize  int
	mediumSize int
	largeSize  int
}

// Config holds tier sizes for a custom pool.
type Config struct {
	// SmallSize is the size of small buffers (default: 4KB)
	SmallSize int

	// MediumSize is the size of medium buffers (default: 64KB)
	MediumSize int

	// LargeSize is the size of large buffers (default: 1MB)
	LargeSize int
}

// NewPool creates a buffer pool. A nil config, or zero fields, take
// the package defaults.
func NewPool(cfg *Config) *Pool {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.SmallSize <= 0 {
		cfg.SmallSize = DefaultSmallSize
	}
	if cfg.MediumSize <= 0 {
		cfg.MediumSize = DefaultMediumSize
	}
	if cfg.LargeSize <= 0 {
		cfg.LargeSize = DefaultLargeSize
	}

	p := &Pool{
		smallSize:  cfg.SmallSize,
		mediumSize: cfg.MediumSize,
		largeSize:  cfg.LargeSize,
	}

	p.small.New = func() any {
		buf := make([]byte, p.smallSize)
		return &buf
	}
	p.medium.New = func() any {
		buf := make([]byte, p.mediumSize)
		return &buf
	}
	p.large.New = func() any {
		buf := make([]byte, p.largeSize)
		return &buf
	}

	return p
}

// Get returns a byte slice of at least the requested size, backed by a
// pooled buffer when the size fits a tier. The caller must Put the
// buffer back when finished; a buffer still in use must never be Put.
func (p *Pool) Get(size int) []byte {
	var bufPtr *[]byte

	switch {
	case size <= p.smallSize:
		bufPtr = p.small.Get().(*[]byte)
	case size <= p.mediumSize:
		bufPtr = p.medium.Get().(*[]byte)
	case size <= p.largeSize:
		bufPtr = p.large.Get().(*[]byte)
	default:
		// Oversized: allocate directly, never pooled.
		return make([]byte, size)
	}

	buf := *bufPtr
	return buf[:size]
}

// Put returns a buffer obtained from Get to its tier. Oversized and
// foreign buffers are dropped for the GC. Safe for concurrent use.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}

	full := buf[:cap(buf)]
	switch cap(buf) {
	case p.smallSize:
		p.small.Put(&full)
	case p.mediumSize:
		p.medium.Put(&full)
	case p.largeSize:
		p.large.Put(&full)
	}
}

// ReadAll reads r to EOF through a pooled scratch buffer and returns
// an exact-size result.
//
// The scratch chunk is what the pool reuses; the returned slice is a
// fresh allocation owned by the caller, so buffered bodies that are
// replayed across retry attempts or relayed downstream never alias
// pool memory. sizeHint (a Content-Length, -1 when unknown) presizes
// the result to avoid growth copies.
func (p *Pool) ReadAll(r io.Reader, sizeHint int64) ([]byte, error) {
	chunk := p.Get(p.mediumSize)
	defer p.Put(chunk)

	var buf bytes.Buffer
	if sizeHint > 0 {
		// The hint comes off the wire; presize at most one large tier.
		if sizeHint > int64(p.largeSize) {
			sizeHint = int64(p.largeSize)
		}
		buf.Grow(int(sizeHint))
	}
	// The wrappers hide ReadFrom/WriteTo so the copy goes through chunk.
	if _, err := io.CopyBuffer(struct{ io.Writer }{&buf}, struct{ io.Reader }{r}, chunk); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// globalPool is the package-level pool with default tiers.
var globalPool = NewPool(nil)

// Get returns a byte slice of at least the requested size from the
// global pool.
func Get(size int) []byte {
	return globalPool.Get(size)
}

// Put returns a buffer to the global pool.
func Put(buf []byte) {
	globalPool.Put(buf)
}

// ReadAll reads r to EOF through the global pool's scratch tier.
func ReadAll(r io.Reader, sizeHint int64) ([]byte, error) {
	return globalPool.ReadAll(r, sizeHint)
}
