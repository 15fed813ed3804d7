package engine

import (
	"log"
	"sync"

	"github.com/elliotchance/orderedmap"
)

// Heap allocates result buffers for engines implemented in Go and keeps
// count of what is still outstanding, so that callers can check every
// allocation is released exactly once.
type Heap struct {
	mu sync.Mutex

	nextID    uint64
	allocs    int
	frees     int
	liveBytes uint64

	// buffer id -> *heapBuffer, in allocation order
	live *orderedmap.OrderedMap
}

type heapBuffer struct {
	id   uint64
	heap *Heap
	data []byte
}

func (b *heapBuffer) Len() uint64 {
	return uint64(len(b.data))
}

func (b *heapBuffer) Bytes() []byte {
	return b.data
}

func NewHeap() *Heap {
	return &Heap{live: orderedmap.NewOrderedMap()}
}

// Alloc takes ownership of data and returns it as an engine buffer.
func (h *Heap) Alloc(data []byte) Buffer {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	buf := &heapBuffer{id: h.nextID, heap: h, data: data}
	h.live.Set(buf.id, buf)
	h.allocs++
	h.liveBytes += uint64(len(data))
	return buf
}

// Free releases a buffer returned by Alloc. Releasing a buffer twice, or one
// that this heap did not allocate, is fatal.
func (h *Heap) Free(b Buffer) {
	buf, ok := b.(*heapBuffer)
	if !ok || buf.heap != h {
		log.Panicf("engine: free of foreign buffer %T", b)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.live.Get(buf.id); !ok {
		log.Panicf("engine: double free of buffer %d", buf.id)
	}
	h.live.Delete(buf.id)
	h.frees++
	h.liveBytes -= uint64(len(buf.data))
	buf.data = nil
}

func (h *Heap) Allocs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.allocs
}

func (h *Heap) Frees() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frees
}

// Live is the number of buffers allocated but not yet freed.
func (h *Heap) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.live.Len()
}

func (h *Heap) LiveBytes() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.liveBytes
}

// Outstanding returns the ids of unreleased buffers, oldest first.
func (h *Heap) Outstanding() []uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]uint64, 0, h.live.Len())
	for e := h.live.Front(); e != nil; e = e.Next() {
		ids = append(ids, e.Key.(uint64))
	}
	return ids
}
