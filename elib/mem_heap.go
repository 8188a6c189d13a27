package elib

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Cache lines on supported targets are 64 bytes.
const (
	Log2CacheLineBytes = 6
	CacheLineBytes     = 1 << Log2CacheLineBytes
)

func (x Word) RoundCacheLine() Word { return x.RoundPow2(CacheLineBytes) }
func RoundCacheLine(x Word) Word    { return x.RoundCacheLine() }

// ErrHeapFull means the backing arena cannot satisfy an allocation.
var ErrHeapFull = errors.New("memory heap full")

// Allocation heap of cache lines.
type MemHeap struct {
	// Protects heap get/put.
	mu sync.Mutex

	heap Heap

	once sync.Once

	// Virtual address lines returned via mmap of anonymous memory.
	data []byte
}

// Init initializes heap with n bytes of mmap'ed anonymous memory.
func (h *MemHeap) init(b []byte, n uint) {
	if len(b) == 0 {
		var err error
		b, err = unix.Mmap(-1, 0, int(n), unix.PROT_READ|unix.PROT_WRITE,
			unix.MAP_PRIVATE|unix.MAP_ANON|unix.MAP_NORESERVE)
		if err != nil {
			panic(fmt.Errorf("mmap: %s", err))
		}
	}
	n = uint(len(b)) &^ (CacheLineBytes - 1)
	h.data = b[:n]
	h.heap.SetMaxLen(n >> Log2CacheLineBytes)
}

func (h *MemHeap) Init(n uint) (err error) {
	h.once.Do(func() { h.init(h.data, n) })
	return
}

func (h *MemHeap) InitData(b []byte) { h.init(b, 0) }

func (h *MemHeap) GetAligned(n, log2Align uint) (b []byte, id Index, offset, cap uint, err error) {
	// Allocate memory in case caller has not called Init to select a size.
	if err = h.Init(64 << 20); err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if log2Align < Log2CacheLineBytes {
		log2Align = Log2CacheLineBytes
	}
	log2Align -= Log2CacheLineBytes

	cap = uint(Word(n).RoundCacheLine())
	id, i, ok := h.heap.GetAligned(cap>>Log2CacheLineBytes, log2Align)
	if !ok {
		err = fmt.Errorf("%w: %d bytes, %s", ErrHeapFull, n, h)
		return
	}
	offset = uint(i) << Log2CacheLineBytes
	b = h.data[offset : offset+cap]
	return
}

func (h *MemHeap) Get(n uint) (b []byte, id Index, offset, cap uint, err error) {
	return h.GetAligned(n, 0)
}

func (h *MemHeap) Put(id Index) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.heap.Put(id)
}

func (h *MemHeap) GetId(id Index) (b []byte) {
	offset, len := h.heap.GetID(id)
	return h.data[offset : offset+len]
}

func (h *MemHeap) Offset(b []byte) uint {
	return uint(uintptr(unsafe.Pointer(&b[0])) - uintptr(unsafe.Pointer(&h.data[0])))
}

func (h *MemHeap) Data(o uint) unsafe.Pointer { return unsafe.Pointer(&h.data[o]) }
func (h *MemHeap) OffsetValid(o uint) bool    { return o < uint(len(h.data)) }

func (h *MemHeap) String() string {
	max := h.heap.GetMaxLen()
	if max == 0 {
		return "empty"
	}
	u := h.heap.GetUsage()
	return fmt.Sprintf("used %s, free %s, capacity %s",
		MemorySize(u.Used<<Log2CacheLineBytes),
		MemorySize(u.Free<<Log2CacheLineBytes),
		MemorySize(max<<Log2CacheLineBytes))
}
