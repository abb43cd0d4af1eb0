package vm

import "errors"

// ErrSwapFull is returned when a program image doesn't fit in the
// remaining swap area (spec.md §3: "swap area...allocation is append-only").
var ErrSwapFull = errors.New("vm: swap area exhausted")

// Swap is the append-only simulated disk region holding a byte-exact copy
// of each loaded program's image, sized for the total program corpus
// (spec.md §3).
type Swap struct {
	data []byte
	next int
}

// NewSwap allocates a swap area of the given size in bytes.
func NewSwap(size int) *Swap {
	return &Swap{data: make([]byte, size)}
}

// Allocate reserves a contiguous region of length bytes and returns its
// base offset, copying image into it. Allocation never reuses space
// freed by process termination — process images are read-only and the
// total corpus is assumed to fit (spec.md §1's non-goals exclude
// swap-out of dirty pages; this mirrors the same "never reclaim" model
// for the allocation side).
func (s *Swap) Allocate(image []byte) (base int, err error) {
	if s.next+len(image) > len(s.data) {
		return 0, ErrSwapFull
	}
	base = s.next
	copy(s.data[base:], image)
	s.next += len(image)
	return base, nil
}

// ReadPage copies pageSize bytes starting at (diskBase + page*pageSize)
// into dst, zero-filling any tail that runs past the end of the swap area.
// Swap does not record image lengths, so bytes past the end of the
// process's own image but still inside the swap area are copied as they
// are (the next image's bytes, or zeros where nothing was allocated).
func (s *Swap) ReadPage(diskBase, page, pageSize int, dst []byte) {
	off := diskBase + page*pageSize
	for i := 0; i < pageSize; i++ {
		if off+i < len(s.data) {
			dst[i] = s.data[off+i]
		} else {
			dst[i] = 0
		}
	}
}
