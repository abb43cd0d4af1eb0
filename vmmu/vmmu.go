// Package vmmu is a reference MMU: per-process page tables are plain slices
// of frame numbers, and the "physical memory" backing translated reads and
// writes is one flat array shared by every frame. It stands in for the
// hardware MMU spec.md §6 declares out of scope.
package vmmu

import (
	"errors"

	"github.com/kernel-sim/sok/ifc"
)

// PageSize matches the spec's demand-paged granularity.
const PageSize = 256

// FramesTotal bounds the stub's backing store; vm.Allocator is the real
// owner of frame occupancy, this is just the storage array.
const FramesTotal = 1024

// ErrNoTranslation is returned by Read/Write in ModeSupervisor when the
// address has no mapping — used by syscalls.criaProc while copying the
// filename string, which must not itself trigger a page fault.
var ErrNoTranslation = errors.New("vmmu: no translation for address")

// Table is the reference ifc.PageTable: one frame number (or -1) per
// virtual page.
type Table struct {
	frames []int
}

// NewTable returns an empty table sized for npages virtual pages.
func NewTable(npages int) *Table {
	t := &Table{frames: make([]int, npages)}
	for i := range t.frames {
		t.frames[i] = -1
	}
	return t
}

func (t *Table) Frame(virtPage int) (int, bool) {
	if virtPage < 0 || virtPage >= len(t.frames) || t.frames[virtPage] < 0 {
		return 0, false
	}
	return t.frames[virtPage], true
}

func (t *Table) Map(virtPage, frame int) {
	if virtPage < 0 {
		return
	}
	for virtPage >= len(t.frames) {
		t.frames = append(t.frames, -1)
	}
	t.frames[virtPage] = frame
}

func (t *Table) Unmap(virtPage int) {
	if virtPage >= 0 && virtPage < len(t.frames) {
		t.frames[virtPage] = -1
	}
}

// Stub is the reference MMU. Frames physical[i*PageSize:(i+1)*PageSize] back
// frame i.
type Stub struct {
	physical [FramesTotal * PageSize]byte
	active   ifc.PageTable
}

// New returns a Stub with no page table installed.
func New() *Stub {
	return &Stub{}
}

func (m *Stub) SetPageTable(pt ifc.PageTable) {
	m.active = pt
}

func (m *Stub) Translate(pt ifc.PageTable, virtPage int) (int, bool) {
	if pt == nil {
		return 0, false
	}
	return pt.Frame(virtPage)
}

func (m *Stub) Read(virt uint32, mode ifc.AccessMode) (uint32, error) {
	frame, ok := m.translateActive(virt)
	if !ok {
		if mode == ifc.ModeSupervisor {
			return 0, ErrNoTranslation
		}
		return 0, ifc.ErrInternal // caller should have faulted first
	}
	off := frame*PageSize + int(virt)%PageSize
	return uint32(m.physical[off]), nil
}

func (m *Stub) Write(virt uint32, val uint32, mode ifc.AccessMode) error {
	frame, ok := m.translateActive(virt)
	if !ok {
		if mode == ifc.ModeSupervisor {
			return ErrNoTranslation
		}
		return ifc.ErrInternal
	}
	off := frame*PageSize + int(virt)%PageSize
	m.physical[off] = byte(val)
	return nil
}

func (m *Stub) translateActive(virt uint32) (int, bool) {
	if m.active == nil {
		return 0, false
	}
	return m.active.Frame(int(virt) / PageSize)
}

// LoadFrame copies data into physical frame number frame, used by
// vm.HandleFault after it picks a victim/free frame and reads the page's
// bytes out of swap.
func (m *Stub) LoadFrame(frame int, data []byte) {
	off := frame * PageSize
	n := copy(m.physical[off:off+PageSize], data)
	for i := off + n; i < off+PageSize; i++ {
		m.physical[i] = 0
	}
}

var _ ifc.MMU = (*Stub)(nil)
var _ ifc.PageTable = (*Table)(nil)
