// Package vm is the demand-paged virtual memory subsystem: the physical
// frame allocator (spec.md §3/§4.9), the swap area, and the page-fault
// handler that ties them together.
package vm

// FrameEntry describes one physical frame's occupancy.
type FrameEntry struct {
	Occupied   bool
	OwnerPID   int
	OwnerVPage int
	LoadCycle  int64
	LastAccess int64
}

// Allocator tracks physical frame occupancy. The first Reserved frames are
// permanently occupied by the kernel image (spec.md §3) and are never
// returned by FreeFrame or chosen by Evict.
type Allocator struct {
	frames   []FrameEntry
	Reserved int
}

// NewAllocator builds an Allocator with total frames, the first reserved of
// which are marked permanently occupied.
func NewAllocator(total, reserved int) *Allocator {
	a := &Allocator{frames: make([]FrameEntry, total), Reserved: reserved}
	for i := 0; i < reserved && i < total; i++ {
		a.frames[i] = FrameEntry{Occupied: true, OwnerPID: -1, OwnerVPage: -1}
	}
	return a
}

// NumFrames reports the total frame count.
func (a *Allocator) NumFrames() int {
	return len(a.frames)
}

// Entry returns a copy of frame's occupancy record.
func (a *Allocator) Entry(frame int) FrameEntry {
	return a.frames[frame]
}

// FreeFrame scans for the first unoccupied non-reserved frame (invariant
// 4: reserved frames are never allocated to a user process).
func (a *Allocator) FreeFrame() (frame int, ok bool) {
	for i := a.Reserved; i < len(a.frames); i++ {
		if !a.frames[i].Occupied {
			return i, true
		}
	}
	return 0, false
}

// Evict picks the least-recently-used non-reserved occupied frame, where
// "used" means last faulted in, not last referenced: the kernel is never
// entered on a successful translation, only on a fault, so LoadCycle/
// LastAccess (set together by Occupy) is the only recency signal the
// kernel ever observes. Eviction therefore approximates LRU by load order
// rather than true per-access LRU. Callers must invalidate the victim's
// owner's page-table entry themselves (swap holds the canonical copy;
// dirty pages are never written back, per spec.md §1's non-goals).
func (a *Allocator) Evict() (frame int, ok bool) {
	best := -1
	var bestAccess int64
	for i := a.Reserved; i < len(a.frames); i++ {
		if !a.frames[i].Occupied {
			continue
		}
		if best == -1 || a.frames[i].LastAccess < bestAccess {
			best = i
			bestAccess = a.frames[i].LastAccess
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

// Occupy marks frame as owned by (pid, vpage) as of now.
func (a *Allocator) Occupy(frame, pid, vpage int, now int64) {
	a.frames[frame] = FrameEntry{
		Occupied:   true,
		OwnerPID:   pid,
		OwnerVPage: vpage,
		LoadCycle:  now,
		LastAccess: now,
	}
}

// Invalidate clears frame's occupancy without touching reserved frames.
func (a *Allocator) Invalidate(frame int) {
	if frame < a.Reserved {
		return
	}
	a.frames[frame] = FrameEntry{}
}

// FreeOwnedBy invalidates every frame owned by pid, returning their
// indices. Called when a process is reaped.
func (a *Allocator) FreeOwnedBy(pid int) []int {
	var freed []int
	for i := a.Reserved; i < len(a.frames); i++ {
		if a.frames[i].Occupied && a.frames[i].OwnerPID == pid {
			a.Invalidate(i)
			freed = append(freed, i)
		}
	}
	return freed
}
