package kernel

import (
	"github.com/kernel-sim/sok/ifc"
	"github.com/kernel-sim/sok/internal/kdebug"
	"github.com/kernel-sim/sok/proc"
)

// resolvePending is step 4 of Entry (spec.md §4.7): poll every process
// blocked on a device and, if the device has become ready, complete its
// operation and move it back to Ready. The completion is read-class
// (deliver the read byte into A) or write-class (push the saved X and set
// A to 0), selected by dev % 4 per ifc.OffKeyboard/ifc.OffScreen — spec.md
// §9's open question on the mod-4 split. A device read/write error mid-
// resolve is kernel-internal (spec.md §7) — the one case where a single
// stuck process can take down the whole kernel, since the resolver has no
// way to single out which process's device misbehaved without aborting
// the pass.
func (k *Kernel) resolvePending(now int64) {
	for _, p := range k.Table.All() {
		if p.State != proc.Blocked {
			continue
		}
		dev, ok := p.Block.Device()
		if !ok {
			continue
		}

		switch dev % 4 {
		case ifc.OffKeyboard:
			val, ready, err := k.IO.Read(dev)
			if err != nil {
				k.flagInternal()
				return
			}
			if !ready {
				continue
			}
			p.Ctx.A = int32(val)
		case ifc.OffScreen:
			ready, err := k.IO.Write(dev, int(p.Ctx.X))
			if err != nil {
				k.flagInternal()
				return
			}
			if !ready {
				continue
			}
			p.Ctx.A = 0
		default:
			k.flagInternal()
			return
		}

		k.Rec.Transition(p, proc.Ready, now)
		k.Sched.Enqueue(p.PID)
		kdebug.PIDTracef(kdebug.IO, p.PID, "pending I/O on dev %d completed", dev)
	}
}
