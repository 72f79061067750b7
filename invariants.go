// invariants.go - fatal invariant violations. Grounded on machine_bus.go's
// panic(fmt.Sprintf(...)) convention (MapIO/MapIO64 guards) rather than a
// bare panic(string): every fatal path here carries a formatted dump so a
// caller running under a recover()-based test harness still gets the full
// picture. Table.dumpLocked appends the op log and per-slot breakdown,
// mirroring debug_monitor.go's per-component status formatting and
// debug_snapshot.go's state-capture idiom.

package bufslot

import "fmt"

// fatalf panics with a message prefixed by the table's diagnostic dump.
// Called only while t.mu is held; the dump must be built before panicking
// since nothing downstream can be trusted to unwind cleanly.
func (t *Table) fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	panic(fmt.Sprintf("bufslot: FATAL: %s\n%s", msg, t.dumpLocked()))
}

// dumpLocked renders every slot's status plus the op log, in order. Must be
// called with t.mu held.
func (t *Table) dumpLocked() string {
	var b []byte
	b = append(b, fmt.Sprintf("slot table: count=%d size=%d output_index=%d info_changed=%v\n",
		len(t.slots), t.size.Load(), t.outputIndex.Load(), t.infoChanged)...)
	for i, e := range t.slots {
		b = append(b, fmt.Sprintf("  slot[%d] status=%s\n", i, e.status)...)
	}
	if t.log != nil {
		b = append(b, t.log.Dump()...)
	} else {
		b = append(b, "  op log: disabled\n"...)
	}
	return string(b)
}
