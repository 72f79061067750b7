// oplog.go - bounded ring buffer of operation records for post-mortem
// diagnostics. Grounded on terminal_io.go's inputBuf/rawKeyBuf ring buffers
// (fixed array plus head/tail/len), adapted from byte storage to structs
// and from overwrite-on-full to drop-oldest-on-full.

package bufslot

import "fmt"

const opLogCapacity = 1024

// opRecord is one (slot_index, op, status_before, status_after) entry.
type opRecord struct {
	index  int
	op     Op
	before Status
	after  Status
}

// opLog is a capacity-1024 FIFO. When full, the oldest record is evicted to
// admit the newest. Allocated only when the DebugOps category is enabled at
// table construction (see Config).
type opLog struct {
	buf  [opLogCapacity]opRecord
	head int // index of oldest record
	len  int // number of valid records
}

func newOpLog() *opLog { return &opLog{} }

// append records one transition, evicting the oldest entry if full.
func (l *opLog) append(rec opRecord) {
	tail := (l.head + l.len) % opLogCapacity
	l.buf[tail] = rec
	if l.len < opLogCapacity {
		l.len++
	} else {
		l.head = (l.head + 1) % opLogCapacity
	}
}

// clear drops every record, called on successful reconfiguration commit.
func (l *opLog) clear() {
	l.head = 0
	l.len = 0
}

// Dump renders every record in order, oldest first, for assertion-failure
// diagnostic output.
func (l *opLog) Dump() string {
	var b []byte
	b = append(b, fmt.Sprintf("  op log: %d record(s)\n", l.len)...)
	for i := 0; i < l.len; i++ {
		r := l.buf[(l.head+i)%opLogCapacity]
		b = append(b, fmt.Sprintf("    [%d] slot=%d op=%s before=%s after=%s\n",
			i, r.index, r.op, r.before, r.after)...)
	}
	return string(b)
}
