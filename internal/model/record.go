// Package model holds the small set of plain data types shared across
// the journal, memtable, and LSM engine packages, so all three agree
// on exactly one Record shape.
package model

// Record is the unit the engine stores: a row/col keyed, timestamped
// value with tombstone support. The journal always carries Row/Col
// populated; the MemTable strips them as a space optimization
// (they're recoverable from the journal frame) and callers of the
// engine always see them populated again.
type Record struct {
	Row       string
	Col       string
	Timestamp uint64
	Data      []byte
	Deleted   bool
}
