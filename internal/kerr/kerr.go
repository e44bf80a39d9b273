// Package kerr defines the sentinel error taxonomy shared by every
// component in this module. Leaf packages wrap one of these sentinels
// with errors.Wrapf so callers can classify failures with errors.Is
// without depending on leaf-package-specific error types.
package kerr

import "github.com/cockroachdb/errors"

var (
	// NotFound indicates a missing row/col/blob/path.
	NotFound = errors.New("kerr: not found")
	// InvalidInput indicates a malformed request: empty required
	// fields, a malformed basis, a non-UTF-8 path.
	InvalidInput = errors.New("kerr: invalid input")
	// InvalidData indicates corrupt on-disk state: a bad SortedFile
	// footer, a bad journal frame, a bad depth prefix.
	InvalidData = errors.New("kerr: invalid data")
	// ConflictState indicates an operation rejected due to object
	// state: submit on a non-Pending change, a snapshot timestamp
	// mismatch, a concurrent reservation collision.
	ConflictState = errors.New("kerr: conflict state")
	// IrreconcilableStateChange indicates a three-way merge between
	// incompatible diff kinds (e.g. Added vs Modified).
	IrreconcilableStateChange = errors.New("kerr: irreconcilable state change")
	// ResourceExhausted indicates a memory limit exceeded without a
	// successful spill.
	ResourceExhausted = errors.New("kerr: resource exhausted")
	// Transient indicates a retryable failure: RPC timeout, disk I/O
	// hiccup.
	Transient = errors.New("kerr: transient")
	// Internal indicates an invariant violation. Logged, fatal to the
	// operation.
	Internal = errors.New("kerr: internal")
)

// OutOfOrder classifies a key written that is strictly less than the
// previously written key. The SortedFile Builder does not return it; it
// returns its own sortedfile.ErrOutOfOrder.
var OutOfOrder = errors.New("kerr: keys must be written in order")
