// Package recordservice is the record service: a stateless RPC-style
// wrapper around the engine that assigns write timestamps, translates
// internal errors into a {Failed, ErrorMessage} result shape, and
// exposes shard hints and compaction policy updates.
package recordservice

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/colin353/corestore/engine"
	"github.com/colin353/corestore/internal/kerr"
	"github.com/colin353/corestore/internal/log"
	"github.com/colin353/corestore/internal/model"
)

// Clock supplies write timestamps when a caller passes zero.
type Clock interface {
	NowMicros() uint64
}

// Service wraps an *engine.Engine with the record-service RPC surface.
// It holds no state of its own beyond the engine handle and a clock, so
// it is safe to share across concurrent RPC handlers.
type Service struct {
	engine *engine.Engine
	clock  Clock
}

func New(e *engine.Engine, clock Clock) *Service {
	return &Service{engine: e, clock: clock}
}

// Result is the uniform {failed, error_message} response shape; every
// RPC method below returns one instead of a bare Go error so a
// transport layer can serialize it directly.
type Result struct {
	Failed       bool
	ErrorMessage string
}

func ok() Result { return Result{} }

// failure classifies err via statusFor before turning it into the
// wire Result. Anything that doesn't match a known kerr sentinel is
// logged here, since InternalError is the one status a caller can't
// act on without operator help.
func failure(err error) Result {
	if statusFor(err) == "InternalError" {
		log.Errorf("recordservice: internal error: %+v", err)
	}
	return Result{Failed: true, ErrorMessage: err.Error()}
}

// statusFor classifies err so a transport layer can map it to an RPC
// status code; InternalError covers anything unrecognized (decode
// errors, invariant violations).
func statusFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, kerr.NotFound):
		return "NotFound"
	case errors.Is(err, kerr.InvalidInput):
		return "InvalidInput"
	case errors.Is(err, kerr.InvalidData):
		return "InvalidData"
	case errors.Is(err, kerr.ConflictState):
		return "ConflictState"
	case errors.Is(err, kerr.ResourceExhausted):
		return "ResourceExhausted"
	case errors.Is(err, kerr.Transient):
		return "Transient"
	default:
		return "InternalError"
	}
}

// Read implements read(row, col, ts).
func (s *Service) Read(ctx context.Context, row, col string, ts uint64) (model.Record, bool, Result) {
	rec, found, err := s.engine.Read(row, col, ts)
	if err != nil {
		return model.Record{}, false, failure(err)
	}
	return rec, found, ok()
}

// ReadRange implements read_range(row, col_spec, min_col, max_col, limit, ts).
func (s *Service) ReadRange(ctx context.Context, row, colSpec, minCol, maxCol string, limit int, ts uint64) ([]model.Record, Result) {
	recs, err := s.engine.ReadRange(row, colSpec, minCol, maxCol, limit, ts)
	if err != nil {
		return nil, failure(err)
	}
	return recs, ok()
}

// Write implements write(row, col, data, ts): ts=0 means "assign the
// current clock reading".
func (s *Service) Write(ctx context.Context, row, col string, data []byte, ts uint64) (uint64, Result) {
	if ts == 0 {
		ts = s.clock.NowMicros()
	}
	if err := s.engine.Write(row, col, model.Record{Timestamp: ts, Data: data}); err != nil {
		return 0, failure(err)
	}
	return ts, ok()
}

// Delete implements delete(row, col, ts) as write(deleted=true).
// Idempotent by construction: writing the same tombstone twice is the
// same engine call twice, and last-writer-wins makes repeats a no-op.
func (s *Service) Delete(ctx context.Context, row, col string, ts uint64) (uint64, Result) {
	if ts == 0 {
		ts = s.clock.NowMicros()
	}
	if err := s.engine.Write(row, col, model.Record{Timestamp: ts, Deleted: true}); err != nil {
		return 0, failure(err)
	}
	return ts, ok()
}

// WriteOp is one put/delete within a BatchWrite call.
type WriteOp struct {
	Row, Col string
	Data     []byte
	Deleted  bool
}

// BatchWrite implements batch_write: every op in ops shares a single
// clock sample, deletes and puts alike.
func (s *Service) BatchWrite(ctx context.Context, ops []WriteOp) (uint64, Result) {
	ts := s.clock.NowMicros()
	for _, op := range ops {
		if err := s.engine.Write(op.Row, op.Col, model.Record{Timestamp: ts, Data: op.Data, Deleted: op.Deleted}); err != nil {
			return 0, failure(err)
		}
	}
	return ts, ok()
}

// ReserveID implements reserve_id(row, col).
func (s *Service) ReserveID(ctx context.Context, row, col string) (uint64, Result) {
	id, err := s.engine.ReserveID(row, col)
	if err != nil {
		return 0, failure(err)
	}
	return id, ok()
}

// ShardHint implements shard_hint(row, col_spec, min_col, max_col):
// the union of every SortedFile's index-derived hints inside the
// window, used by callers planning parallel reads.
func (s *Service) ShardHint(ctx context.Context, row, colSpec, minCol, maxCol string) ([]string, Result) {
	hints, err := s.engine.ShardHints(row, colSpec, minCol, maxCol)
	if err != nil {
		return nil, failure(err)
	}
	return hints, ok()
}

// SetCompactionPolicy implements set_compaction_policy and immediately
// triggers a synchronous compaction under the new policy set.
func (s *Service) SetCompactionPolicy(ctx context.Context, policies []engine.CompactionPolicy) Result {
	if err := s.engine.Compact(policies); err != nil {
		return failure(err)
	}
	return ok()
}
