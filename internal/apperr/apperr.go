// Package apperr classifies pipeline failures into the taxonomy spec'd
// for error handling: transient RPC, persistent decoder, timestamp
// fatal, SQL transient, SQL fatal, and invalid configuration. Callers
// use errors.Is / errors.As to decide retry-vs-abandon without string
// matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the six error taxa from the error-handling design.
type Kind int

const (
	// KindTransientRPC covers network/5xx/timeout failures against the
	// chain RPC endpoint. Retried locally with backoff; on exhaustion
	// the caller treats the range as zero-logs and moves on.
	KindTransientRPC Kind = iota
	// KindPersistentDecoder covers a single log failing to decode. The
	// log is skipped; the rest of the chunk continues.
	KindPersistentDecoder
	// KindTimestampFatal covers fewer than two resolvable timestamp
	// anchors for a log batch. The whole chunk is abandoned.
	KindTimestampFatal
	// KindSQLTransient covers connection resets / deadlocks. Retried a
	// bounded number of times by the caller.
	KindSQLTransient
	// KindSQLFatal covers schema mismatches and invalid identifiers.
	// Never retried.
	KindSQLFatal
	// KindInvalidConfig covers a base symbol absent from the pool or an
	// unsupported chain/dex. The pipeline for that pool refuses to
	// start.
	KindInvalidConfig
)

func (k Kind) String() string {
	switch k {
	case KindTransientRPC:
		return "transient_rpc"
	case KindPersistentDecoder:
		return "persistent_decoder"
	case KindTimestampFatal:
		return "timestamp_fatal"
	case KindSQLTransient:
		return "sql_transient"
	case KindSQLFatal:
		return "sql_fatal"
	case KindInvalidConfig:
		return "invalid_config"
	default:
		return "unknown"
	}
}

// Error is a classified pipeline error: a Kind plus the wrapped cause.
type Error struct {
	Kind Kind
	Op   string // the operation that failed, e.g. "chainclient.GetLogs"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, apperr.TransientRPC) etc. work by comparing
// Kind, regardless of Op/wrapped cause.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func newKind(kind Kind) *Error { return &Error{Kind: kind} }

// Sentinel values usable with errors.Is(err, apperr.TransientRPC).
var (
	TransientRPC      = newKind(KindTransientRPC)
	PersistentDecoder = newKind(KindPersistentDecoder)
	TimestampFatal    = newKind(KindTimestampFatal)
	SQLTransient      = newKind(KindSQLTransient)
	SQLFatal          = newKind(KindSQLFatal)
	InvalidConfig     = newKind(KindInvalidConfig)
)

// Wrap classifies err under kind for operation op.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Of reports whether err (or something it wraps) was classified as kind.
func Of(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
