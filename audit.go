package scrubgo

import (
	"time"

	"github.com/hupe1980/scrubgo/record"
)

// AuditOp identifies the decision an audit event records.
type AuditOp string

const (
	// OpChecksum - a checksum was computed and persisted.
	OpChecksum AuditOp = "CHECKSUM"
	// OpExchange - a checksum was adopted from an existing store entry.
	OpExchange AuditOp = "EXCHANGE"
	// OpClassified - a subject/other pair was classified.
	OpClassified AuditOp = "CLASSIFIED"
	// OpInvalidCopy - a suspect copy was discovered.
	OpInvalidCopy AuditOp = "INVALID_COPY"
	// OpRegistered - a record was added to the store.
	OpRegistered AuditOp = "REGISTERED"
	// OpDeleted - the subject was unlinked after all safety checks passed.
	OpDeleted AuditOp = "DELETED"
	// OpKept - the subject was kept; Note carries the reason.
	OpKept AuditOp = "KEPT"
)

// AuditEvent is one classification or delete/skip decision.
type AuditEvent struct {
	Time    time.Time
	Op      AuditOp
	Subject string
	Other   string
	Match   record.MatchKind
	Note    string
	Bytes   int64
}

// AuditSink receives every classification and delete/skip decision.
// Implementations must be safe for concurrent use.
type AuditSink interface {
	Record(event AuditEvent)
}

// AuditFunc adapts a function to an AuditSink.
type AuditFunc func(event AuditEvent)

// Record calls f.
func (f AuditFunc) Record(event AuditEvent) { f(event) }

// NoopAudit discards all events.
func NoopAudit() AuditSink {
	return AuditFunc(func(AuditEvent) {})
}

type auditRecorder struct {
	sink AuditSink
}

func (a auditRecorder) record(op AuditOp, subject, other string, match record.MatchKind, note string, bytes int64) {
	a.sink.Record(AuditEvent{
		Time:    time.Now(),
		Op:      op,
		Subject: subject,
		Other:   other,
		Match:   match,
		Note:    note,
		Bytes:   bytes,
	})
}
