package scrubgo

import (
	"time"

	"github.com/hupe1980/scrubgo/checksum"
	"github.com/hupe1980/scrubgo/internal/fsx"
)

// InvalidBackupMode selects what discovering suspect copies does to deletion.
type InvalidBackupMode int

const (
	// BlockDeletion withholds deletion while any suspect copy exists. This
	// is the fail-safe default: the subject is irreplaceable instrument
	// data.
	BlockDeletion InvalidBackupMode = iota

	// WarnOnly logs suspect copies and proceeds with the remaining safety
	// checks.
	WarnOnly
)

type options struct {
	logger         *Logger
	engine         *checksum.Engine
	locator        SessionLocator
	policy         DeletionPolicy
	audit          AuditSink
	invalidBackups InvalidBackupMode
	probeTimeout   time.Duration
	fs             fsx.FileSystem
}

// Option configures a Resolver.
type Option func(*options)

// WithLogger sets the logger. Defaults to a text logger on stderr.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEngine sets the checksum engine. Defaults to checksum.New().
func WithEngine(engine *checksum.Engine) Option {
	return func(o *options) {
		if engine != nil {
			o.engine = engine
		}
	}
}

// WithLocator sets the session locator supplying default backup roots.
// Without one, only caller-supplied roots are probed.
func WithLocator(locator SessionLocator) Option {
	return func(o *options) {
		o.locator = locator
	}
}

// WithPolicy sets the deletion veto policy.
func WithPolicy(policy DeletionPolicy) Option {
	return func(o *options) {
		o.policy = policy
	}
}

// WithAudit sets the audit sink. Defaults to a sink that logs every event.
func WithAudit(sink AuditSink) Option {
	return func(o *options) {
		if sink != nil {
			o.audit = sink
		}
	}
}

// WithInvalidBackupMode selects whether suspect copies block deletion.
func WithInvalidBackupMode(mode InvalidBackupMode) Option {
	return func(o *options) {
		o.invalidBackups = mode
	}
}

// WithProbeTimeout bounds each existence probe against a backup root, so one
// unreachable network share cannot stall the pool. Defaults to 5s.
func WithProbeTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.probeTimeout = d
		}
	}
}

// WithFileSystem swaps the filesystem implementation, for tests.
func WithFileSystem(fs fsx.FileSystem) Option {
	return func(o *options) {
		if fs != nil {
			o.fs = fs
		}
	}
}
