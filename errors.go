package scrubgo

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAmbiguousBackup is returned when store entries that should describe one
// file disagree on its checksum. Deletion is withheld until the conflict is
// resolved out of band.
var ErrAmbiguousBackup = errors.New("ambiguous backup")

// AmbiguousBackupError reports which path the store disagrees about.
//
// Use errors.Is with [ErrAmbiguousBackup] to detect it.
type AmbiguousBackupError struct {
	Path      string
	Checksums []string
}

func (e *AmbiguousBackupError) Error() string {
	return fmt.Sprintf("ambiguous backup: store entries for %s disagree on checksum (%s)",
		e.Path, strings.Join(e.Checksums, ", "))
}

func (e *AmbiguousBackupError) Unwrap() error { return ErrAmbiguousBackup }
