package record

import "fmt"

// BackupSet is a transient collection of records accepted as valid backups
// of one subject, de-duplicated by the (path, size, checksum) triple.
type BackupSet struct {
	files []*File
	seen  map[string]struct{}
}

// NewBackupSet creates an empty BackupSet.
func NewBackupSet() *BackupSet {
	return &BackupSet{seen: make(map[string]struct{})}
}

// Add inserts f unless an identical (path, size, checksum) entry is already
// present. It reports whether the set grew.
func (s *BackupSet) Add(f *File) bool {
	size, _ := f.Size()
	cs, _ := f.Checksum()
	id := fmt.Sprintf("%s|%d|%s", f.Key(), size, cs)
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	s.files = append(s.files, f)
	return true
}

// Files returns the accepted backups in insertion order.
func (s *BackupSet) Files() []*File { return s.files }

// Len returns the number of distinct backups.
func (s *BackupSet) Len() int { return len(s.files) }

// Empty reports whether no backup was accepted.
func (s *BackupSet) Empty() bool { return len(s.files) == 0 }
