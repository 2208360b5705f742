package record

import (
	"regexp"
	"strings"
	"time"
)

// sessionPattern identifies a recording session embedded anywhere in a path:
// up to 10-digit session id, up to 6-digit subject id, up to 8-digit date,
// joined by underscores. Partial matches are permitted because legacy rigs
// wrote truncated ids.
var sessionPattern = regexp.MustCompile(`[0-9]{1,10}_[0-9]{1,6}_[0-9]{1,8}`)

// SessionKey identifies a single recording run.
type SessionKey struct {
	ID      string
	Subject string
	Date    string // YYYYMMDD
}

// ParseSessionKey extracts the first session key from path. The second
// result reports whether the path also contains a different, conflicting
// session string - a non-fatal inconsistency the caller should log.
func ParseSessionKey(path string) (SessionKey, bool, error) {
	matches := sessionPattern.FindAllString(path, -1)
	if len(matches) == 0 {
		return SessionKey{}, false, ErrNoSessionKey
	}

	conflict := false
	for _, m := range matches[1:] {
		if m != matches[0] {
			conflict = true
			break
		}
	}

	parts := strings.SplitN(matches[0], "_", 3)
	return SessionKey{ID: parts[0], Subject: parts[1], Date: parts[2]}, conflict, nil
}

// String returns the session folder form, id_subject_date.
func (k SessionKey) String() string {
	return k.ID + "_" + k.Subject + "_" + k.Date
}

// IsZero reports whether the key is empty.
func (k SessionKey) IsZero() bool {
	return k.ID == "" && k.Subject == "" && k.Date == ""
}

// Time parses the date component. ok is false for truncated or malformed
// dates.
func (k SessionKey) Time() (time.Time, bool) {
	t, err := time.Parse("20060102", k.Date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
