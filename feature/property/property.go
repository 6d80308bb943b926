package property

import (
	"regexp"
	"strings"
)

// Key identifies a physical lock: the street number of the property and the
// lock's name within it.
type Key struct {
	StreetNumber string `json:"street_number"`
	LockName     string `json:"lock_name"`
}

// String renders the key the way aliases are written.
func (k Key) String() string {
	return k.StreetNumber + " " + k.LockName
}

// The street number is the leading run of digits; the lock name is everything
// after it.
var pattern = regexp.MustCompile(`^(\d+)\s+(.+)$`)

var spaces = regexp.MustCompile(`\s+`)

// Match maps a property descriptor or lock alias to a Key. It never returns a
// partial key: both parts are present when ok is true.
func Match(descriptor string) (Key, bool) {
	s := spaces.ReplaceAllString(strings.TrimSpace(descriptor), " ")
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return Key{}, false
	}
	name := strings.TrimSpace(m[2])
	if name == "" {
		return Key{}, false
	}
	return Key{StreetNumber: m[1], LockName: name}, true
}
