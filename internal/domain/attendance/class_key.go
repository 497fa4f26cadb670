package attendance

import "strings"

// ClassKey groups students by standard and section, e.g. "5-A". A missing section yields "5-".
type ClassKey string

func NewClassKey(standard string, section *string) ClassKey {
	sec := ""
	if section != nil {
		sec = *section
	}
	return ClassKey(standard + "-" + sec)
}

// Split returns the standard and section encoded in the key.
func (k ClassKey) Split() (standard string, section string) {
	s := string(k)
	i := strings.LastIndex(s, "-")
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+1:]
}
