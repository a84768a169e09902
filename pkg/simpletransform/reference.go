package simpletransform

import (
	"strings"

	"github.com/google/uuid"
)

// UniqueName derives a collision-free object name from a caller-supplied
// file name by embedding a random component between the name's prefix (text
// before the last ".") and suffix (the last "." onward). Both substrings are
// preserved verbatim for traceability:
//
//	UniqueName("my.file.txt") -> "my.file-5f3a...d2.txt"
//
// A name without a "." keeps the whole name as prefix.
func UniqueName(name string) string {
	prefix := name
	suffix := ""
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		prefix = name[:idx]
		suffix = name[idx:]
	}
	return prefix + "-" + uuid.New().String() + suffix
}
