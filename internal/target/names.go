package target

import "strings"

// aliases match any target in a name-based kernel lookup.
var aliases = map[string]struct{}{
	"default":     {},
	"power":       {},
	"performance": {},
}

// IsAlias reports whether name is one of the wildcard target names.
func IsAlias(name string) bool {
	_, ok := aliases[strings.ToLower(name)]
	return ok
}

// MatchName reports whether s names the target called full. Matching is
// case-insensitive on s and finds the last occurrence of s in full; it counts
// when that occurrence starts full or a dotted component, or ends full or a
// dotted component. "c_model" therefore matches "khronos.c_model".
func MatchName(full, s string) bool {
	s = strings.ToLower(s)
	if s == "" {
		return false
	}
	begin := strings.LastIndex(full, s)
	if begin < 0 {
		return false
	}
	end := begin + len(s)
	startsComponent := begin == 0 || full[begin-1] == '.'
	endsComponent := end == len(full) || full[end] == '.'
	return startsComponent || endsComponent
}
