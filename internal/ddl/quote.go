package ddl

import "strings"

// Quote returns name as a double-quoted SQL identifier with embedded
// quotes doubled, so `a"b` becomes `"a""b"`.
func Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
