package normalize

import "strings"

// Text collapses interior whitespace to single spaces and trims the ends.
// Unicode content is preserved as-is.
func Text(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
