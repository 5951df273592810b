package dns

import (
	"strings"
)

// NormalizeRecordName canonicalizes a record name as reported by a provider:
// lowercase, no trailing dot, and Route53's octal escape for the wildcard
// label ("\052") mapped back to "*".
func NormalizeRecordName(name string) string {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	return strings.ReplaceAll(name, `\052`, "*")
}
