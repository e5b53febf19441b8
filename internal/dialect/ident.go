package dialect

import (
	"fmt"
	"regexp"
	"strings"
)

// identifiers are interpolated into SQL text, so they must match a strict
// allow-list. Spreadsheet headers are normalized first, then validated.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const maxIdentLen = 63

// ValidateIdent rejects any identifier that could not have come from a
// normalized header or a well-formed table name.
func ValidateIdent(name string) error {
	if name == "" {
		return fmt.Errorf("empty identifier")
	}
	if len(name) > maxIdentLen {
		return fmt.Errorf("identifier %q exceeds %d characters", name, maxIdentLen)
	}
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

// NormalizeIdent turns free-form header text into a safe column name:
// lowercased, spaces and dashes collapsed to underscores, everything else
// outside [a-z0-9_] dropped. A leading digit gets a "c_" prefix.
func NormalizeIdent(header string) string {
	s := strings.ToLower(strings.TrimSpace(header))
	var sb strings.Builder
	lastUnderscore := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastUnderscore = false
		case r == ' ', r == '-', r == '_', r == '.', r == '/':
			if !lastUnderscore && sb.Len() > 0 {
				sb.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.TrimSuffix(sb.String(), "_")
	if out == "" {
		return ""
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "c_" + out
	}
	if len(out) > maxIdentLen {
		out = out[:maxIdentLen]
	}
	return out
}
