// internal/utils/licenseid.go
package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// License identifiers are externally visible legal references, so they have a
// stable, human-readable shape: SL-<year>-<TYPE>-<12 hex chars>. The random
// tail comes from a fresh UUID, which keeps concurrent generation
// collision-free without any shared counter.
const licenseRefPrefix = "SL"

func NewLicenseRef(typeCode string) string {
	code := strings.ToUpper(strings.TrimSpace(typeCode))
	if code == "" {
		code = "GEN"
	}

	tail := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:12]
	return fmt.Sprintf("%s-%d-%s-%s", licenseRefPrefix, time.Now().Year(), code, tail)
}

// SanitizeFileLabel reduces a free-text title to a filesystem and URL safe
// fragment for deterministic document names.
func SanitizeFileLabel(s string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "untitled"
	}
	if len(out) > 60 {
		out = out[:60]
	}
	return strings.Trim(out, "-")
}
