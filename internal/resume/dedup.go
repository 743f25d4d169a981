package resume

import (
	"fmt"
	"regexp"
	"strconv"
)

// NextTitle returns a collision-free title for base given the owner's
// existing titles. A bare match counts as N=1; suffixed matches "(N)" feed
// the max; the result uses max+1. No collision returns base unchanged.
// base is quoted before compiling, titles may contain regex metacharacters.
func NextTitle(existing []string, base string) string {
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `\s*\((\d+)\)$`)

	maxN := 0
	for _, title := range existing {
		if title == base {
			if maxN < 1 {
				maxN = 1
			}
			continue
		}
		if m := pattern.FindStringSubmatch(title); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > maxN {
				maxN = n
			}
		}
	}

	if maxN == 0 {
		return base
	}
	return fmt.Sprintf("%s (%d)", base, maxN+1)
}

// NextCopyTitle returns the title for a duplicated resume: "{title} (Copy)"
// first, then "{title} (Copy N)". The original title is taken verbatim, so
// duplicating "T (2)" yields "T (2) (Copy)".
func NextCopyTitle(existing []string, original string) string {
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(original) + `\s*\(Copy(?:\s+(\d+))?\)$`)

	maxN := 0
	for _, title := range existing {
		m := pattern.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		n := 1
		if m[1] != "" {
			if parsed, err := strconv.Atoi(m[1]); err == nil {
				n = parsed
			}
		}
		if n > maxN {
			maxN = n
		}
	}

	if maxN == 0 {
		return fmt.Sprintf("%s (Copy)", original)
	}
	return fmt.Sprintf("%s (Copy %d)", original, maxN+1)
}
