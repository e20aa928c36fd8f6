package report

import (
	"fmt"
	"time"
)

// Filename names a persisted report deterministically from the
// canonical slug and generation date, so re-running on the same day
// overwrites the day's snapshot instead of accumulating variants.
func Filename(slug string, generatedAt time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", slug, generatedAt.UTC().Format("2006-01-02"), ext)
}
