package http

import (
	"time"

	xutil "DemandCast/pkg/util"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int { return xutil.ParseIntDefault(s, def) }

// ParseDate accepts YYYY-MM-DD, RFC3339 or unix seconds and truncates to the UTC day.
func ParseDate(s string) (time.Time, bool) { return xutil.ParseDate(s) }
