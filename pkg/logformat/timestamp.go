package logformat

import (
	"regexp"
	"strconv"
	"time"
)

// TimestampParser detects and parses timestamps from log lines
type TimestampParser struct {
	patterns []timestampPattern
}

type timestampPattern struct {
	regex  *regexp.Regexp
	layout string
}

// NewTimestampParser creates a parser with common timestamp formats
func NewTimestampParser() *TimestampParser {
	return &TimestampParser{
		patterns: []timestampPattern{
			// ISO 8601 / RFC 3339 variants
			// 2024-01-15T10:30:45.123Z
			// 2024-01-15T10:30:45.123+00:00
			{
				regex:  regexp.MustCompile(`(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d{3})?(?:Z|[+-]\d{2}:\d{2})?)`),
				layout: time.RFC3339,
			},
			// Common log format with milliseconds
			// 2024-01-15 10:30:45.123
			{
				regex:  regexp.MustCompile(`(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3})`),
				layout: "2006-01-02 15:04:05.000",
			},
			// Common log format without milliseconds
			{
				regex:  regexp.MustCompile(`(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})`),
				layout: "2006-01-02 15:04:05",
			},
			// Syslog format
			// Jan 15 10:30:45
			{
				regex:  regexp.MustCompile(`([A-Z][a-z]{2} \d{1,2} \d{2}:\d{2}:\d{2})`),
				layout: "Jan 2 15:04:05",
			},
			// Apache/nginx common log format
			// 15/Jan/2024:10:30:45 +0000
			{
				regex:  regexp.MustCompile(`(\d{2}/[A-Z][a-z]{2}/\d{4}:\d{2}:\d{2}:\d{2} [+-]\d{4})`),
				layout: "02/Jan/2006:15:04:05 -0700",
			},
			// Unix timestamp with milliseconds (checked before seconds so
			// the longer form wins)
			{
				regex:  regexp.MustCompile(`^(\d{13})(?:\D|$)`),
				layout: "unix_ms",
			},
			// Unix timestamp (seconds)
			{
				regex:  regexp.MustCompile(`^(\d{10})(?:\D|$)`),
				layout: "unix",
			},
			// Bracket format common in many loggers
			// [2024-01-15 10:30:45.123]
			{
				regex:  regexp.MustCompile(`\[(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(?:\.\d{3})?)\]`),
				layout: "2006-01-02 15:04:05.000",
			},
			// Time only (assume today)
			{
				regex:  regexp.MustCompile(`^(\d{2}:\d{2}:\d{2}(?:\.\d{3})?)`),
				layout: "15:04:05.000",
			},
		},
	}
}

// Parse attempts to extract a timestamp from a log line
func (p *TimestampParser) Parse(content []byte) *time.Time {
	for _, pattern := range p.patterns {
		m := pattern.regex.FindSubmatch(content)
		if len(m) < 2 {
			continue
		}

		timeStr := string(m[1])

		switch pattern.layout {
		case "unix":
			if secs, err := strconv.ParseInt(timeStr, 10, 64); err == nil {
				t := time.Unix(secs, 0)
				return &t
			}
			continue
		case "unix_ms":
			if ms, err := strconv.ParseInt(timeStr, 10, 64); err == nil {
				t := time.UnixMilli(ms)
				return &t
			}
			continue
		}

		// Try with milliseconds first, then without
		layouts := []string{pattern.layout}
		switch pattern.layout {
		case "2006-01-02 15:04:05.000":
			layouts = append(layouts, "2006-01-02 15:04:05")
		case "15:04:05.000":
			layouts = append(layouts, "15:04:05")
		}

		for _, layout := range layouts {
			t, err := time.Parse(layout, timeStr)
			if err != nil {
				continue
			}
			// Time-only formats borrow today's date
			if layout == "15:04:05" || layout == "15:04:05.000" {
				now := time.Now()
				t = time.Date(now.Year(), now.Month(), now.Day(),
					t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.Local)
			}
			// Syslog has no year
			if layout == "Jan 2 15:04:05" {
				t = time.Date(time.Now().Year(), t.Month(), t.Day(),
					t.Hour(), t.Minute(), t.Second(), 0, time.Local)
			}
			return &t
		}
	}

	return nil
}

// ParseMillis extracts a timestamp as milliseconds since the epoch,
// returning ok=false when the line carries no recognizable timestamp.
func (p *TimestampParser) ParseMillis(content []byte) (int64, bool) {
	t := p.Parse(content)
	if t == nil {
		return 0, false
	}
	return t.UnixMilli(), true
}

// IsContinuation reports whether a line continues the previous one: it
// starts with whitespace or carries no parseable timestamp. The first
// line of a message owns the timestamp for the whole message.
func (p *TimestampParser) IsContinuation(content []byte) bool {
	if len(content) == 0 {
		return true
	}
	if content[0] == ' ' || content[0] == '\t' {
		return true
	}
	_, ok := p.ParseMillis(content)
	return !ok
}

// FormatTime formats a timestamp for display
func FormatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("15:04:05")
}

// FormatTimeWithDate formats a timestamp with date for display
func FormatTimeWithDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
