package onc

import (
	"fmt"
	"time"
)

const utcLayout = "2006-01-02T15:04:05.000Z"

var inputLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006/01/02",
	"02 Jan 2006",
	"Jan 2 2006",
}

// FormatUTC turns a date string into the ISO 8601 form the services expect,
// truncated to whole seconds. "now" uses the local clock.
func FormatUTC(date string) (string, error) {
	if date == "now" {
		return format(time.Now()), nil
	}

	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, date); err == nil {
			return format(t), nil
		}
	}
	return "", fmt.Errorf("unrecognised date %q", date)
}

func format(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(utcLayout)
}
