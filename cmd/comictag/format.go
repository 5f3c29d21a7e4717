package main

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"comictag/internal/comicinfo"
)

func qualifiedTag(prefix, tag string) string {
	if prefix == "" || prefix == comicinfo.BasePrefix {
		return tag
	}
	return prefix + ":" + tag
}

func fieldValue(rec comicinfo.Record, tag string) string {
	value, _ := rec.Field(comicinfo.BasePrefix, tag)
	return value
}

// singleLine folds multi-line values for table cells.
func singleLine(value string) string {
	value = strings.ReplaceAll(value, "\r\n", "\n")
	return strings.Join(strings.Fields(strings.ReplaceAll(value, "\n", " ")), " ")
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05") + " (" + humanize.Time(t) + ")"
}

func formatDuration(start, end time.Time) string {
	if start.IsZero() || end.IsZero() {
		return "-"
	}
	return end.Sub(start).Round(time.Millisecond).String()
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
