package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"chronicle/internal/format"
	"chronicle/internal/ingest"
	"chronicle/internal/models"
)

const payloadPreviewRunes = 72

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeRowList(rows []models.Row) error {
	for _, row := range rows {
		if err := writePlain("%s\n", formatRowLine(row)); err != nil {
			return err
		}
	}
	return nil
}

func formatRowLine(row models.Row) string {
	parts := []string{fmt.Sprintf("#%d", row.ID), formatMillis(row.Date)}
	if row.Key != "" {
		parts = append(parts, row.Key)
	}
	if row.Payload != "" {
		parts = append(parts, preview(row.Payload))
	}
	if len(row.Attrs) > 0 {
		parts = append(parts, formatAttrs(row.Attrs))
	}
	return strings.Join(parts, "  ")
}

func formatReportLine(r ingest.Report) string {
	line := fmt.Sprintf("%s [%s] %s: fetched=%d committed=%d skipped=%d failures=%d",
		r.Source, r.Kind, r.State, r.Fetched, r.Committed, r.Skipped, r.Failures)
	if r.Error != "" {
		line += " error=" + r.Error
	}
	return line
}

func formatAttrs(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+attrs[k])
	}
	return strings.Join(parts, " ")
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= payloadPreviewRunes {
		return s
	}
	return string(runes[:payloadPreviewRunes-1]) + "…"
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
