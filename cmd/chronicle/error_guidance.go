package main

import (
	"context"
	"errors"
	"net"

	"chronicle/internal/api"
	"chronicle/internal/ingest"
	"chronicle/internal/models"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "unauthorized", "forbidden":
			lines = append(lines, "hint: verify CHRONICLE_ADMIN_TOKEN and the admin_token_hash config key.")
		}
		switch apiErr.Subject() {
		case "kind":
			lines = append(lines, "hint: list archived kinds with: chronicle kinds")
		case "blob":
			lines = append(lines, "hint: blob ids are the payload of file rows; list them with: chronicle rows <kind> --json")
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify CHRONICLE_API_URL points to a chronicle server.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase CHRONICLE_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	if errors.Is(err, ingest.ErrRetriesExhausted) {
		lines = append(lines, "hint: the source kept failing; raise ingest.max_failures or check the source url.")
		return uniqueLines(lines)
	}

	if models.IsIOError(err) {
		lines = append(lines, "hint: storage is unavailable; check db_path, ledger.dsn and the blob store settings.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a chronicle server is running at CHRONICLE_API_URL.",
			"hint: start local server manually with: chronicle srv",
			"hint: you can increase CHRONICLE_HTTP_TIMEOUT for slower environments.",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
