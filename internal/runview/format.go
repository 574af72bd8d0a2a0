// Package runview formats pipeline runs, artifacts, and audit events for CLI
// display. List output is available as a human-readable table or JSONL for
// processing with tools like jq.
package runview

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/warren/pkg/pipeline"
)

// OutputFormat selects the list rendering.
type OutputFormat string

const (
	// OutputFormatDefault renders a human-readable table.
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON renders line-delimited JSON.
	OutputFormatJSON OutputFormat = "json"
)

// FormatArtifactTable writes artifacts as a formatted table to the provided
// writer. Returns the number of artifacts formatted.
func FormatArtifactTable(w io.Writer, artifacts []*pipeline.Artifact, requestID string) int {
	if len(artifacts) == 0 {
		fmt.Fprintf(w, "No artifacts found for run '%s'\n", requestID)
		return 0
	}

	fmt.Fprintf(w, "Artifacts for run '%s':\n\n", requestID)

	fmt.Fprintf(w, "%-10s %-18s %-5s %-18s %-10s %-8s %s\n",
		"ID", "KIND", "VER", "STATUS", "BY", "AGE", "HASH")
	fmt.Fprintf(w, "%-10s %-18s %-5s %-18s %-10s %-8s %s\n",
		"----------", "------------------", "-----", "------------------", "----------", "--------", "----------")

	for _, a := range artifacts {
		fmt.Fprintf(w, "%-10s %-18s %-5s %-18s %-10s %-8s %s\n",
			formatID(a.ID),
			string(a.Kind),
			formatVersion(a.Version),
			string(a.Status),
			a.ProducedBy,
			formatTimestamp(a.CreatedAtMs),
			formatHash(a.ContentHash),
		)
	}

	countMsg := "artifact"
	if len(artifacts) != 1 {
		countMsg = "artifacts"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(artifacts), countMsg)

	return len(artifacts)
}

// FormatArtifactsJSONL writes artifacts as line-delimited JSON (JSONL).
func FormatArtifactsJSONL(w io.Writer, artifacts []*pipeline.Artifact) error {
	for _, a := range artifacts {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to marshal artifact to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", string(data)); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// FormatSingleJSON writes a single value as pretty-printed JSON.
// Used to display complete artifact or snapshot details.
func FormatSingleJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}

	fmt.Fprintln(w)

	return nil
}

// FormatAuditTable writes audit events as a formatted table.
func FormatAuditTable(w io.Writer, events []*pipeline.AuditEvent, requestID string) int {
	if len(events) == 0 {
		fmt.Fprintf(w, "No audit events found for run '%s'\n", requestID)
		return 0
	}

	fmt.Fprintf(w, "Audit trail for run '%s':\n\n", requestID)

	fmt.Fprintf(w, "%-8s %-20s %-20s %s\n", "AGE", "TYPE", "AGENT", "MESSAGE")
	fmt.Fprintf(w, "%-8s %-20s %-20s %s\n", "--------", "--------------------", "--------------------", "----------")

	for _, e := range events {
		fmt.Fprintf(w, "%-8s %-20s %-20s %s\n",
			formatTimestamp(e.Timestamp),
			e.Type,
			formatAgent(e.Agent),
			formatMessage(e.Message),
		)
	}

	return len(events)
}

// formatID truncates an artifact ID to first 8 characters for compact display.
func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatVersion shows "v1", "v2", etc.
func formatVersion(version int) string {
	return fmt.Sprintf("v%d", version)
}

// formatHash truncates a content hash for table display.
// Unhashed (pre-approval) artifacts show "-".
func formatHash(hash string) string {
	if hash == "" {
		return "-"
	}
	if len(hash) > 10 {
		return hash[:10]
	}
	return hash
}

func formatAgent(agent string) string {
	if agent == "" {
		return "-"
	}
	return agent
}

// formatMessage truncates a message to its first line, max 50 characters.
func formatMessage(message string) string {
	if message == "" {
		return "-"
	}

	lines := strings.Split(message, "\n")
	first := strings.TrimSpace(lines[0])
	if len(first) > 50 {
		return first[:47] + "..."
	}
	return first
}

// formatTimestamp formats Unix timestamp in milliseconds as relative time
// like "2m ago" or "1h ago".
func formatTimestamp(timestampMs int64) string {
	if timestampMs == 0 {
		return "-"
	}

	t := time.Unix(timestampMs/1000, (timestampMs%1000)*1000000)
	diff := time.Since(t)

	if diff < time.Minute {
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	} else if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	} else if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
}
