// Package cli formats command output for docquery.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"docquery/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteAnswer writes a query answer to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteAnswer(w io.Writer, ans *models.Answer, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ans)
	default:
		writeAnswerText(w, ans)
		return nil
	}
}

func writeAnswerText(w io.Writer, ans *models.Answer) {
	fmt.Fprintln(w, ans.Answer)
	fmt.Fprintf(w, "\nconfidence: %s\n", ans.Confidence)
	if len(ans.Sources) == 0 {
		return
	}
	fmt.Fprintln(w, "sources:")
	for _, src := range ans.Sources {
		fmt.Fprintf(w, "  %s (part %d, score %.3f)\n",
			src.Filename, src.ChunkIndex+1, src.Score)
	}
}

// WriteStats writes index statistics to w in the given format.
func WriteStats(w io.Writer, stats *models.Stats, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	default:
		writeStatsText(w, stats)
		return nil
	}
}

func writeStatsText(w io.Writer, stats *models.Stats) {
	fmt.Fprintf(w, "documents:     %d\n", stats.TotalDocuments)
	fmt.Fprintf(w, "chunks:        %d\n", stats.TotalChunks)
	fmt.Fprintf(w, "storage bytes: %d\n", stats.StorageBytes)
	for _, name := range stats.UniqueFiles {
		fmt.Fprintf(w, "  %s\n", name)
	}
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
