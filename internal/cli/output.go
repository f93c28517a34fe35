// Package cli renders ConvoTutor results for the terminal and talks to a running server.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/convotutor/internal/models"
	"github.com/hyperjump/convotutor/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is indented JSON for other programs.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" and "json" (case-insensitive); anything else is an error.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("invalid output format %q (use text or json)", s)
	}
}

const snippetLen = 200

// AskResult is an answer as returned by the ask endpoint.
type AskResult struct {
	*models.Answer
	Warning string `json:"warning,omitempty"`
}

// RetrieveResult is a retrieval as returned by the retrieve endpoint.
type RetrieveResult struct {
	*models.RetrievalResult
	Context string `json:"context"`
	Warning string `json:"warning,omitempty"`
}

// TranslateResult is the outcome of a translation.
type TranslateResult struct {
	Text string `json:"text"`
	OK   bool   `json:"ok"`
}

// WriteAnswer writes an answer and its sources.
func WriteAnswer(w io.Writer, res *AskResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	if res.Warning != "" {
		fmt.Fprintf(w, "warning: %s\n\n", res.Warning)
	}
	if res.Answer == nil {
		return nil
	}
	fmt.Fprintf(w, "%s\n", strings.TrimSpace(res.Text))
	if len(res.Sources) > 0 {
		fmt.Fprintf(w, "\nSources (%dms):\n", res.QueryTime)
		writeHits(w, res.Sources)
	}
	return nil
}

// WriteRetrieval writes the retrieved passages in rank order.
func WriteRetrieval(w io.Writer, res *RetrieveResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	if res.Warning != "" {
		fmt.Fprintf(w, "warning: %s\n\n", res.Warning)
	}
	if res.RetrievalResult == nil || len(res.Hits) == 0 {
		fmt.Fprintln(w, "No passages found.")
		return nil
	}
	fmt.Fprintf(w, "Found %d passages in %dms\n\n", len(res.Hits), res.QueryTime)
	writeHits(w, res.Hits)
	return nil
}

func writeHits(w io.Writer, hits []*models.RetrievalHit) {
	for _, h := range hits {
		fmt.Fprintf(w, "[%d] %.4f  %s p.%d\n", h.Rank, h.Score, h.Unit.Metadata.SourceName, h.Unit.Metadata.Page+1)
		fmt.Fprintf(w, "    %s\n", utils.Truncate(utils.OneLine(h.Unit.Content), snippetLen))
	}
}

// WriteProcessSummary writes the outcome of a processing pass.
func WriteProcessSummary(w io.Writer, sum *models.ProcessSummary, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, sum)
	}
	if sum == nil {
		return nil
	}
	if sum.IndexID != "" {
		fmt.Fprintf(w, "Indexed %d documents into %d units (index %s)\n", sum.Documents, sum.Units, sum.IndexID)
	} else {
		fmt.Fprintf(w, "No index built from %d documents\n", sum.Documents)
	}
	for _, f := range sum.Failed {
		fmt.Fprintf(w, "  failed: %s: %s\n", f.Name, f.Error)
	}
	return nil
}

// WriteTranslation writes a translation result.
func WriteTranslation(w io.Writer, res *TranslateResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	if !res.OK {
		fmt.Fprintln(w, "translation failed")
		return nil
	}
	fmt.Fprintln(w, res.Text)
	return nil
}

// IndexStatus is the index part of a status report.
type IndexStatus struct {
	SessionID  string    `json:"session_id"`
	Ready      bool      `json:"ready"`
	IndexID    string    `json:"index_id,omitempty"`
	Units      int       `json:"units"`
	Dimensions int       `json:"dimensions,omitempty"`
	BuiltAt    time.Time `json:"built_at,omitempty"`
	Sources    []string  `json:"sources,omitempty"`
}

// Status is a status report as served by the status endpoint.
type Status struct {
	Index          IndexStatus            `json:"index"`
	Config         map[string]interface{} `json:"config,omitempty"`
	DiskUsageBytes int64                  `json:"disk_usage_bytes,omitempty"`
}

// WriteStatus writes a status report.
func WriteStatus(w io.Writer, st *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	if !st.Index.Ready {
		fmt.Fprintln(w, "Index: none (process documents first)")
	} else {
		fmt.Fprintf(w, "Index: %s\n", st.Index.IndexID)
		fmt.Fprintf(w, "  Units: %d\n", st.Index.Units)
		fmt.Fprintf(w, "  Dimensions: %d\n", st.Index.Dimensions)
		if !st.Index.BuiltAt.IsZero() {
			fmt.Fprintf(w, "  Built: %s\n", st.Index.BuiltAt.Format(time.RFC3339))
		}
		fmt.Fprintf(w, "  Sources: %d\n", len(st.Index.Sources))
	}
	if st.DiskUsageBytes > 0 {
		fmt.Fprintf(w, "Snapshot disk usage: %s\n", FormatBytes(st.DiskUsageBytes))
	}
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
