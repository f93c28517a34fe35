package models

import "strings"

// RetrievalHit is a single retrieved text unit with its cosine similarity to the question.
type RetrievalHit struct {
	Unit  TextUnit `json:"unit"`
	Score float64  `json:"score"`
	Rank  int      `json:"rank"`
}

// RetrievalResult is the ordered output of the retriever, most similar first.
// Hits may be empty (no index, or an index with no entries).
type RetrievalResult struct {
	Question  string          `json:"question"`
	Hits      []*RetrievalHit `json:"hits"`
	QueryTime int64           `json:"query_time_ms"`
}

// Context returns the hit contents joined with newlines, in rank order.
func (r *RetrievalResult) Context() string {
	if r == nil || len(r.Hits) == 0 {
		return ""
	}
	parts := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		parts[i] = h.Unit.Content
	}
	return strings.Join(parts, "\n")
}

// Units returns the retrieved text units in rank order.
func (r *RetrievalResult) Units() []TextUnit {
	if r == nil {
		return nil
	}
	units := make([]TextUnit, len(r.Hits))
	for i, h := range r.Hits {
		units[i] = h.Unit
	}
	return units
}

// ComposedPrompt is the single user message sent to the generation backend.
type ComposedPrompt struct {
	Question string `json:"question"`
	Context  string `json:"context"`
	Language string `json:"language"`
	Text     string `json:"text"`
}

// Answer is the generated reply for one question together with the passages it was grounded on.
type Answer struct {
	Question  string          `json:"question"`
	Language  string          `json:"language"`
	Text      string          `json:"answer"`
	Sources   []*RetrievalHit `json:"sources"`
	QueryTime int64           `json:"query_time_ms"`
}

// FailedDocument names a document that was skipped during processing.
type FailedDocument struct {
	Name     string `json:"name"`
	SourceID string `json:"source_id,omitempty"`
	Error    string `json:"error"`
}

// ProcessSummary reports the outcome of one processing pass.
type ProcessSummary struct {
	IndexID   string           `json:"index_id,omitempty"`
	Documents int              `json:"documents"`
	Units     int              `json:"units"`
	Failed    []FailedDocument `json:"failed,omitempty"`
}
