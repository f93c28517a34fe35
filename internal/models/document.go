// Package models defines core data structures for documents, text units, retrieval results and answers.
package models

// Document formats recognised by the segmenter.
const (
	FormatPDF   = "pdf"
	FormatDOCX  = "docx"
	FormatXLSX  = "xlsx"
	FormatPPTX  = "pptx"
	FormatPlain = "plain"
)

// DocumentInput is one uploaded document: raw bytes plus the name it was uploaded under.
// SourceID is optional; the indexer derives one from the name and content when empty.
type DocumentInput struct {
	SourceID string `json:"source_id,omitempty"`
	Name     string `json:"name"`
	Content  []byte `json:"-"`
}

// UnitMetadata describes where a text unit came from.
type UnitMetadata struct {
	// Page is the zero-based page (sheet, slide) index within the source document.
	Page       int    `json:"page"`
	SourceID   string `json:"source_id"`
	SourceName string `json:"source_name,omitempty"`
	Format     string `json:"format,omitempty"`
}

// TextUnit is the text of one page of one document. Content may be empty.
// TextUnits are values: the index holds its own copy and never aliases the caller's.
type TextUnit struct {
	ID       string       `json:"id"`
	Content  string       `json:"content"`
	Metadata UnitMetadata `json:"metadata"`
}
