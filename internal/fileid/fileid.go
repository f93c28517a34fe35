// Package fileid derives deterministic identifiers for uploaded documents and their pages.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
)

const prefix = "doc:"

// SourceID returns a stable identifier for a document from its name and content.
// The same bytes uploaded under the same name always get the same ID; a changed
// file gets a new one.
func SourceID(name string, content []byte) string {
	h := sha256.New()
	if name != "" {
		h.Write([]byte(filepath.Clean(name)))
	}
	h.Write([]byte{0})
	h.Write(content)
	sum := h.Sum(nil)
	return prefix + hex.EncodeToString(sum[:16])
}

// UnitID returns the identifier of the page-th unit (zero-based) of a source document.
func UnitID(sourceID string, page int) string {
	return sourceID + "#" + strconv.Itoa(page)
}
