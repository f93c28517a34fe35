package extract

import (
	"strings"
	"unicode/utf8"
)

// pageBreak separates pages in plain text documents.
const pageBreak = "\f"

// extractPlain splits content into pages on form feeds. Invalid UTF-8 sequences are
// replaced with the replacement character. Empty input is a single empty page.
func extractPlain(content []byte) ([]string, error) {
	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\uFFFD")
	}
	return strings.Split(text, pageBreak), nil
}
