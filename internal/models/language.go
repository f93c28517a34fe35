package models

import "strings"

// DefaultLanguage is used when a question does not name a target language.
const DefaultLanguage = "English"

// SupportedLanguages lists the answer languages offered to users.
var SupportedLanguages = []string{
	"English", "Spanish", "French", "German", "Chinese", "Japanese", "Russian",
	"Italian", "Portuguese", "Dutch", "Korean", "Arabic", "Turkish",
	"Swedish", "Hindi",
}

// CanonicalLanguage returns the supported language matching name case-insensitively.
// Empty input maps to DefaultLanguage. Unknown names are returned trimmed and unchanged:
// the answer language is free text for the model, the list is only a menu.
func CanonicalLanguage(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultLanguage
	}
	for _, l := range SupportedLanguages {
		if strings.EqualFold(l, name) {
			return l
		}
	}
	return name
}
