// Package answer composes grounded prompts and asks the generation backend for a reply.
package answer

import (
	"fmt"
	"strings"

	"github.com/hyperjump/convotutor/internal/models"
)

const instructionTemplate = "Answer in %[1]s and explain in English as well. " +
	"Use the given context alone to answer questions as a chatbot; if the question is out of context, please mention it. " +
	"If the user asks for help on what to ask next, based on the conversation in the document, " +
	"suggest what the user should say in %[1]s and explain in English as well."

// BuildPrompt joins the retrieved passages with newlines and frames them with the question
// and the answer-language instructions. An empty result still produces a prompt with an
// empty context section.
func BuildPrompt(question string, result *models.RetrievalResult, language string) *models.ComposedPrompt {
	language = models.CanonicalLanguage(language)
	passages := result.Context()

	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(passages)
	b.WriteString("\n\nQuestion:\n")
	b.WriteString(question)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, instructionTemplate, language)

	return &models.ComposedPrompt{
		Question: question,
		Context:  passages,
		Language: language,
		Text:     b.String(),
	}
}
