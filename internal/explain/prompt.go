package explain

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"meditranslate/pkg/models"
)

// maxContextChars caps how much recognized document text is sent along
// with an explanation request.
const maxContextChars = 2000

// systemPrompt sets the persona for every explanation request. It is sent
// as the system message (OpenAI) or system instruction (Vertex AI).
const systemPrompt = `You are a warm, culturally sensitive medical guide for a patient in a rural area. The patient has low health literacy and may be anxious.`

// BuildPrompt renders the user-facing half of an explanation request: the
// selected term, its local definition, the surrounding document text and
// the bilingual output format the models are asked to follow.
func BuildPrompt(req models.ExplanationRequest) string {
	definition := req.LocalDefinition
	if definition == "" {
		definition = "No local definition available."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "TERM: %q\n", req.Term)
	fmt.Fprintf(&b, "LOCAL DEFINITION: %q\n", definition)
	fmt.Fprintf(&b, "DOCUMENT CONTEXT: %q\n", truncateContext(req.DocumentContext))
	b.WriteString("\n")
	b.WriteString("CULTURAL GUIDELINES:\n")
	b.WriteString("1. Reassurance: Start by telling the patient not to panic.\n")
	b.WriteString("2. Simplicity: Use analogies (e.g., \"Blood pressure is like water pressure in a pipe\").\n")
	b.WriteString("3. Action: Tell them what to ask their doctor.\n")
	b.WriteString("\n")
	b.WriteString("OUTPUT FORMAT:\n")
	fmt.Fprintf(&b, "### %s Explanation\n", req.TargetLanguage)
	b.WriteString("...\n")
	b.WriteString("---\n")
	b.WriteString("### English Explanation\n")
	b.WriteString("* **What is it?**\n")
	b.WriteString("* **Why is it here?**\n")
	b.WriteString("* **Advice:**\n")
	return b.String()
}

// truncateContext cuts the document context to maxContextChars without
// splitting a multi-byte rune.
func truncateContext(context string) string {
	if len(context) <= maxContextChars {
		return context
	}
	cut := maxContextChars
	for cut > 0 && !utf8.RuneStart(context[cut]) {
		cut--
	}
	return context[:cut]
}
