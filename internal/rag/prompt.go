package rag

import (
	"fmt"
	"strings"

	"tunarag/internal/models"
)

const (
	// ReferenceSentinel replaces the reference block when retrieval yields
	// nothing usable. The instruction tells the model to refuse when it
	// sees this exact sentence.
	ReferenceSentinel = "No relevant information about the product was found."

	// RefusalToken is the bare reply the model is instructed to emit when
	// it cannot answer from the references.
	RefusalToken = "None"

	// FallbackAnswer is returned to the caller whenever the model output
	// is empty or equals the refusal token.
	FallbackAnswer = "no relevant information found"

	emptyHistoryPlaceholder = "(no previous conversation)"
)

// DefaultInstruction is used when no instruction file is configured. The
// refusal policy lives here as a prompt-level contract; the authoritative
// enforcement is the post-processing check in Answer.
const DefaultInstruction = `You are the product's support assistant. Help users work with the
product accurately and practically, based only on the reference passages below.

Refusal rules. Reply with exactly 'None' (nothing else, no apology, no
explanation) when any of these hold:
1. The reference section says "` + ReferenceSentinel + `"
2. The question is unrelated to the product
3. The question is nonsensical or trivially short

Answer policy:
- Explain operations as numbered step-by-step lists
- Use plain language a first-time user can follow
- Answer completely in one reply; include page URLs when the references contain them
- Mention related features when they genuinely help
- For broad "what is this" questions, answer briefly without the full structure
- Never invent facts absent from the references
- Treat the conversation history as context only`

// BuildPrompt assembles the generation prompt in fixed order: instruction,
// question, reference block, history window. Built fresh per call.
func BuildPrompt(instruction, query, reference string, history []models.Turn) string {
	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\n# Question\n")
	b.WriteString(query)
	b.WriteString("\n\n# Reference\n")
	b.WriteString(reference)
	b.WriteString("\n\n# Conversation history\n")
	b.WriteString(FormatHistory(history))
	b.WriteString("\n\nAnswer the question using the reference above. If the reference is insufficient or the question is out of scope, reply with exactly 'None'.\n")
	return b.String()
}

// FormatReference renders retrieved passages as numbered sections. Callers
// pass the sentinel instead when nothing survived retrieval.
func FormatReference(passages []models.Passage) string {
	var b strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&b, "## Reference %d\n%s\n\n", i+1, p.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatHistory renders turns oldest first as Q/A pairs, or a placeholder
// when the history is empty.
func FormatHistory(history []models.Turn) string {
	if len(history) == 0 {
		return emptyHistoryPlaceholder
	}
	var b strings.Builder
	for i, turn := range history {
		fmt.Fprintf(&b, "Q%d: %s\nA%d: %s\n\n", i+1, turn.Query, i+1, turn.Response)
	}
	return strings.TrimRight(b.String(), "\n")
}
