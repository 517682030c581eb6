package pipeline

import (
	"fmt"
	"strings"

	"github.com/pluma0/pluma/internal/intent"
	"github.com/pluma0/pluma/internal/knowledge"
)

// modeInstructions shape the answer per classified intent.
var modeInstructions = map[intent.AnswerMode]string{
	intent.ModeTable:      "Answer with the relevant target values in a compact table, then one short note on interpretation.",
	intent.ModeAdvisory:   "Give a practical recommendation with its rationale, ordered by expected impact.",
	intent.ModeDiagnostic: "Reason through the differential: likely causes first, distinguishing signs, then suggested checks.",
	intent.ModeNarrative:  "Answer in a short, clear explanation.",
}

// buildBasePrompt renders the generation prompt: role, answer-shaping
// instruction, the expanded question and the supporting documents. The
// terminology block is kept separate so the caller controls placement.
func buildBasePrompt(query string, classified intent.ClassifiedQuery, retrieval knowledge.RetrievalResult) string {
	var b strings.Builder

	b.WriteString("You are an expert advisor on commercial broiler production.\n")
	if instr, ok := modeInstructions[classified.Mode]; ok {
		b.WriteString(instr)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nQuestion: %s\n", query)

	if len(retrieval.Documents) > 0 {
		b.WriteString("\nSupporting documents:\n")
		for i, doc := range retrieval.Documents {
			fmt.Fprintf(&b, "%d. %s (%d, %s)\n%s\n", i+1, doc.Title, doc.Year, doc.SourceName, doc.Abstract)
		}
	}
	if retrieval.Note != "" {
		fmt.Fprintf(&b, "\nNote: %s.\n", retrieval.Note)
	}

	return b.String()
}
