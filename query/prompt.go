package query

import (
	"strings"

	"github.com/calenlabs/ragbook/core"
)

const promptPreamble = "You are an AI assistant for an AI Robotics textbook."

// ungroundedNotice replaces the context block when retrieval produced
// nothing above the relevance floor. The model is told to say so instead of
// inventing material.
const ungroundedNotice = "No relevant content was found in the textbook for this question. " +
	"Say that the textbook does not appear to cover it. Do not invent textbook content or citations."

// buildContext renders retrieval hits as labelled blocks, one per chunk,
// ranked order preserved.
func buildContext(hits []core.Hit) string {
	blocks := make([]string, len(hits))
	for i, hit := range hits {
		blocks[i] = "[" + hit.Payload.Source + " - " + hit.Payload.Section + "]\n" + hit.Payload.Text
	}
	return strings.Join(blocks, "\n\n")
}

// buildPrompt assembles the single generation prompt: preamble, context
// section labelled by mode, then the question.
func buildPrompt(question, context string, mode core.Mode) string {
	label := "Context:"
	if mode == core.ModeSelectedText {
		label = "Highlighted Text:"
	}

	var b strings.Builder
	b.WriteString(promptPreamble)
	b.WriteString("\n\n")
	b.WriteString(label)
	b.WriteString("\n")
	b.WriteString(context)
	b.WriteString("\n\n")
	b.WriteString("Question:\n")
	b.WriteString(question)
	b.WriteString("\n\nAnswer clearly and concisely:")
	return b.String()
}

// truncateRunes caps s at n runes without splitting a rune.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
