package llm

import (
	"fmt"
	"strings"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
)

const maxSnippetRunes = 12000

func snippet(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) > maxSnippetRunes {
		return string(runes[:maxSnippetRunes])
	}
	return string(runes)
}

func buildClassificationPrompt(text string) string {
	return `You classify learning material about building software with AI tools.
Return a strict JSON object with keys:
maturity_level (integer 0-4: 0 curious, 1 experimenting, 2 practitioner, 3 builder, 4 expert),
level_relation ("level-up" | "level-practice" | "cross-level"),
topics (array of 2-6 short lowercase topics),
tags (array of short lowercase tags),
tools_mentioned (array of product or library names),
difficulty ("beginner" | "intermediate" | "advanced").
No markdown, no extra keys.

Content:
` + snippet(text)
}

func buildGenerationPrompt(text, sourceURL string, hotNews bool) string {
	framing := "Write an evergreen, practical tutorial."
	if hotNews {
		framing = "This is breaking news: open with what changed and why it matters this week, then the practical steps."
	}
	return fmt.Sprintf(`You rewrite source material into an original tutorial.
%s
Return a strict JSON object with keys:
title (string, under 80 characters),
slug (lowercase words joined by dashes),
summary (2-3 sentences),
body (markdown, 400-900 words, no title heading),
action_items (array of 3-6 imperative steps).
Credit the source only through the facts you use. No extra keys.

Source URL: %s

Source content:
%s`, framing, sourceURL, snippet(text))
}

func buildMergePrompt(existing domain.Tutorial, newText, newURL string) string {
	return fmt.Sprintf(`You maintain a tutorial that collects several sources on one topic.
Fold the new source into the existing tutorial: keep its structure, add only new facts, remove duplication.
Return a strict JSON object with keys:
body (markdown), summary (2-3 sentences), action_items (array of 3-8 imperative steps).
No extra keys.

Existing title: %s
Existing summary: %s
Existing action items:
- %s

Existing body:
%s

New source URL: %s
New source content:
%s`,
		existing.Title,
		existing.Summary,
		strings.Join(existing.ActionItems, "\n- "),
		existing.Body,
		newURL,
		snippet(newText),
	)
}

func buildScriptPrompt(body string) string {
	return `Rewrite this markdown tutorial as a narration script for text-to-speech.
Plain spoken prose only: no markdown, no code, no URLs, no lists, no emojis.
Describe code in words when it matters. Keep it under 900 words.

Tutorial:
` + snippet(body)
}
