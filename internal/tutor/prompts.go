package tutor

import (
	"fmt"
	"strings"

	"sciquest/internal/domain"
	"sciquest/internal/llm"
)

const lessonSystemPrompt = `You are an engaging science teacher creating a quick mini-lesson for 8th grade students right before they take a quiz. Be punchy and clear, never textbook-dry.

Return JSON with:
- "hook": one sentence that makes the topic feel exciting or relevant to real life.
- "concepts": 3 to 4 items, each with "emoji" (one emoji that matches the concept), "title" (3-6 words) and "explanation" (2-3 conversational sentences using analogies, real-world examples or surprising facts).
- "quickTip": one sentence of insider advice on what to watch for in the quiz.

Only return the JSON object. No markdown fences, no extra text.`

var lessonSchema = &llm.Schema{
	Name: "mini-lesson",
	Definition: map[string]any{
		"type":     "object",
		"required": []string{"hook", "concepts", "quickTip"},
		"properties": map[string]any{
			"hook": map[string]any{"type": "string", "minLength": 1},
			"concepts": map[string]any{
				"type":     "array",
				"minItems": 3,
				"maxItems": 4,
				"items": map[string]any{
					"type":     "object",
					"required": []string{"emoji", "title", "explanation"},
					"properties": map[string]any{
						"emoji":       map[string]any{"type": "string"},
						"title":       map[string]any{"type": "string", "minLength": 1},
						"explanation": map[string]any{"type": "string", "minLength": 1},
					},
				},
			},
			"quickTip": map[string]any{"type": "string"},
		},
	},
}

func lessonPrompt(topic domain.Topic) string {
	parts := []string{fmt.Sprintf("Generate a mini-lesson for the topic: %q", topic.Title)}
	if topic.Standard != "" {
		parts = append(parts, "Science standard: "+topic.Standard)
	}
	if topic.Description != "" {
		parts = append(parts, "Topic context: "+topic.Description)
	}
	return strings.Join(parts, "\n")
}

func chatSystemPrompt(topic domain.Topic) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a friendly, encouraging science tutor helping 8th grade students review %q.\n", topic.Title)
	if topic.Description != "" {
		fmt.Fprintf(&b, "\nTopic summary: %s\n", topic.Description)
	}
	fmt.Fprintf(&b, `
Rules:
- Keep every reply short: 2-4 sentences.
- Be conversational and enthusiastic, like a teacher who loves the subject.
- Only answer questions about %[1]s or the science concepts that support it.
- If a student drifts off topic, warmly steer them back: "Great curiosity! Let's stick to %[1]s for now. Ask me anything about it!"
- Use simple analogies and real-world examples 8th graders relate to.
- Be extra patient when a student is confused or stuck.`, topic.Title)
	return b.String()
}
