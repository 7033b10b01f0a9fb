package extraction

import (
	"fmt"
	"strings"

	"thirdcoast.systems/haul/pkg/utils/markdown"
)

const systemPrompt = `You extract purchasable products from short-form video transcripts.
Reply with ONLY a JSON array. Each element is an object:
{"name": string, "category": string, "description": string, "icon": string (optional, one emoji), "mentioned_context": string (optional, what the speaker said about it), "category_description": string (optional, only for new categories)}
Reply with [] when no concrete product is mentioned.`

func buildPrompt(transcript string, known []KnownCategory) string {
	var b strings.Builder
	if len(known) > 0 {
		b.WriteString("Reuse one of these existing categories when a product fits it:\n")
		for _, k := range known {
			if k.Description != "" {
				fmt.Fprintf(&b, "- %s: %s\n", k.Name, k.Description)
			} else {
				fmt.Fprintf(&b, "- %s\n", k.Name)
			}
		}
		b.WriteString("Create a new short lowercase category name only when none fits.\n\n")
	} else {
		b.WriteString("Group products into short lowercase category names.\n\n")
	}
	b.WriteString("Transcript:\n")
	b.WriteString(markdown.Truncate(transcript, maxTranscriptRunes))
	return b.String()
}
