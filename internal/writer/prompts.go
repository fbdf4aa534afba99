package writer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PromptBuilder constructs the prompts shared by all providers.
type PromptBuilder struct{}

func (pb *PromptBuilder) BuildOutlinePrompt(brief OutlineBrief) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate an outline for a script with the following title: %q.\n", brief.ScriptTitle)
	fmt.Fprintf(&sb, "The script should be aimed at %s, written in %s with a %s style and a %s tone.\n",
		brief.Audience, brief.Language, brief.Style, brief.Tone)
	fmt.Fprintf(&sb, "\nThe outline should have %d sections. Respond with ONLY a JSON array, no prose, where each element has this shape:\n", brief.SectionsCount)
	sb.WriteString(`[
  {
    "position": 0,
    "title": "Section Title",
    "description": "Concise description of what the section should be about",
    "instructions": "Concise instructions on how to write the section: the structure, the style, the tone, the audience"
  }
]
`)
	if brief.Context != "" {
		sb.WriteString("\n***ADDITIONAL CONTEXT:***\n")
		sb.WriteString(brief.Context)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (pb *PromptBuilder) BuildSectionPrompt(brief SectionBrief) string {
	var sb strings.Builder
	sb.WriteString("You are a storyteller/narrator. Write a very detailed story/script for the following section:\n\n")
	fmt.Fprintf(&sb, "- Write in %s person view.\n", brief.NPersonView)
	sb.WriteString("- Do not include scene directions or narrator markers, only the spoken text.\n")
	sb.WriteString("- Avoid welcoming phrases at the beginning.\n")
	sb.WriteString("- Keep language simple and clear.\n")
	if brief.ExcludedWords != "" {
		fmt.Fprintf(&sb, "- Exclude these words if possible: %s\n", brief.ExcludedWords)
	}
	sb.WriteString("- Ensure coherence and flow from the previous section to this one.\n")
	sb.WriteString("- Avoid repeating phrases, metaphors, or sentence structures from previous sections.\n")
	sb.WriteString("- Use varied vocabulary and sentence structures throughout.\n")

	fmt.Fprintf(&sb, "\nMain script title: %s\n", brief.ScriptTitle)
	fmt.Fprintf(&sb, "\nCurrent Section: %s\n", planJSON(&brief.Current))
	fmt.Fprintf(&sb, "Previous Section: %s\n", planJSON(brief.Previous))
	fmt.Fprintf(&sb, "Next Section: %s\n", planJSON(brief.Next))

	if brief.Context != "" {
		sb.WriteString("\n***ADDITIONAL CONTEXT:***\n")
		sb.WriteString(brief.Context)
		sb.WriteString("\n")
	}

	if brief.PreviousContent != "" {
		sb.WriteString("\nHere is the content from the previous section. DO NOT REPEAT phrases, examples, or sentence structures from this:\n\n")
		sb.WriteString(brief.PreviousContent)
		sb.WriteString("\n\nYour content should be completely different in wording and examples while maintaining narrative coherence.\n")
	}

	sb.WriteString("\nRespond with ONLY the section text, no headings and no commentary.\n")
	return sb.String()
}

func planJSON(p *SectionPlan) string {
	if p == nil {
		return "null"
	}
	b, _ := json.Marshal(p)
	return string(b)
}
