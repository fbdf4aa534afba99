package writer

import (
	"encoding/json"
	"fmt"
	"strings"
)

func cleanModelOutput(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	return strings.TrimSpace(text)
}

// parseSectionPlans extracts the JSON array of section plans from a model
// response. Models occasionally wrap the array in prose or a code fence,
// so the parser locates the outermost brackets before unmarshalling.
func parseSectionPlans(text string) ([]SectionPlan, error) {
	cleaned := cleanModelOutput(text)

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array found in model response: %s", snippet(cleaned))
	}

	var plans []SectionPlan
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &plans); err != nil {
		return nil, fmt.Errorf("failed to parse section plans: %w", err)
	}
	if len(plans) == 0 {
		return nil, fmt.Errorf("model returned an empty outline")
	}
	for i := range plans {
		if strings.TrimSpace(plans[i].Title) == "" {
			return nil, fmt.Errorf("section plan %d has no title", i)
		}
		plans[i].Position = i
	}
	return plans, nil
}

func snippet(s string) string {
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
