package genplan

import (
	"fmt"
	"strings"
)

// PromptInput summarizes the request for the generator.
type PromptInput struct {
	Query        string
	Interests    []string
	Weather      string
	TimeOfDay    string
	Budget       string
	GroupSize    int
	DurationDays int
}

// BuildPrompt assembles the generation prompt. The allow-list constraint is
// the load-bearing part: the generator may only schedule activities from
// the provided list, and anything else will be dropped during
// reconciliation anyway.
func BuildPrompt(input PromptInput, allowed []string) string {
	var b strings.Builder

	days := input.DurationDays
	if days < 1 {
		days = 1
	}
	fmt.Fprintf(&b, "Create a %d-day travel itinerary for this request.\n\n", days)
	fmt.Fprintf(&b, "REQUEST: %s\n", input.Query)
	if len(input.Interests) > 0 {
		fmt.Fprintf(&b, "INTERESTS: %s\n", strings.Join(input.Interests, ", "))
	}
	if input.Weather != "" {
		fmt.Fprintf(&b, "WEATHER: %s\n", input.Weather)
	}
	if input.TimeOfDay != "" {
		fmt.Fprintf(&b, "STARTING TIME OF DAY: %s\n", input.TimeOfDay)
	}
	if input.Budget != "" {
		fmt.Fprintf(&b, "BUDGET: %s\n", input.Budget)
	}
	if input.GroupSize > 0 {
		fmt.Fprintf(&b, "GROUP SIZE: %d\n", input.GroupSize)
	}

	b.WriteString("\nALLOWED ACTIVITIES (the complete set you may schedule):\n")
	for _, title := range allowed {
		fmt.Fprintf(&b, "- %s\n", title)
	}

	b.WriteString(`
MANDATORY CONSTRAINTS:
- You may ONLY schedule activities from the ALLOWED ACTIVITIES list above.
- Use each activity's title EXACTLY as written; do not invent, rename, or merge activities.
- Do not schedule the same activity twice.
- Organize the plan into sections by time period (morning, afternoon, evening), in day order.
- Every section must contain at least one item; give each item a concrete time like "09:00".
- Keep item descriptions to one or two sentences.
`)
	return b.String()
}
