// Package genplan turns a capped, deduplicated candidate allow-list into a
// structured travel plan through the Gemini API. The pipeline treats it as
// an opaque generator with a timeout and a validated-output contract.
package genplan

// Plan is the generator's structured output: ordered time-period sections,
// each with ordered items drawn from the allow-list.
type Plan struct {
	Sections []Section `json:"sections"`
}

// Section is one time period of the plan.
type Section struct {
	Period string `json:"period"`
	Items  []Item `json:"items"`
}

// Item is a single scheduled activity.
type Item struct {
	Title       string   `json:"title"`
	Time        string   `json:"time"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// ItemCount returns the total item count across sections.
func (p *Plan) ItemCount() int {
	n := 0
	for i := range p.Sections {
		n += len(p.Sections[i].Items)
	}
	return n
}

// validate enforces the guaranteed-valid-output contract: at least one
// section and one item, every item titled.
func (p *Plan) validate() error {
	if len(p.Sections) == 0 {
		return malformedError("generator returned no sections", nil)
	}
	if p.ItemCount() == 0 {
		return malformedError("generator returned no items", nil)
	}
	for si := range p.Sections {
		for ii := range p.Sections[si].Items {
			if p.Sections[si].Items[ii].Title == "" {
				return malformedError("generator returned an untitled item", nil)
			}
		}
	}
	return nil
}
