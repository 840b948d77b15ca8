// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/pelletier/go-toml/v2"

	"github.com/pdiddy/anything-but-metric/pkg/types"
)

// defaultPromptText is the extraction prompt. It is rendered with a
// promptData value.
const defaultPromptText = `You are extracting journalistic unit comparisons from a news article.

A journalistic unit comparison uses something UNFAMILIAR to help the reader picture scale by comparing it to something FAMILIAR and PHYSICAL. The reader should finish the sentence with a clearer mental image of the size, weight, area, or volume being described.

GOOD examples (valid comparisons):
  "The iceberg is a quarter the size of Wales."
  "Scientists discovered a deposit 3 times the size of Wales."
  "The whale weighs as much as 30 double-decker buses."
  "The Great Barrier Reef is the size of 70 million football pitches."

BAD examples (NOT comparisons; return [] for articles that only contain these):
  "The temperature rose by 2.5°C."              - raw statistic, no reference object
  "The mission lasted 9 months."                - duration, not a size comparison
  "The rocket rose 80 feet into the air."       - raw measurement with no reference object
  "The turbine generates 2-3 megawatts."        - power output, not physical scale
  "One lunar day equals four weeks on Earth."   - time period, not physical
  "It's more likely than winning the lottery."  - probability, not physical scale
  "The factory is microwave-sized."             - appearance or shape, no numeric scale
  "Semiconductors 4,000 times purer."           - quality or purity, not physical size
  "Produced 38,000 tonnes of salmon."           - raw quantity with its own unit
  "The base is 20 miles from the Estate."       - distance measurement, no familiar reference
  "Each nest costs €500."                       - monetary value
  "1 in 4 properties face flood risk."          - ratio or proportion
  "The asteroid is 500 million years old."      - age, not compared to a relatable unit

Known units (use their exact "id" when you recognise them):
{{.Units}}

Article text:
---
{{.Article}}
---

Return a JSON array of comparison objects found in the article. Each object must be:
{
  "from": <string id OR new-unit object>,
  "to": <string id OR new-unit object>,
  "factor": <positive number: how many "to" per one "from">,
  "source_quote": "<verbatim sentence from the article>"
}

Hard rules. A comparison is only valid when ALL of the following are true:
1. "from" and "to" are DIFFERENT things, never the same unit compared to itself.
2. Both "from" and "to" are physical, tangible, visualisable things. Reject any comparison involving:
   - Time periods (days, weeks, years, centuries)
   - Speed or power (mph, megawatts, horsepower)
   - Monetary values or costs (£, $, €, billion, budget)
   - Probabilities or ratios (likelihood, percentage, "1 in X")
   - Abstract quantities (number of samples, number of properties, production totals)
   - Purity, efficiency, or quality multipliers ("X times purer/faster/stronger")
   - Things that are units of measurement themselves ("tonne", "metre", "kilometre")
3. The source_quote contains explicit size/weight/area/volume comparative language. The ONLY accepted forms are:
   - "[X] times the size/area/weight/height/length/volume of [Y]"
   - "[X] is as big/heavy/tall/wide/long as [Y]"
   - "[X] equivalent to [Y]" (where both X and Y are physical objects)
   - "[X] the size of [Y]" / "the size of [X]"
   - "times larger than" / "times bigger than" (only for physical size)
   Phrases like "times more", "times faster", "times purer", "as much as" (for probability or quantity), "times the output/production" do NOT qualify.
4. The comparison helps a reader visualise scale: the familiar unit gives an intuitive sense of how big, heavy, or large the unfamiliar thing is.
5. Both "from" and "to" must be physical objects that could plausibly appear in MULTIPLE different news articles. Do NOT create a new unit for something that only makes sense in this article (e.g. "salmon farm production in 2018", "lead level at a primary school"). A valid new unit is a physical object with a stable, recognisable size: a double-decker bus, the Eiffel Tower, Wales, a football pitch.

Additional rules:
- If a unit matches something in the known list by its "id", "label", or any entry in its "aliases", return its exact string "id". Do NOT create a new unit object.
- If a unit is genuinely new, return a full object:
  {"id": "suggested_snake_case_id", "label": "Human Label", "emoji": "🔵", "aliases": ["plural", "alt name"], "tags": ["category"]}
- "factor" must be a positive number (if 1 from = 200 to, factor = 200.0).
- "source_quote" must be a verbatim sentence copied from the article text above.
- Return [] when in doubt. MOST articles (around 80%) contain no valid comparison. That is the correct and expected output. Do not try to find something just because the article mentions numbers.
- Do not invent comparisons not stated in the article.
`

var defaultPromptTmpl = template.Must(template.New("extraction").Parse(defaultPromptText))

// promptData is the value the extraction template is executed with.
type promptData struct {
	Units   string
	Article string
}

// promptFile is the layout of an optional TOML prompt override:
//
//	[extraction]
//	prompt = """..."""
type promptFile struct {
	Extraction struct {
		Prompt string `toml:"prompt"`
	} `toml:"extraction"`
}

// LoadPromptFile parses a TOML prompt override. The template may reference
// {{.Units}} and {{.Article}}.
func LoadPromptFile(path string) (*template.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt file %s: %w", path, err)
	}
	var pf promptFile
	if err := toml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing prompt file %s: %w", path, err)
	}
	if strings.TrimSpace(pf.Extraction.Prompt) == "" {
		return nil, fmt.Errorf("prompt file %s: extraction.prompt is empty", path)
	}
	tmpl, err := template.New("extraction").Parse(pf.Extraction.Prompt)
	if err != nil {
		return nil, fmt.Errorf("parsing prompt template in %s: %w", path, err)
	}
	return tmpl, nil
}

type promptUnit struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Aliases []string `json:"aliases"`
}

// unitsBlock renders the compact known-units list given to the model.
func unitsBlock(units []types.Unit) (string, error) {
	list := make([]promptUnit, 0, len(units))
	for _, u := range units {
		aliases := u.Aliases
		if aliases == nil {
			aliases = []string{}
		}
		list = append(list, promptUnit{ID: u.ID, Label: u.Label, Aliases: aliases})
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(list); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// renderPrompt executes tmpl with the units block and the article text,
// truncated to maxChars characters when maxChars > 0.
func renderPrompt(tmpl *template.Template, text string, units []types.Unit, maxChars int) (string, error) {
	block, err := unitsBlock(units)
	if err != nil {
		return "", fmt.Errorf("encoding units: %w", err)
	}
	if maxChars > 0 {
		text = truncate(text, maxChars)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, promptData{Units: block, Article: text}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
