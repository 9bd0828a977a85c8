package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	types "github.com/Crohnos/dnd-generator/internal/domain"
	"github.com/Crohnos/dnd-generator/internal/domain/generation"
	"github.com/Crohnos/dnd-generator/internal/generation/prompts"
	"github.com/Crohnos/dnd-generator/internal/generation/schema"
	"github.com/Crohnos/dnd-generator/internal/generation/stages"
)

// promptPlan selects which parts of the campaign a stage's prompt carries.
type promptPlan struct {
	party        bool // player character roster
	backstories  bool // include PC backstories in the roster
	descriptions bool // describe context rows, not just name them
	rowLimit     int  // max context rows listed per category
}

// promptFor is the per-stage prompt plan. Every stages.ID must have a case.
func promptFor(id stages.ID) (promptPlan, error) {
	switch id {
	case stages.CoreWorld:
		return promptPlan{descriptions: true, rowLimit: 40}, nil
	case stages.CharacterBuilding, stages.SocialFramework:
		return promptPlan{party: true, descriptions: true, rowLimit: 40}, nil
	case stages.PCEntities:
		return promptPlan{party: true, backstories: true, descriptions: true, rowLimit: 40}, nil
	case stages.PCLocations, stages.PCItems:
		return promptPlan{party: true, backstories: true, descriptions: true, rowLimit: 60}, nil
	case stages.QuestsEncounters:
		return promptPlan{party: true, backstories: true, descriptions: true, rowLimit: 80}, nil
	case stages.WorldPopulation:
		return promptPlan{party: true, descriptions: true, rowLimit: 80}, nil
	case stages.Relationships:
		return promptPlan{rowLimit: 200}, nil
	}
	return promptPlan{}, generation.UnknownStage(id.String())
}

const descriptionLimit = 160

func buildPrompt(plan promptPlan, c *types.Campaign, d stages.Descriptor, sp prompts.StagePrompt, deps []categoryContext, tool schema.Tool, missing []string) string {
	var b strings.Builder
	writeBrief(&b, c)
	if plan.party {
		writeParty(&b, c, plan.backstories)
	}
	writeContext(&b, deps, plan)

	b.WriteString("\n# Task: ")
	b.WriteString(d.Description)
	b.WriteString("\n")
	b.WriteString(sp.Instructions)
	b.WriteString("\n")
	if len(sp.Guidance) > 0 {
		b.WriteString("\nGuidance:\n")
		for _, g := range sp.Guidance {
			b.WriteString("- ")
			b.WriteString(strings.TrimSpace(g))
			b.WriteString("\n")
		}
	}

	skip := map[string]bool{}
	for _, m := range missing {
		skip[m] = true
	}
	var fill []string
	for _, c := range d.Categories {
		if !skip[c] {
			fill = append(fill, c)
		}
	}
	fmt.Fprintf(&b, "\nCall %s and fill: %s.\n", tool.Name, strings.Join(fill, ", "))
	return b.String()
}

func writeBrief(b *strings.Builder, c *types.Campaign) {
	b.WriteString("# Campaign: ")
	b.WriteString(c.Name)
	b.WriteString("\n")
	if s := strings.TrimSpace(c.Setting); s != "" {
		b.WriteString("Setting: " + s + "\n")
	}
	var themes []string
	if len(c.Themes) > 0 {
		_ = json.Unmarshal(c.Themes, &themes)
	}
	if len(themes) > 0 {
		b.WriteString("Themes: " + strings.Join(themes, ", ") + "\n")
	}
	fmt.Fprintf(b, "Tone: %s\nDifficulty: %s\nProgression: %s\nStarting level: %d\nCampaign length: %s\n",
		c.Tone, c.Difficulty, c.ProgressionType, c.StartingLevel, c.CampaignLength)
	if notes := strings.TrimSpace(c.AdditionalNotes); notes != "" {
		b.WriteString("Additional notes: " + notes + "\n")
	}
}

func writeParty(b *strings.Builder, c *types.Campaign, backstories bool) {
	var pcs []types.PlayerCharacter
	if len(c.PlayerCharacters) > 0 {
		_ = json.Unmarshal(c.PlayerCharacters, &pcs)
	}
	if len(pcs) == 0 {
		return
	}
	b.WriteString("\n# Player characters\n")
	for _, pc := range pcs {
		b.WriteString("- " + pc.Name)
		var parts []string
		for _, p := range []string{pc.Race, pc.Class} {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if pc.Level > 0 {
			parts = append(parts, fmt.Sprintf("level %d", pc.Level))
		}
		if len(parts) > 0 {
			b.WriteString(" (" + strings.Join(parts, " ") + ")")
		}
		if bg := strings.TrimSpace(pc.Background); bg != "" {
			b.WriteString(", " + bg)
		}
		if backstories {
			if s := strings.TrimSpace(pc.Backstory); s != "" {
				b.WriteString(": " + s)
			}
		}
		b.WriteString("\n")
	}
}

func writeContext(b *strings.Builder, deps []categoryContext, plan promptPlan) {
	nonEmpty := false
	for _, cc := range deps {
		if len(cc.Rows) > 0 {
			nonEmpty = true
			break
		}
	}
	if !nonEmpty {
		return
	}
	b.WriteString("\n# Established world (refer to these by exact name)\n")
	for _, cc := range deps {
		if len(cc.Rows) == 0 {
			continue
		}
		fmt.Fprintf(b, "## %s\n", cc.Category)
		rows := cc.Rows
		if plan.rowLimit > 0 && len(rows) > plan.rowLimit {
			rows = rows[:plan.rowLimit]
		}
		for _, r := range rows {
			b.WriteString("- " + r.Name)
			if plan.descriptions {
				if desc := truncate(strings.TrimSpace(r.Description), descriptionLimit); desc != "" {
					b.WriteString(": " + desc)
				}
			}
			b.WriteString("\n")
		}
		if extra := len(cc.Rows) - len(rows); extra > 0 {
			fmt.Fprintf(b, "- (and %d more)\n", extra)
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
