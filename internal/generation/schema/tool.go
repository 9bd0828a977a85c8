package schema

import (
	"encoding/json"

	"github.com/Crohnos/dnd-generator/internal/domain/generation"
	"github.com/Crohnos/dnd-generator/internal/generation/stages"
	"github.com/Crohnos/dnd-generator/internal/platform/logger"
)

// Tool is the structured-output contract handed to the generative service.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolName is the tool name used for a stage.
func ToolName(id stages.ID) string { return "generate_" + id.String() }

// Build composes the tool for one stage. missing lists owned categories that
// had no translated schema; the tool is still usable when some resolved.
func Build(cat *Catalog, d stages.Descriptor) (tool Tool, missing []string, err error) {
	props := map[string]any{}
	required := []string{}
	for _, category := range d.Categories {
		raw, ok := cat.Schema(category)
		if !ok {
			missing = append(missing, category)
			continue
		}
		props[category] = map[string]any{
			"type":  "array",
			"items": json.RawMessage(raw),
		}
		required = append(required, category)
	}
	if len(required) == 0 {
		return Tool{}, missing, generation.SchemaTranslationGap(d.Name(), d.Categories)
	}
	return Tool{
		Name:        ToolName(d.ID),
		Description: d.Description,
		InputSchema: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   required,
		},
	}, missing, nil
}

type toolResult struct {
	tool    Tool
	missing []string
	err     error
}

// Toolset holds the tool for every stage of a registry, built once.
type Toolset struct {
	results map[stages.ID]toolResult
}

// NewToolset builds tools for every stage. Stages that cannot be built keep
// their error; it surfaces when the stage runs.
func NewToolset(reg *stages.Registry, cat *Catalog, log *logger.Logger) *Toolset {
	ts := &Toolset{results: map[stages.ID]toolResult{}}
	for _, d := range reg.Ordered() {
		tool, missing, err := Build(cat, d)
		ts.results[d.ID] = toolResult{tool: tool, missing: missing, err: err}
		if log == nil {
			continue
		}
		switch {
		case err != nil:
			log.Warn("Stage has no translatable schema", "stage", d.Name(), "categories", d.Categories)
		case len(missing) > 0:
			log.Warn("Stage tool built with missing categories", "stage", d.Name(), "missing", missing)
		}
	}
	return ts
}

// Tool returns the tool for id, or the build error recorded for it.
func (ts *Toolset) Tool(id stages.ID) (Tool, []string, error) {
	r, ok := ts.results[id]
	if !ok {
		return Tool{}, nil, generation.UnknownStage(id.String())
	}
	return r.tool, append([]string(nil), r.missing...), r.err
}
