// Package prompts holds the per-stage generation instructions.
package prompts

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Crohnos/dnd-generator/internal/generation/stages"
)

// PromptsEnv names a file that replaces the embedded catalogue.
const PromptsEnv = "GENERATION_PROMPTS_YAML"

//go:embed prompts.yaml
var embeddedPrompts []byte

type yamlCatalog struct {
	Version int                  `yaml:"version"`
	System  string               `yaml:"system"`
	Stages  map[string]yamlStage `yaml:"stages"`
}

type yamlStage struct {
	Instructions string   `yaml:"instructions"`
	Guidance     []string `yaml:"guidance"`
}

type StagePrompt struct {
	Instructions string
	Guidance     []string
}

// Catalog is immutable once loaded.
type Catalog struct {
	system string
	stages map[stages.ID]StagePrompt
}

func (c *Catalog) System() string { return c.system }

func (c *Catalog) Stage(id stages.ID) (StagePrompt, bool) {
	p, ok := c.stages[id]
	return p, ok
}

// Load reads the catalogue from PromptsEnv when set, otherwise the embedded
// copy, and checks that every registered stage has instructions.
func Load(reg *stages.Registry) (*Catalog, error) {
	data := embeddedPrompts
	if path := strings.TrimSpace(os.Getenv(PromptsEnv)); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", PromptsEnv, err)
		}
		data = b
	}
	return Parse(data, reg)
}

func Parse(data []byte, reg *stages.Registry) (*Catalog, error) {
	var raw yamlCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("prompts: %w", err)
	}
	if strings.TrimSpace(raw.System) == "" {
		return nil, errors.New("prompts: missing system prompt")
	}
	out := &Catalog{system: strings.TrimSpace(raw.System), stages: map[stages.ID]StagePrompt{}}
	for name, s := range raw.Stages {
		id, err := stages.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("prompts: %w", err)
		}
		out.stages[id] = StagePrompt{
			Instructions: strings.TrimSpace(s.Instructions),
			Guidance:     s.Guidance,
		}
	}
	var missing []string
	for _, d := range reg.Ordered() {
		if p, ok := out.stages[d.ID]; !ok || p.Instructions == "" {
			missing = append(missing, d.Name())
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("prompts: no instructions for %s", strings.Join(missing, ", "))
	}
	return out, nil
}
