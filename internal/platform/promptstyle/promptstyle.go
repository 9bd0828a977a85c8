package promptstyle

import "strings"

const marker = "DND_GENERATOR_PROMPT_STYLE_V1"

// ApplySystem prepends the shared guidance block to a system prompt. It is
// idempotent: a prompt that already carries the block is returned unchanged.
func ApplySystem(system string, mode string) string {
	base := strings.TrimSpace(system)
	if base == "" {
		return base
	}
	if strings.Contains(base, marker) {
		return base
	}
	mode = strings.ToLower(strings.TrimSpace(mode))

	var b strings.Builder
	b.WriteString(marker)
	b.WriteString("\nYou are building a tabletop role-playing campaign world one stage at a time.")
	b.WriteString("\nStay consistent with every name and fact given in the context.")
	b.WriteString("\nWhen referring to something that already exists, use its exact name.")
	b.WriteString("\nGive every new element a unique, specific name.")
	if mode == "tool" {
		b.WriteString("\nRespond only by calling the provided tool. Fill every required category.")
	} else {
		b.WriteString("\nBe concise and structured.")
	}
	b.WriteString("\n---\n")
	b.WriteString(base)
	return strings.TrimSpace(b.String())
}
