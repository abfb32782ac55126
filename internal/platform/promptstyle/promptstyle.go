package promptstyle

import "strings"

const marker = "BLOOMIE_PROMPT_STYLE_V1"

// ApplySystem prepends a short guidance block to system prompts. Applying it
// twice is a no-op.
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
	b.WriteString("\nYou support parents of young children with practical, trait-aware guidance.")
	b.WriteString("\nYou are not a doctor and never give a diagnosis.")
	b.WriteString("\nUse the provided trait and history data as grounding; do not invent traits or facts.")
	b.WriteString("\nIf information is missing, say so or use conservative defaults.")
	if mode == "json" {
		b.WriteString("\nReturn a single JSON object that conforms to the schema and contains no extra keys.")
	} else {
		b.WriteString("\nBe warm, concise and structured.")
	}
	b.WriteString("\n---\n")
	b.WriteString(base)
	return strings.TrimSpace(b.String())
}
