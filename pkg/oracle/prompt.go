package oracle

import (
	"fmt"

	"mythforge/pkg/vocabulary"
)

const (
	LabelHeader     = "Name of Greek/Goddess"
	NarrativeHeader = "Narrative"
)

// ApologyNarrative is stored when the generator gives us nothing to work with.
const ApologyNarrative = "The Oracle fell silent for a moment, yet the mortal's tale still echoed with mythic promise."

const systemPromptTemplate = `You are the MythForge Oracle.

When the user shares a life event, you will:

1. Choose exactly one Greek god, goddess or hero from this list, spelled exactly as written:
%s.

2. Retell the life event as a short Greek-myth-inspired tale in which the chosen figure appears by name.

Style rules:
- Write lyrical, flowing prose in paragraphs.
- Do not rhyme.
- Do not write stanzas or line-by-line verse.
- Keep an elevated, mythic tone, as an ancient storyteller would.

3. Reply in exactly this format:

` + LabelHeader + `: <name from the list>

` + NarrativeHeader + `:
"<the tale>"

Write nothing before or after these two sections: no explanations, notes or links.`

const repairPromptTemplate = `Your previous answer named one figure but told a tale that never mentions them.

Previous answer:
<<<
%s
>>>

Rewrite it so the tale is clearly about the named figure and mentions them by name. If another figure from the list fits the tale better, you may name that figure instead, as long as the tale mentions it.
Use the same two-section format and nothing else.`

// SystemPrompt renders the fixed oracle instruction for a registry.
func SystemPrompt(reg *vocabulary.Registry) string {
	return fmt.Sprintf(systemPromptTemplate, reg.Join(", "))
}

// UserPrompt embeds the caller's event text verbatim.
func UserPrompt(event string) string {
	return `Life Event: "` + event + `"`
}

// RepairPrompt shows the model its own flawed output verbatim.
func RepairPrompt(original string) string {
	return fmt.Sprintf(repairPromptTemplate, original)
}
