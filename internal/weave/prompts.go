package weave

import (
	"fmt"
	"strings"
)

// Connection strengths. The strength changes the bar for a positive judgment,
// not the mechanics of the call.
const (
	StrengthStrict   = "strict"
	StrengthBalanced = "balanced"
	StrengthRelaxed  = "relaxed"
)

// Link output formats.
const (
	FormatComma    = "comma"
	FormatBullet   = "bullet"
	FormatNumbered = "numbered"
	FormatLine     = "line"
)

const validatorBasePrompt = `You are evaluating whether two notes from a personal knowledge base are meaningfully connected. You will receive the full text of a source note and a candidate note. Answer with exactly one word: "true" if they are connected, "false" if they are not.`

var strengthRules = map[string]string{
	StrengthStrict:   `Only answer "true" when the notes share a direct, explicit topical overlap: the same subject, the same project, or one clearly elaborating on the other. Thematic similarity alone is not enough.`,
	StrengthBalanced: `Answer "true" when the notes share a clear topic or would plausibly be useful to read together. Do not connect notes whose only overlap is incidental vocabulary.`,
	StrengthRelaxed:  `Answer "true" when the notes share a topic, theme, or conceptual thread, even a loose one. Prefer connecting over not connecting when in doubt.`,
}

// validatorSystemPrompt assembles the judgment instruction: fixed template,
// strength rule block, then any user instructions appended verbatim.
func validatorSystemPrompt(strength, special string) string {
	var b strings.Builder
	b.WriteString(validatorBasePrompt)
	b.WriteString("\n\n")
	rule, ok := strengthRules[strength]
	if !ok {
		rule = strengthRules[StrengthBalanced]
	}
	b.WriteString(rule)
	if special != "" {
		b.WriteString("\n\n")
		b.WriteString(special)
	}
	return b.String()
}

func validatorUserPrompt(sourceBody, candidateBody string) string {
	return fmt.Sprintf("SOURCE NOTE:\n%s\n\nCANDIDATE NOTE:\n%s", sourceBody, candidateBody)
}

// prefilterPrompt asks for a same-length boolean array over candidate titles.
// When concept summaries are available they ride along to sharpen the cheap
// screening without shipping full note bodies.
func prefilterPrompt(sourceTitle string, titles, summaries []string) string {
	var b strings.Builder
	b.WriteString("A note is titled ")
	fmt.Fprintf(&b, "%q.\n", sourceTitle)
	b.WriteString("For each of the following candidate notes, decide whether it could possibly relate to that note. ")
	fmt.Fprintf(&b, "Respond with only a JSON array of %d booleans, in order, nothing else.\n\n", len(titles))
	for i, title := range titles {
		if i < len(summaries) && summaries[i] != "" {
			fmt.Fprintf(&b, "%d. %q: %s\n", i+1, title, summaries[i])
		} else {
			fmt.Fprintf(&b, "%d. %q\n", i+1, title)
		}
	}
	return b.String()
}

// conceptsSeparator delimits per-note segments in a batched concepts
// response. The split is positional and unguarded.
const conceptsSeparator = "---NOTE---"

func conceptsPrompt(titles, bodies []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract the key concepts of each of the following %d notes. ", len(titles))
	fmt.Fprintf(&b, "For each note output one short paragraph naming its main topics and entities. Separate the paragraphs with the exact line %q, in the same order as the notes. Output nothing else.\n", conceptsSeparator)
	for i := range titles {
		fmt.Fprintf(&b, "\n=== %s ===\n%s\n", titles[i], bodies[i])
	}
	return b.String()
}

func tagSystemPrompt(vocabulary []string) string {
	return fmt.Sprintf(`You are assigning topical tags to a note. Choose only from this list, and only tags that genuinely apply: %s. Respond with the chosen tags separated by commas, nothing else. If none apply, respond with an empty line.`, strings.Join(vocabulary, ", "))
}
