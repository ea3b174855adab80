package instruction

import "strings"

// Template is a versioned built-in instruction shipped with the binary.
type Template struct {
	Version int
	Name    string
	Content string
}

// builtinTemplates lists every built-in template ever shipped, oldest first.
// Past versions are kept so upgrades can tell an untouched default from a customized one.
var builtinTemplates = []Template{
	{
		Version: 1,
		Name:    "Dual-Report Handover",
		Content: `Protocol: The Dual-Report Handover

You are analyzing an AI chat thread history. You must provide two distinct reports based on the following rules:

Part 1: The Narrative Handover (The "Human Story")
- Format: A candid, professional colleague-to-colleague story. NO bullet points.
- Content: Tell the full chronological story of the session. Explicitly include:
  * The Conflict: User struggles, pain, frustration, and the assistant's failures.
  * The Journey: How the conversation moved from the initial problem to the solution.
  * The Breakthroughs: Specific moments of realization.
- Tone: Real and unfiltered. Do not use corporate language.

Part 2: The Technical Manifest (The "Hard Data")
- Format: A structured, high-density technical report. Bullet points are allowed.
- Content:
  * Project Goal
  * Architecture
  * Stack Decisions
  * User Rules
  * Current Status`,
	},
	{
		Version: 2,
		Name:    "Dual-Report Handover (v2)",
		Content: `Protocol: The Dual-Report Handover

You are analyzing an AI chat thread history. You must provide two distinct reports based on the following rules:

Part 1: The Narrative Handover (The "Human Story")
- Format: A candid, professional colleague-to-colleague story. NO bullet points.
- Content: Tell the full chronological story of the session. Explicitly include:
  * The Conflict: User struggles, pain, frustration, and the assistant's failures (hallucinations, refusal to listen, soliciting).
  * The Journey: How the conversation moved from the initial problem to the solution.
  * The Breakthroughs: Specific moments of realization (e.g., "User realized Schema isn't magic").
- Tone: Emotional, real, and unfiltered. Do not sanitize. Do not use corporate language. Warn the next AI about what NOT to do based on failures.

Part 2: The Technical Manifest (The "Hard Data")
- Format: A structured, high-density technical report. Bullet points are allowed and encouraged.
- Content:
  * Project Goal: Brief summary of what was being built.
  * Architecture: Specific technical patterns or data setups discussed.
  * Stack Decisions: Specific technologies or APIs used.
  * User Rules: Constraints established (e.g., NO soliciting, NO "Next Steps").
  * Current Status: Exactly where the chat history stopped.`,
	},
}

// Builtin returns the built-in template for the given version.
func Builtin(version int) (Template, bool) {
	for _, t := range builtinTemplates {
		if t.Version == version {
			return t, true
		}
	}
	return Template{}, false
}

// Current returns the newest built-in template.
func Current() Template {
	return builtinTemplates[len(builtinTemplates)-1]
}

// FallbackContent is used when the store has no instruction at all.
func FallbackContent() string {
	return Current().Content
}

// IsBuiltinContent reports whether content matches any shipped built-in template,
// ignoring surrounding whitespace. A default record whose content fails this check
// has been customized by the user.
func IsBuiltinContent(content string) bool {
	content = strings.TrimSpace(content)
	for _, t := range builtinTemplates {
		if strings.TrimSpace(t.Content) == content {
			return true
		}
	}
	return false
}
