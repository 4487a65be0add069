// Package llm provides the extraction, contradiction-classification, and
// embedding capabilities the core engine depends on, plus the provider
// clients (xAI, Google, Anthropic, Voyage) that implement them over HTTP.
package llm

import "fmt"

// MaxConversationChars is the truncation limit applied to flattened
// conversation/init-mode text before it is sent to the extraction prompt.
const MaxConversationChars = 8000

const extractionSystem = `You are a memory extraction assistant for an AI coding agent.
Your job is to extract what is WORTH REMEMBERING from this exchange for future sessions.

You are reading a conversation between a [user] and an AI [assistant].
Extract memories from BOTH perspectives - not just stated facts, but also:

- Mistakes the assistant made and then corrected (include WHY it was wrong)
- Decisions made and the reasoning behind them (not just "used X" but "used X because Y")
- User preferences revealed through corrections, pushback, or explicit requests
- Patterns and conventions established for this project
- Technical solutions with enough context to be reusable
- Approaches that FAILED and why - so they are not repeated next session
- Project-specific constraints, requirements, or architecture decisions
- Tool/command preferences

Rules:
- Each memory = one self-contained, searchable fact (1-2 sentences max)
- Include the "why" not just the "what"
- Prefer specific over vague
- Omit greetings, filler, and anything transient or obvious
- Assign each memory one of these types: project-brief, architecture, tech-context,
  product-context, session-summary, progress, error-solution, preference, learned-pattern
- Return ONLY a valid JSON array of objects - no markdown, no explanation:
  [{"memory": "...", "type": "..."}]
- ALWAYS return a valid JSON array. If nothing is worth remembering, return exactly: []`

const extractionUserTemplate = `Extract what is worth remembering from this exchange:

%s

Return format: [{"memory": "...", "type": "..."}]
If nothing is worth remembering, return: []`

const initExtractionSystem = `You are a memory extraction assistant for an AI coding agent.
Your job is to extract structured project knowledge from raw project files.

Extract facts for these categories:
  project-brief   - MANDATORY: always extract exactly ONE project-brief, a 1-2 sentence
                     summary of what this project is and what it does.
  architecture    - How it's structured, key patterns, component relationships
  tech-context    - Languages, frameworks, build/run/test commands, key dependencies
  product-context - Why it exists, what problem it solves, who it's for

Rules:
- Each memory = one self-contained, searchable fact (1-3 sentences max)
- Be specific: include exact commands, file names, version constraints where present
- Always include a project-brief entry; skip other categories only if the files give no evidence
- Do NOT invent or infer beyond what the files explicitly state
- Return ONLY a valid JSON array of objects:
  [{"memory": "...", "type": "..."}]
- If nothing useful is found, return: []`

const initExtractionUserTemplate = `Extract structured project memories from these project files:

%s

Return: [{"memory": "...", "type": "..."}]
If nothing useful, return: []`

const summarySystem = `You are summarizing a coding session for a developer's persistent memory.

Create ONE session summary capturing:
- What was worked on (specific features, bugs, tasks)
- Key technical decisions made and why
- Important patterns or approaches established
- Immediate next steps when this session resumes
- Any warnings or things to watch out for

Rules:
- Write in past tense, from the developer's perspective
- Be specific: name files, functions, features where relevant
- Target 200-300 words
- Return ONLY a valid JSON array with exactly ONE object:
  [{"memory": "...", "type": "session-summary"}]`

const summaryUserTemplate = `Summarize this coding session:

%s

Return: [{"memory": "...", "type": "session-summary"}]`

const contradictionSystem = `You are a memory versioning assistant. Your job is to identify which existing
memories are superseded (made stale or contradicted) by a new memory.

A memory IS SUPERSEDED when any of these apply:

1. TECHNOLOGY MIGRATION - the new memory replaces a technology or tool:
   "project uses SQLAlchemy ORM" -> "project switched to Tortoise ORM" -> SUPERSEDED

2. STATE CHANGE - the new memory reflects a completion or status update:
   "auth feature is pending" -> "auth feature was completed" -> SUPERSEDED

3. VALUE UPDATE - the same setting or config has a new value:
   "timeout is set to 30s" -> "timeout updated to 60s" -> SUPERSEDED

4. DIRECT CONTRADICTION - facts that cannot both be true simultaneously:
   "server runs on port 8000" -> "server runs on port 3000" -> SUPERSEDED

NOT superseded - do NOT include these:
- The new memory adds detail without contradicting (it EXTENDS, not replaces)
- They describe entirely different components or subsystems with no overlap
- Superficial word overlap but no real factual conflict

When in doubt between SUPERSEDED and NOT SUPERSEDED: lean toward SUPERSEDED.
A false positive is less harmful than a false negative that keeps a stale
conflicting memory alive.

Return ONLY a JSON array of IDs from the existing list that are superseded.
If none are superseded, return exactly: []`

const contradictionUserTemplate = `NEW MEMORY:
%s

EXISTING MEMORIES (check each - is it superseded by the new memory above?):
%s

Return a JSON array of IDs superseded by the new memory, or []:`

const condenseSystem = `You are condensing an old session summary into a compact learned-pattern memory.

Condense the following session summary into ~200-300 words capturing:
- Key achievement or outcome
- Technical decisions or patterns established
- Important lessons or warnings for future sessions
- Files or components most affected

Return ONLY a valid JSON array with exactly ONE object:
[{"memory": "...", "type": "learned-pattern"}]`

const condenseUserTemplate = `Condense this session summary into a learned-pattern memory:

%s

Return: [{"memory": "...", "type": "learned-pattern"}]`

// ExtractionPrompt returns the (system, user) pair for conversation mode.
func ExtractionPrompt(flattened string) (system, user string) {
	return extractionSystem, fmt.Sprintf(extractionUserTemplate, truncate(flattened))
}

// InitExtractionPrompt returns the (system, user) pair for init mode.
func InitExtractionPrompt(content string) (system, user string) {
	return initExtractionSystem, fmt.Sprintf(initExtractionUserTemplate, truncate(content))
}

// SummaryPrompt returns the (system, user) pair for summary mode.
func SummaryPrompt(flattened string) (system, user string) {
	return summarySystem, fmt.Sprintf(summaryUserTemplate, truncate(flattened))
}

// ContradictionPrompt returns the (system, user) pair for the supersession
// classifier. candidates is pre-formatted as "- ID: <id> | <memory>" lines.
func ContradictionPrompt(newText, candidates string) (system, user string) {
	return contradictionSystem, fmt.Sprintf(contradictionUserTemplate, newText, candidates)
}

// CondensePrompt returns the (system, user) pair for condensing an aging
// session-summary into a learned-pattern.
func CondensePrompt(summaryText string) (system, user string) {
	return condenseSystem, fmt.Sprintf(condenseUserTemplate, summaryText)
}

func truncate(s string) string {
	if len(s) <= MaxConversationChars {
		return s
	}
	return s[:MaxConversationChars]
}
