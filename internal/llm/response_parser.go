package llm

import (
	"encoding/json"
	"log"
	"strings"

	"github.com/prosperitypirate/opencode-memory/pkg/types"
)

// FactCandidate is a parsed {memory, type} pair produced by the extraction
// prompts, before it becomes a types.Memory row.
type FactCandidate struct {
	Memory string
	Type   types.FactType
}

// ParseFacts applies the JSON repair rules to raw LLM output and returns the
// fact candidates found. It never returns an error: on any parse failure it
// logs at warn and returns an empty slice, per the "Extractor never raises
// for no facts" contract.
func ParseFacts(raw string) []FactCandidate {
	repaired := stripFence(raw)
	repaired = strings.TrimSpace(repaired)
	if repaired == "" {
		return nil
	}

	var value interface{}
	if err := json.Unmarshal([]byte(repaired), &value); err != nil {
		log.Printf("llm: parse_facts: invalid JSON, returning no facts: %v", err)
		return nil
	}

	items := arrayValue(value)
	if items == nil {
		log.Printf("llm: parse_facts: no array-valued field found, returning no facts")
		return nil
	}

	var out []FactCandidate
	for _, item := range items {
		candidate, ok := coerceCandidate(item)
		if !ok {
			continue
		}
		candidate.Memory = strings.TrimSpace(candidate.Memory)
		if candidate.Memory == "" {
			continue
		}
		out = append(out, candidate)
	}
	return out
}

// ParseSupersededIDs parses the contradiction classifier's response: a JSON
// array of candidate id strings. Parse failures yield an empty list rather
// than an error.
func ParseSupersededIDs(raw string) []string {
	repaired := stripFence(raw)
	repaired = strings.TrimSpace(repaired)
	if repaired == "" {
		return nil
	}

	var value interface{}
	if err := json.Unmarshal([]byte(repaired), &value); err != nil {
		log.Printf("llm: parse_superseded_ids: invalid JSON, returning no ids: %v", err)
		return nil
	}

	arr, ok := value.([]interface{})
	if !ok {
		log.Printf("llm: parse_superseded_ids: response is not a JSON array, returning no ids")
		return nil
	}

	var ids []string
	for _, v := range arr {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			ids = append(ids, strings.TrimSpace(s))
		}
	}
	return ids
}

// stripFence applies JSON repair rule 1: if the raw string starts with a
// triple-backtick fence, take the content of the first fenced block and
// strip a leading "json" tag.
func stripFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimPrefix(text, "\n")

	if end := strings.Index(text, "```"); end != -1 {
		text = text[:end]
	}
	return text
}

// arrayValue applies JSON repair rules 3-4: if value is already an array,
// return it; if it's an object, descend into the first array-valued field.
func arrayValue(value interface{}) []interface{} {
	if arr, ok := value.([]interface{}); ok {
		return arr
	}
	if obj, ok := value.(map[string]interface{}); ok {
		for _, v := range obj {
			if arr, ok := v.([]interface{}); ok {
				return arr
			}
		}
	}
	return nil
}

// coerceCandidate applies JSON repair rule 3 at the element level: accept
// either a plain string (coerced to memory + default type) or an object
// with a non-empty "memory" field (type defaults to learned-pattern).
func coerceCandidate(item interface{}) (FactCandidate, bool) {
	switch v := item.(type) {
	case string:
		return FactCandidate{Memory: v, Type: types.TypeLearnedPattern}, true
	case map[string]interface{}:
		memory, _ := v["memory"].(string)
		if strings.TrimSpace(memory) == "" {
			return FactCandidate{}, false
		}
		factType := types.TypeLearnedPattern
		if t, ok := v["type"].(string); ok && t != "" {
			factType = types.FactType(t)
		}
		return FactCandidate{Memory: memory, Type: factType}, true
	default:
		return FactCandidate{}, false
	}
}
