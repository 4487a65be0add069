package llm

import "testing"

// FuzzParseFacts checks that no input, however malformed, panics or blocks.
// The repair rules must degrade to an empty list, never an error.
func FuzzParseFacts(f *testing.F) {
	seeds := []string{
		``,
		`[]`,
		`null`,
		`[{"memory": "x", "type": "progress"}]`,
		"```json\n[]\n```",
		`{"facts": [{"memory": "x"}]}`,
		`{"memory": "not an array"}`,
		`[1, 2, 3]`,
		`[{"memory": null}]`,
	}
	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		facts := ParseFacts(raw)
		for _, fc := range facts {
			if fc.Memory == "" {
				t.Fatalf("ParseFacts returned a candidate with empty memory text for input %q", raw)
			}
		}
	})
}

func FuzzParseSupersededIDs(f *testing.F) {
	seeds := []string{``, `[]`, `["a", "b"]`, `null`, `{"x": 1}`, "```json\n[]\n```"}
	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		ids := ParseSupersededIDs(raw)
		for _, id := range ids {
			if id == "" {
				t.Fatalf("ParseSupersededIDs returned an empty id for input %q", raw)
			}
		}
	})
}
