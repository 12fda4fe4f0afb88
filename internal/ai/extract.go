package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jobradar/jobradar/internal/utils"
)

var (
	fenceOpen     = regexp.MustCompile("^```(?:json)?\\s*")
	fenceClose    = regexp.MustCompile("\\s*```$")
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
	objectComma   = regexp.MustCompile(`,\s*}`)
	braceObject   = regexp.MustCompile(`\{[^{}]*\}`)
)

// ExtractJSONArray recovers a JSON array of objects from free-form model
// output. The model is asked to return only an array but frequently wraps it
// in prose or code fences; parsing falls through ordered repair strategies
// and returns on first success. Pure function, no I/O, so it can be tested
// against literal malformed strings.
func ExtractJSONArray(raw string, expected int) ([]map[string]any, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = fenceOpen.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(fenceClose.ReplaceAllString(cleaned, ""))

	// Strategy 1: parse the outermost [...] span directly.
	if result, ok := parseArraySpan(cleaned); ok {
		return result, nil
	}

	// Strategy 2: light repair, then the same span extraction. Trailing
	// commas and single quotes are the two most common model mistakes.
	repaired := trailingComma.ReplaceAllString(cleaned, "$1")
	repaired = strings.ReplaceAll(repaired, "'", `"`)
	if result, ok := parseArraySpan(repaired); ok {
		return result, nil
	}

	// Strategy 3: collect single-level {...} objects independently and
	// rebuild the array, repairing trailing commas per object.
	objects := braceObject.FindAllString(cleaned, -1)
	if expected >= 0 && len(objects) > expected {
		objects = objects[:expected]
	}
	var parsed []map[string]any
	for _, obj := range objects {
		var m map[string]any
		if err := json.Unmarshal([]byte(obj), &m); err == nil {
			parsed = append(parsed, m)
			continue
		}
		fixed := objectComma.ReplaceAllString(obj, "}")
		if err := json.Unmarshal([]byte(fixed), &m); err == nil {
			parsed = append(parsed, m)
		}
	}
	if len(parsed) > 0 {
		return parsed, nil
	}

	return nil, fmt.Errorf("could not parse JSON array from response: %s", utils.TruncateForLog(raw, 200))
}

func parseArraySpan(s string) ([]map[string]any, bool) {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start == -1 || end == -1 || end <= start {
		return nil, false
	}

	var result []map[string]any
	if err := json.Unmarshal([]byte(s[start:end+1]), &result); err != nil {
		return nil, false
	}
	return result, true
}
