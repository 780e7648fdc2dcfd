package usecase

import (
	"encoding/json"
	"regexp"
	"strings"
)

// digest is the JSON document the model is asked to produce.
type digest struct {
	Overview          json.RawMessage `json:"overview"`
	KeyDates          []string        `json:"key_dates"`
	Deadlines         []string        `json:"deadlines"`
	CurriculumUpdates []string        `json:"curriculum_updates"`
	ActionItems       []string        `json:"action_items"`
}

var (
	fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	bracePattern = regexp.MustCompile(`(?s)\{.*\}`)
)

// parseDigest recovers a digest from whatever the model returned. The chain
// goes strict unmarshal, then markdown-fence stripping, then extracting the
// first brace-to-brace span. When nothing parses, the raw text becomes the
// overview and the lists stay empty; a chatty model loses structure, never
// the pipeline.
func parseDigest(raw string) (*digest, bool) {
	trimmed := strings.TrimSpace(raw)

	var d digest
	if err := json.Unmarshal([]byte(trimmed), &d); err == nil {
		return &d, false
	}

	if match := fencePattern.FindStringSubmatch(trimmed); match != nil {
		if err := json.Unmarshal([]byte(match[1]), &d); err == nil {
			return &d, true
		}
	}

	if match := bracePattern.FindString(trimmed); match != "" {
		if err := json.Unmarshal([]byte(match), &d); err == nil {
			return &d, true
		}
	}

	overview, _ := json.Marshal(map[string]string{"general": trimmed})
	return &digest{Overview: overview}, true
}

// overviewJSON normalizes the overview field to a JSON object string. The
// model sometimes returns a plain string; that becomes the "general" entry.
func (d *digest) overviewJSON() string {
	if len(d.Overview) == 0 {
		return ""
	}

	var asObject map[string]string
	if err := json.Unmarshal(d.Overview, &asObject); err == nil {
		return string(d.Overview)
	}

	var asString string
	if err := json.Unmarshal(d.Overview, &asString); err == nil {
		wrapped, _ := json.Marshal(map[string]string{"general": asString})
		return string(wrapped)
	}

	return string(d.Overview)
}

func marshalList(list []string) string {
	if list == nil {
		list = []string{}
	}
	encoded, _ := json.Marshal(list)
	return string(encoded)
}

var tagPattern = regexp.MustCompile(`(?s)<[^>]*>`)

// stripHTML is the crude fallback for mail that only carries an HTML body.
func stripHTML(raw string) string {
	text := tagPattern.ReplaceAllString(raw, " ")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = strings.ReplaceAll(text, "&quot;", `"`)
	return strings.Join(strings.Fields(text), " ")
}
