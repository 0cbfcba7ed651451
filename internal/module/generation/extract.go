package generation

import (
	"encoding/json"
	"strings"
)

const fence = "```"

// Keys of the object returned when nothing could be recovered.
const (
	ExtractionFailedKey = "_extraction_failed"
	extractionErrorKey  = "error"

	extractionErrorMessage = "Failed to extract valid JSON from the model response"
)

// Extraction is the structured object recovered from provider output.
type Extraction struct {
	Object map[string]any
	// Repaired is set when the object only parsed after the truncation repair pass.
	Repaired bool
}

// Failed reports whether Object is the fallback error object.
func (e Extraction) Failed() bool {
	v, _ := e.Object[ExtractionFailedKey].(bool)
	return v
}

// Extract recovers a JSON object from provider output. It tries, in order, a fenced block
// labeled json, any fenced block and the whole trimmed text. When none of them parses it runs
// the truncation repair pass. If that fails too the result is the fallback error object.
// Extract never panics and never returns an error.
func Extract(text string) Extraction {
	if body, ok := fencedBlock(text, true); ok {
		if obj, ok := parseObject(body); ok {
			return Extraction{Object: obj}
		}
	}
	if body, ok := fencedBlock(text, false); ok {
		if obj, ok := parseObject(body); ok {
			return Extraction{Object: obj}
		}
	}
	if obj, ok := parseObject(strings.TrimSpace(text)); ok {
		return Extraction{Object: obj}
	}

	if obj, ok := repairObject(text); ok {
		return Extraction{Object: obj, Repaired: true}
	}
	return Extraction{Object: fallbackObject(), Repaired: true}
}

func fallbackObject() map[string]any {
	return map[string]any{
		extractionErrorKey:  extractionErrorMessage,
		ExtractionFailedKey: true,
	}
}

func parseObject(s string) (map[string]any, bool) {
	if s == "" {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// fencedBlock returns the interior of the first complete fenced block. With jsonOnly set it
// only considers a block whose opening fence is labeled json.
func fencedBlock(text string, jsonOnly bool) (string, bool) {
	start := openingFence(text, jsonOnly)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(fence):]
	end := strings.Index(rest, fence)
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(stripFenceLabel(rest[:end])), true
}

func openingFence(text string, jsonOnly bool) int {
	if !jsonOnly {
		return strings.Index(text, fence)
	}
	for pos := 0; pos < len(text); {
		i := strings.Index(text[pos:], fence)
		if i < 0 {
			return -1
		}
		at := pos + i
		label := text[at+len(fence):]
		if len(label) >= 4 && strings.EqualFold(label[:4], "json") {
			return at
		}
		pos = at + len(fence)
	}
	return -1
}

// stripFenceLabel drops a language tag that directly follows the opening fence.
func stripFenceLabel(s string) string {
	nl := strings.IndexByte(s, '\n')
	if nl < 0 {
		label := strings.TrimSpace(s)
		if i := strings.IndexAny(label, "{["); i > 0 {
			return label[i:]
		}
		return s
	}
	label := strings.TrimSpace(s[:nl])
	if label != "" && !strings.ContainsAny(label, "{[\"") {
		return s[nl+1:]
	}
	return s
}

// ExtractText recovers plain-text output such as a cover letter, unwrapping a fenced block
// when the model added one anyway.
func ExtractText(text string) string {
	if body, ok := fencedBlock(text, false); ok && body != "" {
		return body
	}
	return strings.TrimSpace(text)
}
