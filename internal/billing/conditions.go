package billing

import (
	"encoding/json"
	"strings"
)

// ParseConditions parses the eligible-method list attached to a discount.
// The storage mixes formats across historical records: a JSON array
// ('["efectivo","tarjeta"]'), a JSON-encoded string, or plain text separated
// by commas, semicolons or pipes. The result is lower-cased with empties
// dropped; null/blank/unparseable input yields an empty list.
func ParseConditions(raw string) []string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	var arr []string
	if err := json.Unmarshal([]byte(s), &arr); err == nil {
		return cleanConditions(arr)
	}
	var str string
	if err := json.Unmarshal([]byte(s), &str); err == nil {
		s = str
	}

	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '|'
	})
	return cleanConditions(parts)
}

func cleanConditions(parts []string) []string {
	var out []string
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
