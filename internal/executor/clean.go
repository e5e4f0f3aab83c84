package executor

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

var (
	codeFence = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")

	trailingBrace   = regexp.MustCompile(`,\s*}`)
	trailingBracket = regexp.MustCompile(`,\s*]`)
	bareKey         = regexp.MustCompile(`([{,]\s*)([A-Za-z_]\w*)\s*:`)
	singleQuoted    = regexp.MustCompile(`:\s*'([^']*?)'`)
)

// Clean strips code fences from a raw reply and keeps the text between the
// first '{' and the last '}'. It returns "" when no object is present.
func Clean(raw string) string {
	s := strings.TrimSpace(raw)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

// Repair fixes the common ways a model bends JSON: trailing commas, bare
// keys and single-quoted string values.
func Repair(s string) string {
	s = trailingBrace.ReplaceAllString(s, "}")
	s = trailingBracket.ReplaceAllString(s, "]")
	s = bareKey.ReplaceAllString(s, `$1"$2":`)
	s = singleQuoted.ReplaceAllString(s, `: "$1"`)
	return s
}

// Parse extracts a JSON object from a raw reply, repairing it once if the
// strict parse fails.
func Parse(raw string) (map[string]any, error) {
	cleaned := Clean(raw)
	if cleaned == "" {
		return nil, eris.New("executor: no JSON object in response")
	}

	var data map[string]any
	err := json.Unmarshal([]byte(cleaned), &data)
	if err == nil {
		return data, nil
	}

	if rerr := json.Unmarshal([]byte(Repair(cleaned)), &data); rerr != nil {
		return nil, eris.Wrap(err, "executor: parse response")
	}
	return data, nil
}
