package parse

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/company-profiler/internal/model"
)

var (
	quotedItemRe = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"|'((?:[^'\\]|\\.)*)'`)
	fieldMu      sync.Mutex
	fieldCache   = map[string]*regexp.Regexp{}
)

// fieldRe builds the pattern for one key: a quoted key, a colon, then a
// double- or single-quoted string, a bracketed list, or a bare scalar.
func fieldRe(key string) *regexp.Regexp {
	fieldMu.Lock()
	defer fieldMu.Unlock()
	if re, ok := fieldCache[key]; ok {
		return re
	}
	k := regexp.QuoteMeta(key)
	re := regexp.MustCompile(`(?s)["']` + k + `["']\s*:\s*(?:"((?:[^"\\]|\\.)*)"|'((?:[^'\\]|\\.)*)'|\[(.*?)\]|([A-Za-z0-9_.+-]+))`)
	fieldCache[key] = re
	return re
}

// ExtractFields scrapes key/value pairs out of JSON-like model output without
// requiring the whole reply to be valid JSON. Every requested key appears in
// the result; keys that are missing map to "". List values are joined with
// ", ". An error is returned only when none of the keys is found.
func ExtractFields(text string, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	found := 0
	for _, key := range keys {
		loc := fieldRe(key).FindStringSubmatchIndex(text)
		if loc == nil {
			out[key] = ""
			continue
		}
		found++
		group := func(i int) (string, bool) {
			if loc[2*i] < 0 {
				return "", false
			}
			return text[loc[2*i]:loc[2*i+1]], true
		}
		if v, ok := group(1); ok {
			out[key] = decodeJSONString(v)
		} else if v, ok := group(2); ok {
			out[key] = strings.TrimSpace(v)
		} else if v, ok := group(3); ok {
			out[key] = joinItems(v)
		} else if v, _ := group(4); v != "null" {
			out[key] = v
		} else {
			out[key] = ""
		}
	}
	if found == 0 {
		return out, eris.Errorf("parse: none of %d fields found in response", len(keys))
	}
	return out, nil
}

func decodeJSONString(raw string) string {
	var s string
	if err := json.Unmarshal([]byte(`"`+raw+`"`), &s); err != nil {
		return raw
	}
	return strings.TrimSpace(s)
}

func joinItems(inner string) string {
	var items []string
	for _, m := range quotedItemRe.FindAllStringSubmatch(inner, -1) {
		v := m[1]
		if v == "" {
			v = m[2]
		} else {
			v = decodeJSONString(v)
		}
		if v = strings.TrimSpace(v); v != "" {
			items = append(items, v)
		}
	}
	return strings.Join(items, ", ")
}

// ParseYesNo reduces a Yes/No reply to AnswerYes or AnswerNo. Anything that
// does not start with "yes" counts as no.
func ParseYesNo(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.TrimLeft(t, "'\"*` ")
	if strings.HasPrefix(t, "yes") {
		return model.AnswerYes
	}
	return model.AnswerNo
}
