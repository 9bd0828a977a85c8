package persist

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// element is one generated object of a category array.
type element struct {
	raw    json.RawMessage
	fields map[string]any
}

func decodeCategory(category string, raw json.RawMessage) ([]element, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("category %s: expected an array of objects: %w", category, err)
	}
	out := make([]element, 0, len(items))
	for i, item := range items {
		var fields map[string]any
		if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
			return nil, fmt.Errorf("category %s: element %d is not an object", category, i+1)
		}
		out = append(out, element{raw: item, fields: fields})
	}
	return out, nil
}

// str returns the first non-empty value among keys, rendered as text.
func (e element) str(keys ...string) string {
	for _, k := range keys {
		switch v := e.fields[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return ""
}

// names reads a list of references. Entries may be bare strings or objects
// carrying a name.
func (e element) names(key string) []string {
	switch v := e.fields[key].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			switch it := item.(type) {
			case string:
				if s := strings.TrimSpace(it); s != "" {
					out = append(out, s)
				}
			case map[string]any:
				if s, ok := it["name"].(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, strings.TrimSpace(s))
				}
			}
		}
		return out
	}
	return nil
}

// name is the element's display name, or "<category> #<n>" when it has none.
func (e element) name(category string, n int) string {
	if s := e.str("name", "title"); s != "" {
		return s
	}
	return fmt.Sprintf("%s #%d", category, n)
}
