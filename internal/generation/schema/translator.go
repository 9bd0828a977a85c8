package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	insertInputSuffix = "_insert_input"
	internalPrefix    = "_"
)

// Diagnostic is a non-fatal note produced while translating.
type Diagnostic struct {
	Category string
	Field    string
	Message  string
}

func (d Diagnostic) String() string {
	if d.Field == "" {
		return d.Category + ": " + d.Message
	}
	return d.Category + "." + d.Field + ": " + d.Message
}

// Catalog maps category names to JSON object schemas. The encoded form is
// stored so that the catalogue cannot be mutated after translation.
type Catalog struct {
	schemas map[string]json.RawMessage
}

// Schema returns a copy of the encoded object schema for category.
func (c *Catalog) Schema(category string) (json.RawMessage, bool) {
	if c == nil {
		return nil, false
	}
	raw, ok := c.schemas[category]
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), raw...), true
}

func (c *Catalog) Has(category string) bool {
	if c == nil {
		return false
	}
	_, ok := c.schemas[category]
	return ok
}

// Categories lists the translated categories in sorted order.
func (c *Catalog) Categories() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.schemas))
	for k := range c.schemas {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.schemas)
}

// Translate converts every `<category>_insert_input` input object into an
// object schema. Categories with no usable fields are left out.
func Translate(types []Type) (*Catalog, []Diagnostic) {
	cat := &Catalog{schemas: map[string]json.RawMessage{}}
	var diags []Diagnostic

	for _, t := range types {
		if t.Kind != "INPUT_OBJECT" || !strings.HasSuffix(t.Name, insertInputSuffix) {
			continue
		}
		category := strings.TrimSuffix(t.Name, insertInputSuffix)
		if category == "" {
			continue
		}

		obj, fieldDiags := translateObject(category, t.Fields)
		diags = append(diags, fieldDiags...)
		if obj == nil {
			diags = append(diags, Diagnostic{Category: category, Message: "no usable fields; category left untranslated"})
			continue
		}
		raw, err := json.Marshal(obj)
		if err != nil {
			diags = append(diags, Diagnostic{Category: category, Message: "encode schema: " + err.Error()})
			continue
		}
		cat.schemas[category] = raw
	}

	sort.SliceStable(diags, func(i, j int) bool { return diags[i].String() < diags[j].String() })
	return cat, diags
}

func translateObject(category string, fields []Field) (map[string]any, []Diagnostic) {
	props := map[string]any{}
	required := []string{}
	var diags []Diagnostic

	for _, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" || strings.HasPrefix(name, internalPrefix) {
			continue
		}
		s, req, note := Resolve(f.Type)
		if note != "" {
			diags = append(diags, Diagnostic{Category: category, Field: name, Message: note})
		}
		props[name] = s
		if req {
			required = append(required, name)
		}
	}
	if len(props) == 0 {
		return nil, diags
	}

	obj := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		sort.Strings(required)
		obj["required"] = required
	}
	return obj, diags
}

// Resolve maps a TypeRef to a JSON schema fragment. required reports whether
// the outermost wrapper was NON_NULL; note is non-empty when a fallback was used.
func Resolve(t TypeRef) (s map[string]any, required bool, note string) {
	switch t.Kind {
	case RefNonNull:
		if t.Of == nil {
			return map[string]any{"type": "string"}, true, "NON_NULL without inner type"
		}
		inner, _, n := Resolve(*t.Of)
		return inner, true, n
	case RefList:
		if t.Of == nil {
			return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}, false, "LIST without inner type"
		}
		items, _, n := Resolve(*t.Of)
		return map[string]any{"type": "array", "items": items}, false, n
	case RefScalar:
		return scalarSchema(t.Name), false, ""
	case RefInputObject:
		return map[string]any{"type": "object"}, false, ""
	case RefEnum:
		return map[string]any{"type": "string", "description": "enum:" + t.Name}, false, ""
	default:
		return map[string]any{"type": "string"}, false, fmt.Sprintf("unsupported type kind %q mapped to string", t.Raw)
	}
}

func scalarSchema(name string) map[string]any {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "string", "id", "text", "citext", "varchar", "bpchar":
		return map[string]any{"type": "string"}
	case "int", "integer", "bigint", "smallint":
		return map[string]any{"type": "integer"}
	case "float", "float4", "float8", "real", "numeric":
		return map[string]any{"type": "number"}
	case "boolean", "bool":
		return map[string]any{"type": "boolean"}
	case "json", "jsonb":
		return map[string]any{"type": "object"}
	case "uuid":
		return map[string]any{"type": "string", "format": "uuid"}
	case "timestamptz", "timestamp", "datetime", "timestamp with time zone", "timestamp without time zone":
		return map[string]any{"type": "string", "format": "date-time"}
	case "date":
		return map[string]any{"type": "string", "format": "date"}
	case "time", "timetz", "time with time zone", "time without time zone":
		return map[string]any{"type": "string", "format": "time"}
	default:
		return map[string]any{"type": "string"}
	}
}
