package schema

import (
	"context"
	"fmt"

	"github.com/Crohnos/dnd-generator/internal/platform/graphql"
	"github.com/Crohnos/dnd-generator/internal/platform/logger"
)

// FromIntrospection converts wire types into the translator's type catalogue.
func FromIntrospection(in []graphql.IntrospectedType) []Type {
	out := make([]Type, 0, len(in))
	for _, t := range in {
		fields := make([]Field, 0, len(t.InputFields))
		for _, f := range t.InputFields {
			fields = append(fields, Field{Name: f.Name, Type: refFromWire(&f.Type)})
		}
		out = append(out, Type{Name: t.Name, Kind: t.Kind, Fields: fields})
	}
	return out
}

func refFromWire(w *graphql.TypeRef) TypeRef {
	if w == nil {
		return Unknown("")
	}
	name := ""
	if w.Name != nil {
		name = *w.Name
	}
	switch w.Kind {
	case "NON_NULL":
		if w.OfType == nil {
			return Unknown(w.Kind)
		}
		return NonNull(refFromWire(w.OfType))
	case "LIST":
		if w.OfType == nil {
			return Unknown(w.Kind)
		}
		return List(refFromWire(w.OfType))
	case "SCALAR":
		return Scalar(name)
	case "INPUT_OBJECT":
		return InputObject(name)
	case "ENUM":
		return Enum(name)
	default:
		return Unknown(w.Kind)
	}
}

// Load introspects the remote schema and translates it. It is called once at
// startup; the returned catalogue is shared read-only by every run.
func Load(ctx context.Context, src graphql.Introspector, log *logger.Logger) (*Catalog, error) {
	types, err := src.Introspect(ctx)
	if err != nil {
		return nil, fmt.Errorf("introspect schema: %w", err)
	}
	cat, diags := Translate(FromIntrospection(types))
	if log != nil {
		for _, d := range diags {
			log.Warn("Schema translation note", "category", d.Category, "field", d.Field, "note", d.Message)
		}
		log.Info("Schema catalogue translated", "categories", cat.Len())
	}
	return cat, nil
}
