package schema

// RefKind tags a TypeRef.
type RefKind int

const (
	RefUnknown RefKind = iota
	RefScalar
	RefList
	RefNonNull
	RefInputObject
	RefEnum
)

// TypeRef describes the type of a remote input field. It is built once from
// introspection and never mutated.
type TypeRef struct {
	Kind RefKind
	Name string
	Of   *TypeRef
	// Raw is the remote kind string, kept for diagnostics on unknown kinds.
	Raw string
}

func Scalar(name string) TypeRef      { return TypeRef{Kind: RefScalar, Name: name, Raw: "SCALAR"} }
func InputObject(name string) TypeRef { return TypeRef{Kind: RefInputObject, Name: name, Raw: "INPUT_OBJECT"} }
func Enum(name string) TypeRef        { return TypeRef{Kind: RefEnum, Name: name, Raw: "ENUM"} }
func Unknown(raw string) TypeRef      { return TypeRef{Kind: RefUnknown, Raw: raw} }

func List(of TypeRef) TypeRef    { return TypeRef{Kind: RefList, Of: &of, Raw: "LIST"} }
func NonNull(of TypeRef) TypeRef { return TypeRef{Kind: RefNonNull, Of: &of, Raw: "NON_NULL"} }

// Field is one input field of a remote type.
type Field struct {
	Name string
	Type TypeRef
}

// Type is one named entry of the remote type catalogue.
type Type struct {
	Name   string
	Kind   string
	Fields []Field
}
