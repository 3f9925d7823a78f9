package types

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// Kind is the semantic tag of a single field.
	Kind uint8

	// FieldType is the type of a single field. Record is set iff Kind is KindRecord.
	FieldType struct {
		Kind   Kind
		Record *RecordType
	}

	// RecordType describes the shape of the records flowing on an edge, either a
	// tuple (positional, fields named f0..fN) or a named record.
	RecordType struct {
		Name   string
		Tuple  bool
		Fields []Field
	}

	Field struct {
		Name string
		Type FieldType
	}
)

const (
	KindInvalid Kind = iota
	KindBool
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindString
	KindBytes
	KindRecord
)

var (
	Bool    = FieldType{Kind: KindBool}
	Int32   = FieldType{Kind: KindInt32}
	Int64   = FieldType{Kind: KindInt64}
	Float32 = FieldType{Kind: KindFloat32}
	Float64 = FieldType{Kind: KindFloat64}
	String  = FieldType{Kind: KindString}
	Bytes   = FieldType{Kind: KindBytes}

	ErrNotTuple           = errors.New("record type is not a tuple")
	ErrPositionOutOfRange = errors.New("tuple position out of range")
	ErrFieldNotFound      = errors.New("field not found")
	ErrNotRecord          = errors.New("field is not a record")
	ErrUnknownKind        = errors.New("unknown field kind")
)

var kindNames = map[Kind]string{
	KindBool:    "bool",
	KindInt32:   "int32",
	KindInt64:   "int64",
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindString:  "string",
	KindBytes:   "bytes",
	KindRecord:  "record",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "invalid"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// RecordOf wraps a record type so it can be nested as a field.
func RecordOf(rt *RecordType) FieldType {
	return FieldType{Kind: KindRecord, Record: rt}
}

// Tuple builds a positional record type whose fields are named f0, f1, ...
func Tuple(elems ...FieldType) *RecordType {
	rt := &RecordType{Tuple: true, Fields: make([]Field, len(elems))}
	for i, e := range elems {
		rt.Fields[i] = Field{Name: fmt.Sprintf("f%d", i), Type: e}
	}
	return rt
}

// Struct builds a named record type, the field order is kept.
func Struct(name string, fields ...Field) *RecordType {
	return &RecordType{Name: name, Fields: fields}
}

func F(name string, t FieldType) Field {
	return Field{Name: name, Type: t}
}

func (f FieldType) IsRecord() bool {
	return f.Kind == KindRecord && f.Record != nil
}

// Equal is structural: kinds must match and nested records must have the same
// field names and types in the same order. Record names are ignored.
func (f FieldType) Equal(o FieldType) bool {
	if f.Kind != o.Kind {
		return false
	}
	if f.Kind != KindRecord {
		return true
	}
	return f.Record.Equal(o.Record)
}

func (f FieldType) String() string {
	if f.IsRecord() {
		return f.Record.String()
	}
	return f.Kind.String()
}

func (rt *RecordType) Equal(o *RecordType) bool {
	if rt == o {
		return true
	}
	if rt == nil || o == nil {
		return false
	}
	if rt.Tuple != o.Tuple || len(rt.Fields) != len(o.Fields) {
		return false
	}
	for i := range rt.Fields {
		if rt.Fields[i].Name != o.Fields[i].Name || !rt.Fields[i].Type.Equal(o.Fields[i].Type) {
			return false
		}
	}
	return true
}

func (rt *RecordType) Arity() int {
	if rt == nil {
		return 0
	}
	return len(rt.Fields)
}

// At returns the element type at a tuple position.
func (rt *RecordType) At(pos int) (FieldType, error) {
	if rt == nil || !rt.Tuple {
		return FieldType{}, fmt.Errorf("%w: %s", ErrNotTuple, rt)
	}
	if pos < 0 || pos >= len(rt.Fields) {
		return FieldType{}, fmt.Errorf("%w: position %d, arity %d", ErrPositionOutOfRange, pos, len(rt.Fields))
	}
	return rt.Fields[pos].Type, nil
}

// Lookup resolves a dotted field path such as "f0.a" against the record type.
func (rt *RecordType) Lookup(path string) (FieldType, error) {
	if path == "" {
		return FieldType{}, fmt.Errorf("%w: empty path", ErrFieldNotFound)
	}
	cur := rt
	segments := strings.Split(path, ".")
	for i, seg := range segments {
		if cur == nil {
			return FieldType{}, fmt.Errorf("%w: %q", ErrNotRecord, strings.Join(segments[:i], "."))
		}
		f, ok := cur.field(seg)
		if !ok {
			return FieldType{}, fmt.Errorf("%w: %q in %s", ErrFieldNotFound, path, rt)
		}
		if i == len(segments)-1 {
			return f.Type, nil
		}
		if !f.Type.IsRecord() {
			return FieldType{}, fmt.Errorf("%w: %q", ErrNotRecord, strings.Join(segments[:i+1], "."))
		}
		cur = f.Type.Record
	}
	// unreachable, the loop always returns on the last segment
	return FieldType{}, fmt.Errorf("%w: %q", ErrFieldNotFound, path)
}

func (rt *RecordType) field(name string) (Field, bool) {
	for _, f := range rt.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (rt *RecordType) String() string {
	if rt == nil {
		return "<nil>"
	}
	var b strings.Builder
	if rt.Tuple {
		b.WriteString("Tuple")
		b.WriteString(fmt.Sprint(len(rt.Fields)))
		b.WriteString("<")
		for i, f := range rt.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Type.String())
		}
		b.WriteString(">")
		return b.String()
	}
	if rt.Name != "" {
		b.WriteString(rt.Name)
	}
	b.WriteString("{")
	for i, f := range rt.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteString(" ")
		b.WriteString(f.Type.String())
	}
	b.WriteString("}")
	return b.String()
}
