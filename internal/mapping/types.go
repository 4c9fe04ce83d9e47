package mapping

import (
	"fmt"
	"sort"
)

// FieldType is the type of a leaf field.
type FieldType string

const (
	TypeText    FieldType = "text"
	TypeKeyword FieldType = "keyword"
	TypeLong    FieldType = "long"
	TypeDouble  FieldType = "double"
	TypeBoolean FieldType = "boolean"
	TypeDate    FieldType = "date"
)

// Type names that describe object nodes rather than leaves.
const (
	typeObject = "object"
	typeNested = "nested"
	typeString = "string"
)

var fieldTypeAliases = map[string]FieldType{
	"text":       TypeText,
	"keyword":    TypeKeyword,
	"long":       TypeLong,
	"integer":    TypeLong,
	"short":      TypeLong,
	"byte":       TypeLong,
	"double":     TypeDouble,
	"float":      TypeDouble,
	"half_float": TypeDouble,
	"boolean":    TypeBoolean,
	"date":       TypeDate,
}

// ParseFieldType normalizes a declared leaf type name.
func ParseFieldType(s string) (FieldType, error) {
	if t, ok := fieldTypeAliases[s]; ok {
		return t, nil
	}
	return "", fmt.Errorf("unknown field type %q", s)
}

// RawType is the type derived from a document literal. It is what
// match_mapping_type is compared against.
type RawType string

const (
	RawString  RawType = "string"
	RawLong    RawType = "long"
	RawDouble  RawType = "double"
	RawBoolean RawType = "boolean"
	RawDate    RawType = "date"
	RawObject  RawType = "object"
)

// ParseRawType validates a match_mapping_type value.
func ParseRawType(s string) (RawType, error) {
	switch r := RawType(s); r {
	case RawString, RawLong, RawDouble, RawBoolean, RawDate, RawObject:
		return r, nil
	}
	return "", fmt.Errorf("unknown mapping type %q", s)
}

// DefaultType is the leaf type used when no template matches a scalar.
func DefaultType(raw RawType) (FieldType, bool) {
	switch raw {
	case RawString:
		return TypeText, true
	case RawLong:
		return TypeLong, true
	case RawDouble:
		return TypeDouble, true
	case RawBoolean:
		return TypeBoolean, true
	case RawDate:
		return TypeDate, true
	}
	return "", false
}

// Compatibility lists, per leaf type, the raw types a document may supply for
// a field already mapped with that type.
type Compatibility map[FieldType]map[RawType]bool

// DefaultCompatibility allows numeric widening (long into double), numbers and
// dates into string fields, and epoch millis into dates. Everything else is a
// type conflict.
func DefaultCompatibility() Compatibility {
	return Compatibility{
		TypeText:    rawSet(RawString, RawDate, RawLong, RawDouble),
		TypeKeyword: rawSet(RawString, RawDate, RawLong, RawDouble),
		TypeLong:    rawSet(RawLong),
		TypeDouble:  rawSet(RawLong, RawDouble),
		TypeBoolean: rawSet(RawBoolean),
		TypeDate:    rawSet(RawDate, RawLong),
	}
}

func rawSet(raws ...RawType) map[RawType]bool {
	m := make(map[RawType]bool, len(raws))
	for _, r := range raws {
		m[r] = true
	}
	return m
}

// Accepts reports whether a raw value may be stored in a field of type t.
func (c Compatibility) Accepts(t FieldType, raw RawType) bool {
	return c[t][raw]
}

// With returns a copy of c where t accepts exactly raws.
func (c Compatibility) With(t FieldType, raws ...RawType) Compatibility {
	out := make(Compatibility, len(c)+1)
	for k, v := range c {
		out[k] = v
	}
	out[t] = rawSet(raws...)
	return out
}

// Accepted lists the raw types accepted for t, sorted.
func (c Compatibility) Accepted(t FieldType) []RawType {
	var out []RawType
	for r := range c[t] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
